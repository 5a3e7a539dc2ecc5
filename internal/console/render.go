package console

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/openidx/ciam-console/internal/directory"
)

const notAvailable = "N/A"

func orNA(s string) string {
	if s == "" {
		return notAvailable
	}
	return s
}

func ptrOrNA(s *string) string {
	if s == nil {
		return notAvailable
	}
	return orNA(*s)
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

// writeUserTable renders users as aligned columns. The email column is the
// sign-in name of the first identity, which is what CIAM users log in with.
func writeUserTable(out io.Writer, users []directory.UserProfile) error {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "DISPLAY NAME\tUSER PRINCIPAL NAME\tEMAIL\tENABLED")
	fmt.Fprintln(tw, "------------\t-------------------\t-----\t-------")
	for _, u := range users {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
			u.DisplayName,
			u.UserPrincipalName,
			u.PrimarySignIn(),
			yesNo(u.AccountEnabled))
	}
	return tw.Flush()
}

func writeUserDetails(out io.Writer, u *directory.UserProfile) error {
	created := notAvailable
	if u.CreatedAt != nil {
		created = u.CreatedAt.Format(createdLayout)
	}

	tw := tabwriter.NewWriter(out, 0, 0, 1, ' ', 0)
	fmt.Fprintf(tw, "ID:\t%s\n", u.ID)
	fmt.Fprintf(tw, "Display Name:\t%s\n", u.DisplayName)
	fmt.Fprintf(tw, "User Principal Name:\t%s\n", u.UserPrincipalName)
	fmt.Fprintf(tw, "Email:\t%s\n", ptrOrNA(u.Mail))
	fmt.Fprintf(tw, "Sign-in Email:\t%s\n", orNA(u.PrimarySignIn()))
	fmt.Fprintf(tw, "Job Title:\t%s\n", ptrOrNA(u.JobTitle))
	fmt.Fprintf(tw, "Department:\t%s\n", ptrOrNA(u.Department))
	fmt.Fprintf(tw, "Account Enabled:\t%s\n", yesNo(u.AccountEnabled))
	fmt.Fprintf(tw, "Created:\t%s\n", created)
	return tw.Flush()
}
