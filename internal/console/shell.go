// Package console implements the interactive CIAM admin menu over a line-based
// reader and writer.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"go.uber.org/zap"

	"github.com/openidx/ciam-console/internal/directory"
)

// Directory is the set of operations the menu drives. *directory.Service satisfies it.
type Directory interface {
	CreateUser(ctx context.Context, req directory.NewUserRequest) (*directory.UserProfile, error)
	ListUsers(ctx context.Context, limit int) ([]directory.UserProfile, error)
	GetUser(ctx context.Context, identifier string) (*directory.UserProfile, error)
	CreateOidcApplication(ctx context.Context, displayName string, redirectURIs []string) (*directory.OidcApplication, error)
}

// PasswordReader reads a secret without echoing it. ReadPassword returns
// ctx.Err() if ctx is done before the secret is entered.
type PasswordReader interface {
	ReadPassword(ctx context.Context) (string, error)
}

const createdLayout = "2006-01-02 15:04:05"

var (
	successColor = color.New(color.FgGreen)
	warnColor    = color.New(color.FgYellow)
	errorColor   = color.New(color.FgRed)
	headingColor = color.New(color.FgCyan)
)

// Shell is one interactive session
type Shell struct {
	dir       Directory
	in        *bufio.Reader
	out       io.Writer
	passwords PasswordReader
	logger    *zap.Logger
	tenant    string

	// requests asks the reader goroutine for one line; results carries it back
	requests chan struct{}
	results  chan lineResult
	pending  bool
}

type lineResult struct {
	line string
	err  error
}

// Option customizes a Shell
type Option func(*Shell)

// WithPasswordReader masks password entry. Without it passwords are read as
// plain lines from the shell input.
func WithPasswordReader(r PasswordReader) Option {
	return func(s *Shell) {
		s.passwords = r
	}
}

// WithTenant names the tenant in the banner
func WithTenant(tenant string) Option {
	return func(s *Shell) {
		s.tenant = tenant
	}
}

// WithLogger records menu activity; session output never goes to the log
func WithLogger(logger *zap.Logger) Option {
	return func(s *Shell) {
		s.logger = logger
	}
}

// NewShell creates a session reading from in and writing to out
func NewShell(dir Directory, in io.Reader, out io.Writer, opts ...Option) *Shell {
	s := &Shell{
		dir:    dir,
		in:     bufio.NewReader(in),
		out:    out,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(zap.String("component", "console"))
	return s
}

// errEndOfInput ends the session when the input is exhausted mid-prompt
var errEndOfInput = errors.New("end of input")

// Run shows the menu until the operator exits, the input ends or ctx is done.
// Operation failures are reported and the menu is shown again. Cancelling ctx
// ends the session even while a prompt is waiting for input.
func (s *Shell) Run(ctx context.Context) error {
	s.startReader()
	defer s.stopReader()

	s.banner()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		s.menu()
		choice, err := s.readLine(ctx)
		if err != nil {
			return s.endOfInput(err)
		}

		var opErr error
		switch strings.TrimSpace(choice) {
		case "1":
			opErr = s.createUser(ctx)
		case "2":
			opErr = s.listUsers(ctx)
		case "3":
			opErr = s.getUser(ctx)
		case "4":
			opErr = s.createApplication(ctx)
		case "5":
			fmt.Fprintln(s.out, "\nGoodbye!")
			return nil
		default:
			warnColor.Fprintln(s.out, "\nInvalid option. Please try again.")
			continue
		}

		if errors.Is(opErr, errEndOfInput) {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if opErr != nil {
			s.logger.Warn("Menu operation failed", zap.String("option", choice), zap.Error(opErr))
			errorColor.Fprintf(s.out, "\nError: %s\n", opErr.Error())
		}
	}
}

func (s *Shell) endOfInput(err error) error {
	if errors.Is(err, errEndOfInput) {
		fmt.Fprintln(s.out)
		return nil
	}
	return err
}

func (s *Shell) banner() {
	fmt.Fprintln(s.out, "====================================")
	fmt.Fprintln(s.out, "   CIAM Admin Console")
	fmt.Fprintln(s.out, "   Entra External ID Management")
	fmt.Fprintln(s.out, "====================================")
	successColor.Fprintln(s.out, "✓ Connected to Entra External ID")
	if s.tenant != "" {
		fmt.Fprintf(s.out, "Tenant: %s\n", s.tenant)
	}
}

func (s *Shell) menu() {
	fmt.Fprint(s.out, `
+--------------------------------------+
|  MAIN MENU                           |
+--------------------------------------+
|  1. Create a new Identity            |
|  2. List users in directory          |
|  3. Read user information            |
|  4. Create OIDC application          |
|  5. Exit                             |
+--------------------------------------+
`)
	fmt.Fprint(s.out, "\nSelect an option (1-5): ")
}

// startReader runs the blocking line reads on their own goroutine so a prompt
// can be abandoned when the session context is cancelled. A line is read only
// when one is requested; masked password entry reads the terminal directly.
func (s *Shell) startReader() {
	s.requests = make(chan struct{})
	s.results = make(chan lineResult, 1)
	s.pending = false

	in, requests, results := s.in, s.requests, s.results
	go func() {
		for range requests {
			line, err := in.ReadString('\n')
			results <- lineResult{line: line, err: err}
		}
	}()
}

func (s *Shell) stopReader() {
	close(s.requests)
}

// readLine returns one line without its terminator. A final line without a
// newline is returned; an empty read at EOF is errEndOfInput.
func (s *Shell) readLine(ctx context.Context) (string, error) {
	if !s.pending {
		s.requests <- struct{}{}
		s.pending = true
	}

	var r lineResult
	select {
	case r = <-s.results:
		s.pending = false
	case <-ctx.Done():
		return "", ctx.Err()
	}

	line, err := r.line, r.err
	if err != nil {
		if errors.Is(err, io.EOF) {
			if line == "" {
				return "", errEndOfInput
			}
		} else {
			return "", err
		}
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (s *Shell) prompt(ctx context.Context, label string) (string, error) {
	fmt.Fprint(s.out, label)
	line, err := s.readLine(ctx)
	return strings.TrimSpace(line), err
}

func (s *Shell) readPassword(ctx context.Context, label string) (string, error) {
	fmt.Fprint(s.out, label)
	if s.passwords == nil {
		return s.readLine(ctx)
	}
	password, err := s.passwords.ReadPassword(ctx)
	fmt.Fprintln(s.out)
	return password, err
}

func (s *Shell) createUser(ctx context.Context) error {
	fmt.Fprintln(s.out, "\n--- Create New Identity ---")

	var req directory.NewUserRequest
	var err error
	if req.DisplayName, err = s.prompt(ctx, "Display Name: "); err != nil {
		return err
	}
	if req.MailNickname, err = s.prompt(ctx, "Mail Nickname (e.g., john.doe): "); err != nil {
		return err
	}
	if req.SignInEmail, err = s.prompt(ctx, "Email (e.g., name@domain.com): "); err != nil {
		return err
	}
	if req.Password, err = s.readPassword(ctx, "Password: "); err != nil {
		return err
	}

	fmt.Fprintln(s.out, "\nCreating user...")
	user, err := s.dir.CreateUser(ctx, req)
	if err != nil {
		return err
	}

	successColor.Fprintln(s.out, "\n✓ User created successfully!")
	fmt.Fprintf(s.out, "  User ID: %s\n", user.ID)
	fmt.Fprintf(s.out, "  Display Name: %s\n", user.DisplayName)
	fmt.Fprintf(s.out, "  UPN: %s\n", user.UserPrincipalName)
	fmt.Fprintf(s.out, "  Sign-in Email: %s\n", orNA(user.PrimarySignIn()))
	return nil
}

func (s *Shell) listUsers(ctx context.Context) error {
	fmt.Fprintln(s.out, "\n--- List Users ---")
	input, err := s.prompt(ctx, fmt.Sprintf("Number of users to retrieve (default %d): ", directory.DefaultListLimit))
	if err != nil {
		return err
	}

	top := directory.DefaultListLimit
	if input != "" {
		top, err = strconv.Atoi(input)
		if err != nil || top <= 0 || top > directory.MaxListLimit {
			return fmt.Errorf("%q is not a number between 1 and %d", input, directory.MaxListLimit)
		}
	}

	fmt.Fprintf(s.out, "\nRetrieving top %d users...\n", top)
	users, err := s.dir.ListUsers(ctx, top)
	if err != nil {
		return err
	}

	fmt.Fprintf(s.out, "\nFound %d user(s):\n\n", len(users))
	return writeUserTable(s.out, users)
}

func (s *Shell) getUser(ctx context.Context) error {
	fmt.Fprintln(s.out, "\n--- Read User Information ---")
	identifier, err := s.prompt(ctx, "Enter User ID or User Principal Name: ")
	if err != nil {
		return err
	}

	fmt.Fprintln(s.out, "\nRetrieving user information...")
	user, err := s.dir.GetUser(ctx, identifier)
	if err != nil {
		return err
	}
	if user == nil {
		warnColor.Fprintln(s.out, "\n⚠ User not found.")
		return nil
	}

	headingColor.Fprintln(s.out, "\n--- User Details ---")
	return writeUserDetails(s.out, user)
}

func (s *Shell) createApplication(ctx context.Context) error {
	fmt.Fprintln(s.out, "\n--- Create OIDC Application ---")
	displayName, err := s.prompt(ctx, "Application Display Name: ")
	if err != nil {
		return err
	}

	fmt.Fprintln(s.out, "\nEnter redirect URIs (one per line, press Enter on empty line to finish):")
	var redirectURIs []string
	for {
		uri, err := s.prompt(ctx, fmt.Sprintf("  Redirect URI #%d: ", len(redirectURIs)+1))
		if errors.Is(err, errEndOfInput) {
			break
		}
		if err != nil {
			return err
		}
		if uri == "" {
			break
		}
		redirectURIs = append(redirectURIs, uri)
	}
	if len(redirectURIs) == 0 {
		fmt.Fprintf(s.out, "  (Using default: %s)\n", directory.DefaultRedirectURI)
	}

	fmt.Fprintln(s.out, "\nCreating OIDC application...")
	app, err := s.dir.CreateOidcApplication(ctx, displayName, redirectURIs)
	if err != nil {
		return err
	}

	successColor.Fprintln(s.out, "\n✓ OIDC Application created successfully!")
	fmt.Fprintf(s.out, "  Application ID: %s\n", app.AppID)
	fmt.Fprintf(s.out, "  Object ID:      %s\n", app.ObjectID)
	fmt.Fprintf(s.out, "  Display Name:   %s\n", app.DisplayName)
	fmt.Fprintln(s.out, "\n  Redirect URIs:")
	for _, uri := range app.RedirectURIs {
		fmt.Fprintf(s.out, "    - %s\n", uri)
	}
	fmt.Fprintf(s.out, "\n  %s\n", directory.ClientSecretNote)
	return nil
}
