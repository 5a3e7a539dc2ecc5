// Package directorytest provides an in-memory Microsoft Graph for tests
package directorytest

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/openidx/ciam-console/internal/directory"
)

// Graph implements directory.GraphAPI against in-memory state. It honors
// $top, $select and $orderby=displayName, and looks users up by id or UPN.
type Graph struct {
	mu           sync.Mutex
	domain       string
	users        []directory.GraphUser
	applications []directory.GraphApplication
	failNext     error
	now          func() time.Time

	// Requests as received, for payload assertions
	CreatedUsers []directory.GraphUser
	CreatedApps  []directory.GraphApplication
	ListQueries  []directory.ListQuery
	Lookups      []string
}

var _ directory.GraphAPI = (*Graph)(nil)

// NewGraph creates an empty directory whose generated UPNs use domain
func NewGraph(domain string) *Graph {
	return &Graph{
		domain: domain,
		now:    time.Now,
	}
}

// Seed adds users as if they already existed; missing ids and UPNs are generated
func (g *Graph) Seed(users ...directory.GraphUser) []directory.GraphUser {
	g.mu.Lock()
	defer g.mu.Unlock()
	seeded := make([]directory.GraphUser, 0, len(users))
	for _, u := range users {
		g.fill(&u)
		g.users = append(g.users, u)
		seeded = append(seeded, u)
	}
	return seeded
}

// FailNext makes the next call return err
func (g *Graph) FailNext(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failNext = err
}

// CreateUser stores the user, rejecting a sign-in name that is already taken
func (g *Graph) CreateUser(ctx context.Context, user directory.GraphUser) (*directory.GraphUser, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.takeFailure(ctx); err != nil {
		return nil, err
	}
	g.CreatedUsers = append(g.CreatedUsers, user)

	if user.PasswordProfile == nil || user.PasswordProfile.Password == "" {
		return nil, badRequest("Request_BadRequest", "Invalid value specified for property 'passwordProfile' of resource 'User'.")
	}
	for _, id := range user.Identities {
		if g.signInTaken(id) {
			return nil, badRequest("Request_BadRequest",
				"Another object with the same value for property identities already exists.")
		}
	}

	stored := user
	stored.PasswordProfile = nil
	g.fill(&stored)
	g.users = append(g.users, stored)

	created := stored
	return &created, nil
}

// ListUsers returns one page ordered by display name
func (g *Graph) ListUsers(ctx context.Context, query directory.ListQuery) ([]directory.GraphUser, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.takeFailure(ctx); err != nil {
		return nil, err
	}
	g.ListQueries = append(g.ListQueries, query)

	users := append([]directory.GraphUser(nil), g.users...)
	for _, key := range query.OrderBy {
		if key == "displayName" {
			sort.SliceStable(users, func(i, j int) bool {
				return strings.ToLower(users[i].DisplayName) < strings.ToLower(users[j].DisplayName)
			})
		}
	}
	if query.Top > 0 && len(users) > query.Top {
		users = users[:query.Top]
	}

	page := make([]directory.GraphUser, 0, len(users))
	for _, u := range users {
		page = append(page, project(u, query.Select))
	}
	return page, nil
}

// GetUser matches on object id or user principal name
func (g *Graph) GetUser(ctx context.Context, idOrUPN string, fields []string) (*directory.GraphUser, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.takeFailure(ctx); err != nil {
		return nil, err
	}
	g.Lookups = append(g.Lookups, idOrUPN)

	for _, u := range g.users {
		if u.ID == idOrUPN || strings.EqualFold(u.UserPrincipalName, idOrUPN) {
			found := project(u, fields)
			return &found, nil
		}
	}
	return nil, &directory.GraphError{
		StatusCode: http.StatusNotFound,
		Code:       "Request_ResourceNotFound",
		Message:    fmt.Sprintf("Resource '%s' does not exist or one of its queried reference-property objects are not present.", idOrUPN),
	}
}

// CreateApplication stores the registration and assigns object and client ids
func (g *Graph) CreateApplication(ctx context.Context, app directory.GraphApplication) (*directory.GraphApplication, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.takeFailure(ctx); err != nil {
		return nil, err
	}
	g.CreatedApps = append(g.CreatedApps, app)

	stored := app
	stored.ID = uuid.NewString()
	stored.AppID = uuid.NewString()
	g.applications = append(g.applications, stored)

	created := stored
	return &created, nil
}

// Applications returns the registered applications
func (g *Graph) Applications() []directory.GraphApplication {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]directory.GraphApplication(nil), g.applications...)
}

func (g *Graph) takeFailure(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := g.failNext
	g.failNext = nil
	return err
}

func (g *Graph) fill(u *directory.GraphUser) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.UserPrincipalName == "" {
		u.UserPrincipalName = strings.ReplaceAll(u.ID, "-", "") + "@" + g.domain
	}
	if u.AccountEnabled == nil {
		enabled := true
		u.AccountEnabled = &enabled
	}
	if u.CreatedDateTime == nil {
		created := g.now().UTC().Truncate(time.Second)
		u.CreatedDateTime = &created
	}
}

func (g *Graph) signInTaken(candidate directory.ObjectIdentity) bool {
	for _, u := range g.users {
		for _, id := range u.Identities {
			if strings.EqualFold(id.Issuer, candidate.Issuer) &&
				strings.EqualFold(id.IssuerAssignedID, candidate.IssuerAssignedID) {
				return true
			}
		}
	}
	return false
}

// project keeps only the selected properties, as Graph does for $select
func project(u directory.GraphUser, fields []string) directory.GraphUser {
	if len(fields) == 0 {
		return u
	}
	keep := make(map[string]bool, len(fields))
	for _, f := range fields {
		keep[f] = true
	}

	var out directory.GraphUser
	if keep["id"] {
		out.ID = u.ID
	}
	if keep["displayName"] {
		out.DisplayName = u.DisplayName
	}
	if keep["userPrincipalName"] {
		out.UserPrincipalName = u.UserPrincipalName
	}
	if keep["mailNickname"] {
		out.MailNickname = u.MailNickname
	}
	if keep["mail"] {
		out.Mail = u.Mail
	}
	if keep["jobTitle"] {
		out.JobTitle = u.JobTitle
	}
	if keep["department"] {
		out.Department = u.Department
	}
	if keep["accountEnabled"] {
		out.AccountEnabled = u.AccountEnabled
	}
	if keep["createdDateTime"] {
		out.CreatedDateTime = u.CreatedDateTime
	}
	if keep["identities"] {
		out.Identities = append([]directory.ObjectIdentity(nil), u.Identities...)
	}
	return out
}

func badRequest(code, message string) error {
	return &directory.GraphError{
		StatusCode: http.StatusBadRequest,
		Code:       code,
		Message:    message,
	}
}
