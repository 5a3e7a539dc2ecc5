package console

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/openidx/ciam-console/internal/directory"
	"github.com/openidx/ciam-console/internal/directory/directorytest"
)

func init() {
	color.NoColor = true
}

const tenantDomain = "contoso.onmicrosoft.com"

// syncBuffer lets the test read output while the session is still writing
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type fixedPassword string

func (p fixedPassword) ReadPassword(context.Context) (string, error) { return string(p), nil }

// blockedPassword waits for the session to end
type blockedPassword struct{}

func (blockedPassword) ReadPassword(ctx context.Context) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func newSession(t *testing.T, input string, opts ...Option) (*Shell, *directorytest.Graph, *bytes.Buffer) {
	t.Helper()
	graph := directorytest.NewGraph(tenantDomain)
	svc := directory.NewService(graph, directory.Settings{
		TenantID:     "tenant",
		ClientID:     "client",
		ClientSecret: "secret",
		TenantName:   tenantDomain,
	}, zaptest.NewLogger(t))

	out := &bytes.Buffer{}
	opts = append([]Option{WithLogger(zaptest.NewLogger(t)), WithTenant(tenantDomain)}, opts...)
	return NewShell(svc, strings.NewReader(input), out, opts...), graph, out
}

func TestRun_EndOfInputExitsCleanly(t *testing.T) {
	shell, _, out := newSession(t, "")

	require.NoError(t, shell.Run(context.Background()))
	assert.Contains(t, out.String(), "CIAM Admin Console")
	assert.Contains(t, out.String(), "Tenant: "+tenantDomain)
}

func TestRun_InvalidOptionThenExit(t *testing.T) {
	shell, _, out := newSession(t, "9\n5\n")

	require.NoError(t, shell.Run(context.Background()))
	assert.Contains(t, out.String(), "Invalid option. Please try again.")
	assert.Contains(t, out.String(), "Goodbye!")
}

func TestRun_CreateUser(t *testing.T) {
	shell, graph, out := newSession(t, "1\nAda Lovelace\nada\nada@example.com\nP@ssw0rd!\n5\n")

	require.NoError(t, shell.Run(context.Background()))
	assert.Contains(t, out.String(), "✓ User created successfully!")
	assert.Contains(t, out.String(), "Display Name: Ada Lovelace")
	assert.Contains(t, out.String(), "Sign-in Email: ada@example.com")

	require.Len(t, graph.CreatedUsers, 1)
	assert.Equal(t, "P@ssw0rd!", graph.CreatedUsers[0].PasswordProfile.Password)
}

func TestRun_CreateUserWithMaskedPassword(t *testing.T) {
	shell, graph, out := newSession(t, "1\nGrace\ngrace\ngrace@example.com\n5\n",
		WithPasswordReader(fixedPassword("Masked!123")))

	require.NoError(t, shell.Run(context.Background()))
	assert.NotContains(t, out.String(), "Masked!123")
	require.Len(t, graph.CreatedUsers, 1)
	assert.Equal(t, "Masked!123", graph.CreatedUsers[0].PasswordProfile.Password)
}

func TestRun_ListUsers(t *testing.T) {
	shell, graph, out := newSession(t, "2\n2\n5\n")
	graph.Seed(
		directory.GraphUser{DisplayName: "Zed"},
		directory.GraphUser{DisplayName: "Amy", Identities: []directory.ObjectIdentity{
			{SignInType: "emailAddress", Issuer: tenantDomain, IssuerAssignedID: "amy@example.com"},
		}},
		directory.GraphUser{DisplayName: "Bob"},
	)

	require.NoError(t, shell.Run(context.Background()))
	text := out.String()
	assert.Contains(t, text, "Found 2 user(s)")
	assert.Contains(t, text, "DISPLAY NAME")
	assert.Contains(t, text, "amy@example.com")
	assert.NotContains(t, text, "Zed")
	assert.Less(t, strings.Index(text, "Amy"), strings.Index(text, "Bob"))
}

func TestRun_ListUsersDefaultAndBadCount(t *testing.T) {
	shell, graph, out := newSession(t, "2\nabc\n2\n\n5\n")

	require.NoError(t, shell.Run(context.Background()))
	assert.Contains(t, out.String(), `Error: "abc" is not a number between 1 and 999`)
	assert.Contains(t, out.String(), "Retrieving top 10 users...")
	require.Len(t, graph.ListQueries, 1)
	assert.Equal(t, 10, graph.ListQueries[0].Top)
}

func TestRun_ReadUser(t *testing.T) {
	created := time.Date(2024, 3, 5, 14, 7, 9, 0, time.UTC)
	shell, graph, out := newSession(t, "")
	seeded := graph.Seed(directory.GraphUser{DisplayName: "Linus", CreatedDateTime: &created})[0]

	shell.in.Reset(strings.NewReader("3\n" + seeded.ID + "\n3\nghost@" + tenantDomain + "\n5\n"))
	require.NoError(t, shell.Run(context.Background()))

	text := out.String()
	assert.Contains(t, text, "--- User Details ---")
	assert.Contains(t, text, "Linus")
	assert.Contains(t, text, "2024-03-05 14:07:09")
	assert.Regexp(t, `Job Title:\s+N/A`, text)
	assert.Regexp(t, `Account Enabled:\s+Yes`, text)
	assert.Contains(t, text, "User not found.")
}

func TestRun_CreateApplicationDefaultRedirect(t *testing.T) {
	shell, graph, out := newSession(t, "4\nStorefront\n\n5\n")

	require.NoError(t, shell.Run(context.Background()))
	text := out.String()
	assert.Contains(t, text, "(Using default: http://localhost:3000/callback)")
	assert.Contains(t, text, "✓ OIDC Application created successfully!")
	assert.Contains(t, text, "    - http://localhost:3000/callback")
	assert.Contains(t, text, directory.ClientSecretNote)

	apps := graph.Applications()
	require.Len(t, apps, 1)
	assert.Contains(t, text, "Application ID: "+apps[0].AppID)
}

func TestRun_CreateApplicationRedirectsInOrder(t *testing.T) {
	shell, graph, out := newSession(t, "4\nPortal\nhttps://b.example.com/cb\nhttps://a.example.com/cb\n\n5\n")

	require.NoError(t, shell.Run(context.Background()))
	assert.NotContains(t, out.String(), "Using default")
	require.Len(t, graph.CreatedApps, 1)
	assert.Equal(t, []string{"https://b.example.com/cb", "https://a.example.com/cb"}, graph.CreatedApps[0].Web.RedirectURIs)
}

func TestRun_ErrorsDoNotEndTheSession(t *testing.T) {
	shell, graph, out := newSession(t, "2\n5\n5\n")
	graph.FailNext(&directory.GraphError{
		StatusCode: http.StatusForbidden,
		Code:       "Authorization_RequestDenied",
		Message:    "Insufficient privileges to complete the operation.",
	})

	require.NoError(t, shell.Run(context.Background()))
	text := out.String()
	assert.Contains(t, text, "Error: ")
	assert.Contains(t, text, "Insufficient privileges")
	assert.Contains(t, text, "Goodbye!")
}

func TestRun_CancelledContext(t *testing.T) {
	shell, _, _ := newSession(t, "2\n")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, shell.Run(ctx), context.Canceled)
}

func TestRun_ListUsersRejectsCountAboveMaximum(t *testing.T) {
	shell, graph, out := newSession(t, "2\n5000\n5\n")

	require.NoError(t, shell.Run(context.Background()))
	assert.Contains(t, out.String(), `Error: "5000" is not a number between 1 and 999`)
	assert.NotContains(t, out.String(), "Retrieving top 5000 users")
	assert.Empty(t, graph.ListQueries)
}

// runUntilCancelled starts the session on a pipe that never delivers the
// remaining input, cancels once the given prompt is shown and returns Run's error
func runUntilCancelled(t *testing.T, typed, waitFor string, opts ...Option) (*directorytest.Graph, error) {
	t.Helper()
	pr, pw := io.Pipe()
	t.Cleanup(func() { _ = pw.Close() })

	graph := directorytest.NewGraph(tenantDomain)
	svc := directory.NewService(graph, directory.Settings{TenantName: tenantDomain}, zaptest.NewLogger(t))
	out := &syncBuffer{}
	shell := NewShell(svc, pr, out, opts...)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- shell.Run(ctx) }()

	go func() { _, _ = io.WriteString(pw, typed) }()
	require.Eventually(t, func() bool { return strings.Contains(out.String(), waitFor) },
		2*time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		return graph, err
	case <-time.After(2 * time.Second):
		t.Fatal("session kept waiting for input after the context was cancelled")
		return nil, nil
	}
}

func TestRun_CancelWhileWaitingForMenuChoice(t *testing.T) {
	_, err := runUntilCancelled(t, "", "Select an option (1-5): ")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRun_CancelAtSubPromptSkipsOperation(t *testing.T) {
	graph, err := runUntilCancelled(t, "1\nAda\n", "Mail Nickname (e.g., john.doe): ")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, graph.CreatedUsers)
}

func TestRun_CancelDuringMaskedPassword(t *testing.T) {
	graph, err := runUntilCancelled(t, "1\nAda\nada\nada@example.com\n", "Password: ",
		WithPasswordReader(blockedPassword{}))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, graph.CreatedUsers)
}
