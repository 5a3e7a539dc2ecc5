package directory

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/openidx/ciam-console/internal/common/logger"
)

// ErrNotFound matches a GraphError for a directory object that does not exist
var ErrNotFound = errors.New("directory object not found")

// GraphAPI is the slice of Microsoft Graph the console depends on
type GraphAPI interface {
	CreateUser(ctx context.Context, user GraphUser) (*GraphUser, error)
	ListUsers(ctx context.Context, query ListQuery) ([]GraphUser, error)
	GetUser(ctx context.Context, idOrUPN string, fields []string) (*GraphUser, error)
	CreateApplication(ctx context.Context, app GraphApplication) (*GraphApplication, error)
}

// Doer executes HTTP requests. *http.Client and the circuit breaker client both satisfy it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ListQuery selects a single page of users
type ListQuery struct {
	Top     int
	Select  []string
	OrderBy []string
}

// Graph wire types

type GraphUser struct {
	ID                string           `json:"id,omitempty"`
	AccountEnabled    *bool            `json:"accountEnabled,omitempty"`
	DisplayName       string           `json:"displayName,omitempty"`
	MailNickname      string           `json:"mailNickname,omitempty"`
	UserPrincipalName string           `json:"userPrincipalName,omitempty"`
	Mail              *string          `json:"mail,omitempty"`
	JobTitle          *string          `json:"jobTitle,omitempty"`
	Department        *string          `json:"department,omitempty"`
	CreatedDateTime   *time.Time       `json:"createdDateTime,omitempty"`
	Identities        []ObjectIdentity `json:"identities,omitempty"`
	PasswordProfile   *PasswordProfile `json:"passwordProfile,omitempty"`
}

type ObjectIdentity struct {
	SignInType       string `json:"signInType"`
	Issuer           string `json:"issuer"`
	IssuerAssignedID string `json:"issuerAssignedId"`
}

type PasswordProfile struct {
	ForceChangePasswordNextSignIn bool   `json:"forceChangePasswordNextSignIn"`
	Password                      string `json:"password"`
}

type GraphApplication struct {
	ID                     string                   `json:"id,omitempty"`
	AppID                  string                   `json:"appId,omitempty"`
	DisplayName            string                   `json:"displayName"`
	SignInAudience         string                   `json:"signInAudience,omitempty"`
	Web                    *WebApplication          `json:"web,omitempty"`
	RequiredResourceAccess []RequiredResourceAccess `json:"requiredResourceAccess,omitempty"`
}

type WebApplication struct {
	RedirectURIs          []string               `json:"redirectUris"`
	ImplicitGrantSettings *ImplicitGrantSettings `json:"implicitGrantSettings,omitempty"`
}

type ImplicitGrantSettings struct {
	EnableIDTokenIssuance     bool `json:"enableIdTokenIssuance"`
	EnableAccessTokenIssuance bool `json:"enableAccessTokenIssuance"`
}

type RequiredResourceAccess struct {
	ResourceAppID  uuid.UUID        `json:"resourceAppId"`
	ResourceAccess []ResourceAccess `json:"resourceAccess"`
}

type ResourceAccess struct {
	ID   uuid.UUID `json:"id"`
	Type string    `json:"type"`
}

type graphUsersResponse struct {
	Value    []GraphUser `json:"value"`
	NextLink string      `json:"@odata.nextLink"`
}

type graphErrorEnvelope struct {
	Error struct {
		Code       string `json:"code"`
		Message    string `json:"message"`
		InnerError struct {
			RequestID string `json:"request-id"`
		} `json:"innerError"`
	} `json:"error"`
}

// GraphError is a non-2xx answer from Graph or the token endpoint
type GraphError struct {
	StatusCode int
	Code       string
	Message    string
	RequestID  string

	// fromTokenEndpoint marks failures of the client-credentials exchange
	fromTokenEndpoint bool
}

func (e *GraphError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("Microsoft Graph returned %d (%s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("Microsoft Graph returned %d: %s", e.StatusCode, e.Message)
}

// Is lets errors.Is(err, ErrNotFound) match a Graph 404. A 404 from the token
// endpoint means a wrong tenant, not a missing object.
func (e *GraphError) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == http.StatusNotFound && !e.fromTokenEndpoint
}

func (e *GraphError) RemoteCode() string    { return e.Code }
func (e *GraphError) RemoteMessage() string { return e.Message }
func (e *GraphError) HTTPStatus() int       { return e.StatusCode }

// GraphClient talks to Microsoft Graph over HTTP
type GraphClient struct {
	baseURL string
	client  Doer
	logger  *zap.Logger
	perf    *logger.PerformanceLogger
}

// NewGraphClient creates a client rooted at baseURL (e.g. https://graph.microsoft.com/v1.0).
// client must already authenticate requests; see CredentialProvider.HTTPClient.
func NewGraphClient(baseURL string, client Doer, log *zap.Logger) *GraphClient {
	log = log.With(zap.String("component", "graph-client"))
	return &GraphClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
		logger:  log,
		perf:    logger.NewPerformanceLogger(log),
	}
}

// CreateUser posts a new user to /users
func (c *GraphClient) CreateUser(ctx context.Context, user GraphUser) (*GraphUser, error) {
	var created GraphUser
	if err := c.do(ctx, http.MethodPost, "/users", nil, user, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// ListUsers fetches one page of /users. The @odata.nextLink is ignored.
func (c *GraphClient) ListUsers(ctx context.Context, query ListQuery) ([]GraphUser, error) {
	params := url.Values{}
	if query.Top > 0 {
		params.Set("$top", strconv.Itoa(query.Top))
	}
	if len(query.Select) > 0 {
		params.Set("$select", strings.Join(query.Select, ","))
	}
	if len(query.OrderBy) > 0 {
		params.Set("$orderby", strings.Join(query.OrderBy, ","))
	}

	var page graphUsersResponse
	if err := c.do(ctx, http.MethodGet, "/users", params, nil, &page); err != nil {
		return nil, err
	}
	if page.NextLink != "" {
		c.logger.Debug("More users available than requested", zap.Int("top", query.Top))
	}
	return page.Value, nil
}

// GetUser fetches /users/{id | userPrincipalName}
func (c *GraphClient) GetUser(ctx context.Context, idOrUPN string, fields []string) (*GraphUser, error) {
	params := url.Values{}
	if len(fields) > 0 {
		params.Set("$select", strings.Join(fields, ","))
	}

	var user GraphUser
	if err := c.do(ctx, http.MethodGet, "/users/"+url.PathEscape(idOrUPN), params, nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// CreateApplication posts a new application registration to /applications
func (c *GraphClient) CreateApplication(ctx context.Context, app GraphApplication) (*GraphApplication, error) {
	var created GraphApplication
	if err := c.do(ctx, http.MethodPost, "/applications", nil, app, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// do performs one round trip. There are no retries.
func (c *GraphClient) do(ctx context.Context, method, path string, query url.Values, body, out interface{}) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		c.perf.LogAPICall(path, method, 0, time.Since(start), err)
		return tokenError(err)
	}
	defer resp.Body.Close()
	c.perf.LogAPICall(path, method, resp.StatusCode, time.Since(start), nil)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeGraphError(resp)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return nil
}

func decodeGraphError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	gerr := &GraphError{
		StatusCode: resp.StatusCode,
		RequestID:  resp.Header.Get("request-id"),
	}

	var envelope graphErrorEnvelope
	if err := json.Unmarshal(raw, &envelope); err == nil && envelope.Error.Code != "" {
		gerr.Code = envelope.Error.Code
		gerr.Message = envelope.Error.Message
		if gerr.RequestID == "" {
			gerr.RequestID = envelope.Error.InnerError.RequestID
		}
		return gerr
	}

	gerr.Message = strings.TrimSpace(string(raw))
	if gerr.Message == "" {
		gerr.Message = http.StatusText(resp.StatusCode)
	}
	return gerr
}

// tokenError surfaces the identity platform's own diagnostic when the token
// request is what failed
func tokenError(err error) error {
	var retrieve *oauth2.RetrieveError
	if !errors.As(err, &retrieve) {
		return err
	}
	gerr := &GraphError{
		Code:              retrieve.ErrorCode,
		Message:           retrieve.ErrorDescription,
		fromTokenEndpoint: true,
	}
	if retrieve.Response != nil {
		gerr.StatusCode = retrieve.Response.StatusCode
	}
	if gerr.Message == "" {
		gerr.Message = strings.TrimSpace(string(retrieve.Body))
	}
	return fmt.Errorf("token acquisition failed: %w", gerr)
}
