// Package directory provides identity and application provisioning against a
// Microsoft Entra External ID (CIAM) tenant through Microsoft Graph.
package directory

import (
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/openidx/ciam-console/internal/common/errors"
	"github.com/openidx/ciam-console/internal/common/validation"
)

const (
	DefaultAuthorityHost = "https://login.microsoftonline.com"
	DefaultGraphBaseURL  = "https://graph.microsoft.com/v1.0"

	// DefaultRedirectURI is registered when the operator supplies none
	DefaultRedirectURI = "http://localhost:3000/callback"

	// ClientSecretNote accompanies every new registration, which has no secret yet
	ClientSecretNote = "Note: You may need to create a client secret in the Azure Portal."

	// DefaultListLimit is the page size used when the caller does not pick one
	DefaultListLimit = 10
	// MaxListLimit is the largest $top Graph accepts for /users
	MaxListLimit = 999

	SignInTypeEmailAddress = "emailAddress"

	// SignInAudienceMultiTenantAndPersonal admits organizational and personal Microsoft accounts
	SignInAudienceMultiTenantAndPersonal = "AzureADandPersonalMicrosoftAccount"

	resourceAccessTypeScope = "Scope"
)

var (
	// MicrosoftGraphAppID is the well-known resource application id of Microsoft Graph
	MicrosoftGraphAppID = uuid.MustParse("00000003-0000-0000-c000-000000000000")
	// UserReadScopeID is the delegated User.Read permission on Microsoft Graph
	UserReadScopeID = uuid.MustParse("e1fe6dd8-ba31-4d61-89e7-88639da4683d")
)

// Fields requested for each read. Graph returns only what $select names.
var (
	UserListFields = []string{
		"id", "displayName", "userPrincipalName", "mail", "jobTitle",
		"department", "accountEnabled", "identities",
	}
	UserDetailFields = []string{
		"id", "displayName", "userPrincipalName", "mail", "jobTitle",
		"department", "accountEnabled", "createdDateTime", "identities",
	}
)

// Settings identifies the tenant and the service principal the console acts as.
// The mapstructure keys match the "AzureAd" section of appsettings.json.
type Settings struct {
	TenantID     string `mapstructure:"TenantId" json:"TenantId"`
	ClientID     string `mapstructure:"ClientId" json:"ClientId"`
	ClientSecret string `mapstructure:"ClientSecret" json:"-"`
	// TenantName is the tenant domain, used as the issuer of email sign-in identities
	TenantName string `mapstructure:"TenantName" json:"TenantName"`

	// Endpoint overrides, mostly for sovereign clouds and tests
	AuthorityHost string `mapstructure:"AuthorityHost" json:"AuthorityHost,omitempty"`
	GraphBaseURL  string `mapstructure:"GraphBaseUrl" json:"GraphBaseUrl,omitempty"`
}

// Validate reports every missing required setting in one CONFIGURATION_ERROR
func (s Settings) Validate() error {
	var errs validation.ValidationErrors
	errs.Add(validation.ValidateRequired("TenantId", s.TenantID))
	errs.Add(validation.ValidateRequired("ClientId", s.ClientID))
	errs.Add(validation.ValidateRequired("ClientSecret", s.ClientSecret))
	errs.Add(validation.ValidateRequired("TenantName", s.TenantName))
	if errs.HasErrors() {
		return apperrors.Configuration(errs.Fields()...)
	}

	var urlErrs validation.ValidationErrors
	urlErrs.Add(validation.ValidateURL("AuthorityHost", s.AuthorityHost))
	urlErrs.Add(validation.ValidateURL("GraphBaseUrl", s.GraphBaseURL))
	if urlErrs.HasErrors() {
		return apperrors.Configuration().WithDetails(urlErrs.Error())
	}
	return nil
}

// WithDefaults fills unset endpoint overrides
func (s Settings) WithDefaults() Settings {
	if s.AuthorityHost == "" {
		s.AuthorityHost = DefaultAuthorityHost
	}
	if s.GraphBaseURL == "" {
		s.GraphBaseURL = DefaultGraphBaseURL
	}
	s.AuthorityHost = strings.TrimRight(s.AuthorityHost, "/")
	s.GraphBaseURL = strings.TrimRight(s.GraphBaseURL, "/")
	return s
}

// SignInIdentity binds a sign-in method and issuer to a user
type SignInIdentity struct {
	SignInType       string `json:"signInType"`
	Issuer           string `json:"issuer"`
	IssuerAssignedID string `json:"issuerAssignedId"`
}

// UserProfile is the local projection of a directory user
type UserProfile struct {
	ID                string           `json:"id"`
	DisplayName       string           `json:"displayName"`
	UserPrincipalName string           `json:"userPrincipalName"`
	Mail              *string          `json:"mail,omitempty"`
	JobTitle          *string          `json:"jobTitle,omitempty"`
	Department        *string          `json:"department,omitempty"`
	AccountEnabled    bool             `json:"accountEnabled"`
	CreatedAt         *time.Time       `json:"createdDateTime,omitempty"`
	Identities        []SignInIdentity `json:"identities"`
}

// PrimarySignIn returns the issuer-assigned id of the first sign-in identity
func (u UserProfile) PrimarySignIn() string {
	if len(u.Identities) == 0 {
		return ""
	}
	return u.Identities[0].IssuerAssignedID
}

// HasSignIn reports whether any identity was issued for the given sign-in name
func (u UserProfile) HasSignIn(issuerAssignedID string) bool {
	for _, id := range u.Identities {
		if strings.EqualFold(id.IssuerAssignedID, issuerAssignedID) {
			return true
		}
	}
	return false
}

// NewUserRequest carries operator input for CreateUser
type NewUserRequest struct {
	DisplayName  string `json:"displayName"`
	MailNickname string `json:"mailNickname"`
	SignInEmail  string `json:"signInEmail"`
	Password     string `json:"password"`
}

// OidcApplication is the local projection of a registered application
type OidcApplication struct {
	AppID        string   `json:"appId"`
	ObjectID     string   `json:"objectId"`
	DisplayName  string   `json:"displayName"`
	RedirectURIs []string `json:"redirectUris"`
}
