package directory

// BuildUserPayload shapes a user for email sign-in in a CIAM tenant. Email
// sign-in is expressed as an identity issued by the tenant domain, not as a
// userPrincipalName; without it the user is created but cannot sign in.
func BuildUserPayload(settings Settings, req NewUserRequest) GraphUser {
	enabled := true
	return GraphUser{
		AccountEnabled: &enabled,
		DisplayName:    req.DisplayName,
		MailNickname:   req.MailNickname,
		Identities: []ObjectIdentity{
			{
				SignInType:       SignInTypeEmailAddress,
				Issuer:           settings.TenantName,
				IssuerAssignedID: req.SignInEmail,
			},
		},
		PasswordProfile: &PasswordProfile{
			ForceChangePasswordNextSignIn: false,
			Password:                      req.Password,
		},
	}
}

// RedirectURIsOrDefault returns a copy of uris, or the default callback when empty
func RedirectURIsOrDefault(uris []string) []string {
	if len(uris) == 0 {
		return []string{DefaultRedirectURI}
	}
	return append([]string(nil), uris...)
}

// BuildApplicationPayload shapes an OIDC web application registration: ID
// tokens from the implicit grant, no implicit access tokens, and delegated
// User.Read on Microsoft Graph.
func BuildApplicationPayload(displayName string, redirectURIs []string) GraphApplication {
	return GraphApplication{
		DisplayName:    displayName,
		SignInAudience: SignInAudienceMultiTenantAndPersonal,
		Web: &WebApplication{
			RedirectURIs: RedirectURIsOrDefault(redirectURIs),
			ImplicitGrantSettings: &ImplicitGrantSettings{
				EnableIDTokenIssuance:     true,
				EnableAccessTokenIssuance: false,
			},
		},
		RequiredResourceAccess: []RequiredResourceAccess{
			{
				ResourceAppID: MicrosoftGraphAppID,
				ResourceAccess: []ResourceAccess{
					{ID: UserReadScopeID, Type: resourceAccessTypeScope},
				},
			},
		},
	}
}
