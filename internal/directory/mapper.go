package directory

// mapGraphUser converts a Graph user into a UserProfile. Fields outside the
// requested $select arrive as zero values and stay that way.
func mapGraphUser(u GraphUser) UserProfile {
	profile := UserProfile{
		ID:                u.ID,
		DisplayName:       u.DisplayName,
		UserPrincipalName: u.UserPrincipalName,
		Mail:              u.Mail,
		JobTitle:          u.JobTitle,
		Department:        u.Department,
		AccountEnabled:    u.AccountEnabled != nil && *u.AccountEnabled,
		CreatedAt:         u.CreatedDateTime,
		Identities:        make([]SignInIdentity, 0, len(u.Identities)),
	}

	for _, id := range u.Identities {
		profile.Identities = append(profile.Identities, SignInIdentity{
			SignInType:       id.SignInType,
			Issuer:           id.Issuer,
			IssuerAssignedID: id.IssuerAssignedID,
		})
	}

	return profile
}

func mapGraphUsers(users []GraphUser) []UserProfile {
	profiles := make([]UserProfile, 0, len(users))
	for _, u := range users {
		profiles = append(profiles, mapGraphUser(u))
	}
	return profiles
}

// mapGraphApplication keeps the redirect URIs that were sent; Graph echoes
// them back but a partial response must not lose them.
func mapGraphApplication(app GraphApplication, sent []string) OidcApplication {
	redirects := sent
	if app.Web != nil && len(app.Web.RedirectURIs) > 0 {
		redirects = app.Web.RedirectURIs
	}
	return OidcApplication{
		AppID:        app.AppID,
		ObjectID:     app.ID,
		DisplayName:  app.DisplayName,
		RedirectURIs: append([]string(nil), redirects...),
	}
}
