package config

import (
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// ProductionWarnings lists settings that are acceptable for local work but not
// for a production tenant
func (c *Config) ProductionWarnings() []string {
	var warnings []string

	if c.AzureAD.ClientSecret != "" && c.ConfigFile != "" && !secretFromEnv(c) {
		warnings = append(warnings,
			"AzureAd:ClientSecret is stored in "+filepath.Base(c.ConfigFile)+"; supply it through AZURE_CLIENT_SECRET or CIAM_AZUREAD_CLIENTSECRET")
	}
	for _, overlay := range c.Overlays {
		warnings = append(warnings, "development overlay "+filepath.Base(overlay)+" was merged into production settings")
	}
	if u, err := url.Parse(c.AzureAD.AuthorityHost); err == nil && u.Scheme != "https" {
		warnings = append(warnings, "AzureAd:AuthorityHost does not use https")
	}
	if u, err := url.Parse(c.AzureAD.GraphBaseURL); err == nil && u.Scheme != "https" {
		warnings = append(warnings, "AzureAd:GraphBaseUrl does not use https")
	}
	if strings.EqualFold(c.LogLevel, "debug") {
		warnings = append(warnings, "debug logging records directory request details")
	}

	return warnings
}

func secretFromEnv(c *Config) bool {
	for _, name := range []string{"CIAM_AZUREAD_CLIENTSECRET", "AZURE_CLIENT_SECRET"} {
		if v, ok := os.LookupEnv(name); ok && v == c.AzureAD.ClientSecret {
			return true
		}
	}
	return false
}

// LogSecurityWarnings logs actionable security warnings when running in
// production with insecure settings. Call this at startup after
// configuration is loaded.
func (c *Config) LogSecurityWarnings(log *zap.Logger) {
	if !c.IsProduction() {
		return
	}

	warnings := c.ProductionWarnings()

	for _, w := range warnings {
		log.Warn("SECURITY", zap.String("warning", w))
	}

	if len(warnings) > 0 {
		log.Warn("SECURITY: production deployment has insecure configuration",
			zap.Int("warning_count", len(warnings)))
	}
}
