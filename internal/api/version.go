package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	// HeaderAPIVersion carries the negotiated version on requests and responses
	HeaderAPIVersion = "X-API-Version"

	// DefaultAPIVersion is the version served when the client does not ask for one
	DefaultAPIVersion = "1.0"
)

var supportedVersions = []string{"1.0", "1"}

// VersionMiddleware stamps responses with the API version and rejects
// requests that ask for a version this server does not speak
func VersionMiddleware(version string, supported []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header(HeaderAPIVersion, version)

		requested := c.GetHeader(HeaderAPIVersion)
		if requested == "" {
			c.Set("api_version", version)
			c.Next()
			return
		}

		if !isVersionSupported(requested, supported) {
			c.AbortWithStatusJSON(http.StatusNotAcceptable, gin.H{
				"error":              "unsupported_api_version",
				"message":            "Requested API version is not supported",
				"supported_versions": supported,
			})
			return
		}
		c.Set("api_version", requested)
		c.Next()
	}
}

// isVersionSupported accepts both "1" and "1.0" spellings
func isVersionSupported(version string, supported []string) bool {
	for _, v := range supported {
		if v == version || strings.HasPrefix(v, version+".") {
			return true
		}
	}
	return false
}

// GetVersion returns the negotiated API version for the request
func GetVersion(c *gin.Context) string {
	if v, exists := c.Get("api_version"); exists {
		if version, ok := v.(string); ok {
			return version
		}
	}
	return DefaultAPIVersion
}

// VersionRouteGroup creates the "/api/v<major>" group with version negotiation
func VersionRouteGroup(router *gin.Engine, version string) *gin.RouterGroup {
	major, _, _ := strings.Cut(strings.TrimPrefix(version, "v"), ".")
	group := router.Group("/api/v" + major)
	group.Use(VersionMiddleware(version, supportedVersions))
	return group
}
