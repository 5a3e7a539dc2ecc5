// Package api exposes the directory operations as a small JSON API for automation
package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apperrors "github.com/openidx/ciam-console/internal/common/errors"
	"github.com/openidx/ciam-console/internal/common/validation"
	"github.com/openidx/ciam-console/internal/directory"
)

// Directory is the set of operations the API serves
type Directory interface {
	CreateUser(ctx context.Context, req directory.NewUserRequest) (*directory.UserProfile, error)
	ListUsers(ctx context.Context, limit int) ([]directory.UserProfile, error)
	GetUser(ctx context.Context, identifier string) (*directory.UserProfile, error)
	CreateOidcApplication(ctx context.Context, displayName string, redirectURIs []string) (*directory.OidcApplication, error)
}

// Handler serves the /api/v1 routes
type Handler struct {
	dir    Directory
	logger *zap.Logger
}

// NewHandler creates a new Handler
func NewHandler(dir Directory, logger *zap.Logger) *Handler {
	return &Handler{
		dir:    dir,
		logger: logger.With(zap.String("handler", "directory")),
	}
}

// CreateApplicationRequest is the body of POST /applications
type CreateApplicationRequest struct {
	DisplayName  string   `json:"displayName"`
	RedirectURIs []string `json:"redirectUris"`
}

// ApplicationResponse adds the out-of-band client secret note to a registration
type ApplicationResponse struct {
	directory.OidcApplication
	Note string `json:"note"`
}

// UserListResponse is the body of GET /users
type UserListResponse struct {
	Users []directory.UserProfile `json:"users"`
	Count int                     `json:"count"`
}

// CreateUser handles POST /users
func (h *Handler) CreateUser(c *gin.Context) {
	var req directory.NewUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperrors.HandleError(c, apperrors.BadRequest("Invalid user payload").WithDetails(err.Error()))
		return
	}

	var errs validation.ValidationErrors
	errs.Add(validation.ValidateRequired("displayName", req.DisplayName))
	errs.Add(validation.ValidateRequired("mailNickname", req.MailNickname))
	errs.Add(validation.ValidateRequired("signInEmail", req.SignInEmail))
	errs.Add(validation.ValidateRequired("password", req.Password))
	if errs.HasErrors() {
		h.logger.Debug("Rejected request", zap.String("path", c.FullPath()), zap.Strings("fields", errs.Fields()))
		apperrors.HandleError(c, invalid(&errs))
		return
	}

	user, err := h.dir.CreateUser(c.Request.Context(), req)
	if err != nil {
		apperrors.HandleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, user)
}

// ListUsers handles GET /users?limit=N
func (h *Handler) ListUsers(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			apperrors.HandleError(c, apperrors.BadRequest("limit must be a number").WithDetails(raw))
			return
		}
		var errs validation.ValidationErrors
		errs.Add(validation.ValidateRange("limit", n, 1, directory.MaxListLimit))
		if errs.HasErrors() {
			apperrors.HandleError(c, invalid(&errs))
			return
		}
		limit = n
	}

	users, err := h.dir.ListUsers(c.Request.Context(), limit)
	if err != nil {
		apperrors.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, UserListResponse{Users: users, Count: len(users)})
}

// GetUser handles GET /users/:identifier, where identifier is an object id or UPN
func (h *Handler) GetUser(c *gin.Context) {
	identifier := c.Param("identifier")

	user, err := h.dir.GetUser(c.Request.Context(), identifier)
	if err != nil {
		apperrors.HandleError(c, err)
		return
	}
	if user == nil {
		apperrors.HandleError(c, apperrors.NotFound("User").WithMetadata("identifier", identifier))
		return
	}
	c.JSON(http.StatusOK, user)
}

// CreateApplication handles POST /applications
func (h *Handler) CreateApplication(c *gin.Context) {
	var req CreateApplicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperrors.HandleError(c, apperrors.BadRequest("Invalid application payload").WithDetails(err.Error()))
		return
	}

	var errs validation.ValidationErrors
	errs.Add(validation.ValidateRequired("displayName", req.DisplayName))
	for _, uri := range req.RedirectURIs {
		errs.Add(validation.ValidateRequired("redirectUris", uri))
		errs.Add(validation.ValidateURL("redirectUris", uri))
	}
	if errs.HasErrors() {
		h.logger.Debug("Rejected request", zap.String("path", c.FullPath()), zap.Strings("fields", errs.Fields()))
		apperrors.HandleError(c, invalid(&errs))
		return
	}

	app, err := h.dir.CreateOidcApplication(c.Request.Context(), req.DisplayName, req.RedirectURIs)
	if err != nil {
		apperrors.HandleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, ApplicationResponse{
		OidcApplication: *app,
		Note:            directory.ClientSecretNote,
	})
}

func invalid(errs *validation.ValidationErrors) *apperrors.AppError {
	return apperrors.BadRequest("Validation failed").
		WithDetails(errs.Error()).
		WithMetadata("fields", errs.Fields())
}

var _ Directory = (*directory.Service)(nil)
