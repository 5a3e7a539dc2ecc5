package directory

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	apperrors "github.com/openidx/ciam-console/internal/common/errors"
	"github.com/openidx/ciam-console/internal/common/logger"
)

const tracerName = "github.com/openidx/ciam-console/internal/directory"

// DefaultRequestTimeout bounds each directory round trip
const DefaultRequestTimeout = 30 * time.Second

// Service is the directory operations facade used by the console and the REST API
type Service struct {
	graph        GraphAPI
	settings     Settings
	logger       *zap.Logger
	audit        *logger.AuditLogger
	tracer       trace.Tracer
	timeout      time.Duration
	defaultLimit int
}

// ServiceOption customizes a Service
type ServiceOption func(*Service)

// WithTimeout sets the per-call deadline. Non-positive values keep the default.
func WithTimeout(d time.Duration) ServiceOption {
	return func(s *Service) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithDefaultListLimit sets the page size used when ListUsers gets limit <= 0
func WithDefaultListLimit(limit int) ServiceOption {
	return func(s *Service) {
		if limit > 0 {
			s.defaultLimit = min(limit, MaxListLimit)
		}
	}
}

// WithTracer overrides the global OpenTelemetry tracer
func WithTracer(tracer trace.Tracer) ServiceOption {
	return func(s *Service) {
		s.tracer = tracer
	}
}

// NewService creates a directory service over the given Graph capability
func NewService(graph GraphAPI, settings Settings, log *zap.Logger, opts ...ServiceOption) *Service {
	log = log.With(zap.String("service", "directory"))
	s := &Service{
		graph:        graph,
		settings:     settings,
		logger:       log,
		audit:        logger.NewAuditLogger(log, settings.ClientID, settings.TenantName),
		tracer:       otel.Tracer(tracerName),
		timeout:      DefaultRequestTimeout,
		defaultLimit: DefaultListLimit,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateUser creates an enabled user who signs in with an email address
func (s *Service) CreateUser(ctx context.Context, req NewUserRequest) (*UserProfile, error) {
	payload := BuildUserPayload(s.settings, req)

	s.logger.Info("Creating directory user", zap.String("mail_nickname", req.MailNickname))
	s.logger.Debug("Directory user sign-in identity",
		zap.String("sign_in", req.SignInEmail),
		zap.String("issuer", s.settings.TenantName))

	var created *GraphUser
	err := s.observe(ctx, "CreateUser", func(ctx context.Context) error {
		var err error
		created, err = s.graph.CreateUser(ctx, payload)
		return err
	})
	if err == nil && created == nil {
		err = errors.New("directory returned no user")
	}
	if err != nil {
		s.audit.LogFailure("user", req.SignInEmail, err)
		return nil, apperrors.DirectoryRequest("CreateUser", err)
	}

	profile := mapGraphUser(*created)
	// Graph echoes the identities it stored; fall back to what was sent if it did not
	if len(profile.Identities) == 0 {
		profile.Identities = mapGraphUser(payload).Identities
	}

	s.audit.LogUserCreated(profile.ID, profile.DisplayName, req.SignInEmail)
	return &profile, nil
}

// ListUsers returns up to limit users ordered by display name. Only the first
// page is read.
func (s *Service) ListUsers(ctx context.Context, limit int) ([]UserProfile, error) {
	if limit <= 0 {
		limit = s.defaultLimit
	}
	limit = min(limit, MaxListLimit)

	var users []GraphUser
	err := s.observe(ctx, "ListUsers", func(ctx context.Context) error {
		var err error
		users, err = s.graph.ListUsers(ctx, ListQuery{
			Top:     limit,
			Select:  UserListFields,
			OrderBy: []string{"displayName"},
		})
		return err
	})
	if err != nil {
		return nil, apperrors.DirectoryRequest("ListUsers", err)
	}

	s.logger.Debug("Listed directory users", zap.Int("limit", limit), zap.Int("count", len(users)))
	return mapGraphUsers(users), nil
}

// GetUser looks a user up by object id or user principal name. A user the
// directory does not know is reported as (nil, nil).
func (s *Service) GetUser(ctx context.Context, identifier string) (*UserProfile, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil, nil
	}

	lookup := "user_principal_name"
	if _, err := uuid.Parse(identifier); err == nil {
		lookup = "object_id"
	}

	var user *GraphUser
	err := s.observe(ctx, "GetUser", func(ctx context.Context) error {
		var err error
		user, err = s.graph.GetUser(ctx, identifier, UserDetailFields)
		return err
	})
	if errors.Is(err, ErrNotFound) || (err == nil && user == nil) {
		s.logger.Debug("Directory user not found",
			zap.String("identifier", identifier),
			zap.String("lookup", lookup))
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.DirectoryRequest("GetUser", err)
	}

	profile := mapGraphUser(*user)
	return &profile, nil
}

// CreateOidcApplication registers a web application for OpenID Connect sign-in.
// No client secret is created.
func (s *Service) CreateOidcApplication(ctx context.Context, displayName string, redirectURIs []string) (*OidcApplication, error) {
	payload := BuildApplicationPayload(displayName, redirectURIs)
	sent := payload.Web.RedirectURIs

	s.logger.Info("Registering OIDC application",
		zap.String("display_name", displayName),
		zap.Strings("redirect_uris", sent),
		zap.Bool("default_redirect", len(redirectURIs) == 0))

	var created *GraphApplication
	err := s.observe(ctx, "CreateOidcApplication", func(ctx context.Context) error {
		var err error
		created, err = s.graph.CreateApplication(ctx, payload)
		return err
	})
	if err == nil && created == nil {
		err = errors.New("directory returned no application")
	}
	if err != nil {
		s.audit.LogFailure("application", displayName, err)
		return nil, apperrors.DirectoryRequest("CreateOidcApplication", err)
	}

	app := mapGraphApplication(*created, sent)
	s.audit.LogApplicationCreated(app.AppID, app.ObjectID, app.DisplayName, app.RedirectURIs)
	return &app, nil
}

// observe runs one directory call under the per-call deadline, inside a span,
// and records its outcome
func (s *Service) observe(ctx context.Context, operation string, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	ctx, span := s.tracer.Start(ctx, "directory."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("directory.tenant", s.settings.TenantName)))
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	directoryRequestDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())

	outcome := "success"
	switch {
	case err == nil:
	case errors.Is(err, ErrNotFound):
		outcome = "not_found"
	case errors.Is(err, context.DeadlineExceeded):
		outcome = "timeout"
	default:
		outcome = "error"
	}
	directoryRequestsTotal.WithLabelValues(operation, outcome).Inc()
	span.SetAttributes(attribute.String("directory.outcome", outcome))

	if err != nil && outcome != "not_found" {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.WithTraceContext(s.logger, ctx).Warn("Directory request failed",
			zap.String("operation", operation),
			zap.String("outcome", outcome),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err))
	}
	return err
}
