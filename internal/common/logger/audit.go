package logger

import (
	"time"

	"go.uber.org/zap"
)

// AuditEvent represents a change an operator made in the directory
type AuditEvent struct {
	EventType  string                 `json:"event_type"`
	Actor      string                 `json:"actor"` // service principal client id
	Tenant     string                 `json:"tenant"`
	Action     string                 `json:"action"`
	Resource   string                 `json:"resource"`
	ResourceID string                 `json:"resource_id"`
	Status     string                 `json:"status"` // success, failure
	Reason     string                 `json:"reason,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
	Timestamp  time.Time              `json:"timestamp"`
}

// AuditLogger records directory mutations. Reads are not audited.
type AuditLogger struct {
	logger *zap.Logger
	actor  string
	tenant string
}

// NewAuditLogger creates a new audit logger acting as the given service principal
func NewAuditLogger(logger *zap.Logger, actor, tenant string) *AuditLogger {
	return &AuditLogger{
		logger: logger.With(zap.String("log_type", "audit")),
		actor:  actor,
		tenant: tenant,
	}
}

// Log logs an audit event
func (a *AuditLogger) Log(event *AuditEvent) {
	if event.Actor == "" {
		event.Actor = a.actor
	}
	if event.Tenant == "" {
		event.Tenant = a.tenant
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	fields := []zap.Field{
		zap.String("event_type", event.EventType),
		zap.String("actor", event.Actor),
		zap.String("tenant", event.Tenant),
		zap.String("action", event.Action),
		zap.String("resource", event.Resource),
		zap.String("resource_id", event.ResourceID),
		zap.String("status", event.Status),
		zap.Time("timestamp", event.Timestamp),
	}

	if event.Reason != "" {
		fields = append(fields, zap.String("reason", event.Reason))
	}

	if len(event.Metadata) > 0 {
		fields = append(fields, zap.Any("metadata", event.Metadata))
	}

	if event.Status == "failure" {
		a.logger.Warn("Audit event", fields...)
		return
	}
	a.logger.Info("Audit event", fields...)
}

// LogUserCreated logs a user creation. The password never reaches the audit trail.
func (a *AuditLogger) LogUserCreated(userID, displayName, signInEmail string) {
	a.Log(&AuditEvent{
		EventType:  "directory.user.created",
		Action:     "create",
		Resource:   "user",
		ResourceID: userID,
		Status:     "success",
		Metadata: map[string]interface{}{
			"display_name": displayName,
			"sign_in":      signInEmail,
		},
	})
}

// LogApplicationCreated logs an OIDC application registration
func (a *AuditLogger) LogApplicationCreated(appID, objectID, displayName string, redirectURIs []string) {
	a.Log(&AuditEvent{
		EventType:  "directory.application.created",
		Action:     "create",
		Resource:   "application",
		ResourceID: appID,
		Status:     "success",
		Metadata: map[string]interface{}{
			"object_id":     objectID,
			"display_name":  displayName,
			"redirect_uris": redirectURIs,
		},
	})
}

// LogFailure logs a rejected directory mutation
func (a *AuditLogger) LogFailure(resource, subject string, err error) {
	a.Log(&AuditEvent{
		EventType:  "directory." + resource + ".failed",
		Action:     "create",
		Resource:   resource,
		ResourceID: subject,
		Status:     "failure",
		Reason:     err.Error(),
	})
}
