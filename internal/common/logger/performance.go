package logger

import (
	"time"

	"go.uber.org/zap"
)

// PerformanceLogger provides timing logs for outbound calls
type PerformanceLogger struct {
	logger *zap.Logger
}

// NewPerformanceLogger creates a new performance logger
func NewPerformanceLogger(logger *zap.Logger) *PerformanceLogger {
	return &PerformanceLogger{
		logger: logger.With(zap.String("log_type", "performance")),
	}
}

// LogAPICall logs an external API call with timing
func (p *PerformanceLogger) LogAPICall(endpoint string, method string, statusCode int, duration time.Duration, err error) {
	fields := []zap.Field{
		zap.String("api_type", "external"),
		zap.String("endpoint", endpoint),
		zap.String("method", method),
		zap.Int("status_code", statusCode),
		zap.Duration("duration", duration),
		zap.Int64("duration_ms", duration.Milliseconds()),
	}

	switch {
	case err != nil:
		fields = append(fields, zap.Error(err))
		p.logger.Error("API call failed", fields...)
	case statusCode >= 500:
		p.logger.Error("API call returned server error", fields...)
	case statusCode >= 400:
		p.logger.Warn("API call returned client error", fields...)
	case duration > 2*time.Second:
		p.logger.Warn("Slow API call", fields...)
	default:
		p.logger.Debug("API call completed", fields...)
	}
}
