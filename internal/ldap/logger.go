package ldap

import (
	"context"
	"errors"
	"maps"
	"strings"
	"time"

	"github.com/go-ldap/ldap/v3"
	"github.com/hashicorp/terraform-plugin-log/tflog"
)

// Subsystem is the tflog subsystem for directory connections and searches.
const Subsystem = "ldap"

// NewLoggingContext registers the ldap subsystem on ctx. Its level comes from
// TF_LOG_PROVIDER_ADQUERY_LDAP.
func NewLoggingContext(ctx context.Context) context.Context {
	return tflog.NewSubsystem(ctx, Subsystem,
		tflog.WithLevelFromEnv("TF_LOG_PROVIDER_ADQUERY_LDAP"),
		tflog.WithAdditionalLocationOffset(1),
	)
}

// Logger interface for LDAP operations.
type Logger interface {
	Debug(msg string, fields map[string]any)
	Info(msg string, fields map[string]any)
	Warn(msg string, fields map[string]any)
	Error(msg string, fields map[string]any)
	Trace(msg string, fields map[string]any)
}

// TFLogger wraps tflog for use in LDAP package.
type TFLogger struct {
	ctx       context.Context
	subsystem string
}

// NewTFLogger creates a new logger for LDAP operations.
func NewTFLogger(ctx context.Context, subsystem string) *TFLogger {
	return &TFLogger{
		ctx:       ctx,
		subsystem: subsystem,
	}
}

func (l *TFLogger) Debug(msg string, fields map[string]any) {
	tflog.SubsystemDebug(l.ctx, l.subsystem, msg, SanitizeFields(fields))
}

func (l *TFLogger) Info(msg string, fields map[string]any) {
	tflog.SubsystemInfo(l.ctx, l.subsystem, msg, SanitizeFields(fields))
}

func (l *TFLogger) Warn(msg string, fields map[string]any) {
	tflog.SubsystemWarn(l.ctx, l.subsystem, msg, SanitizeFields(fields))
}

func (l *TFLogger) Error(msg string, fields map[string]any) {
	tflog.SubsystemError(l.ctx, l.subsystem, msg, SanitizeFields(fields))
}

func (l *TFLogger) Trace(msg string, fields map[string]any) {
	tflog.SubsystemTrace(l.ctx, l.subsystem, msg, SanitizeFields(fields))
}

// LogOperation is a helper function to log an operation with timing.
func LogOperation(ctx context.Context, subsystem, operation string, fields map[string]any, fn func() error) error {
	start := time.Now()

	logged := make(map[string]any, len(fields)+3)
	maps.Copy(logged, SanitizeFields(fields))
	logged["operation"] = operation

	tflog.SubsystemDebug(ctx, subsystem, "Starting operation", logged)

	err := fn()

	logged["duration_ms"] = time.Since(start).Milliseconds()

	if err != nil {
		logged["error"] = err.Error()
		tflog.SubsystemError(ctx, subsystem, "Operation failed", logged)
	} else {
		tflog.SubsystemDebug(ctx, subsystem, "Operation completed successfully", logged)
	}

	return err
}

// LogPerformance logs performance metrics for an operation. Slow operations
// are raised to info and warn.
func LogPerformance(ctx context.Context, subsystem, operation string, duration time.Duration, fields map[string]any) {
	logged := make(map[string]any, len(fields)+2)
	maps.Copy(logged, fields)
	logged["operation"] = operation
	logged["duration_ms"] = duration.Milliseconds()

	switch {
	case duration > 5*time.Second:
		tflog.SubsystemWarn(ctx, subsystem, "Slow operation detected", logged)
	case duration > 1*time.Second:
		tflog.SubsystemInfo(ctx, subsystem, "Operation performance", logged)
	default:
		tflog.SubsystemDebug(ctx, subsystem, "Operation performance", logged)
	}
}

// LogLDAPError logs LDAP-specific error information.
func LogLDAPError(ctx context.Context, subsystem string, operation string, err error, fields map[string]any) {
	logged := make(map[string]any, len(fields)+5)
	maps.Copy(logged, SanitizeFields(fields))
	logged["operation"] = operation
	logged["error"] = err.Error()
	logged["error_category"] = string(GetErrorCategory(err))

	var ldapErr *ldap.Error
	if errors.As(err, &ldapErr) {
		logged["ldap_result_code"] = ldapErr.ResultCode
		if ldapErr.MatchedDN != "" {
			logged["ldap_matched_dn"] = ldapErr.MatchedDN
		}
		if ldapErr.Err != nil {
			logged["ldap_diagnostic_message"] = ldapErr.Err.Error()
		}
	}

	tflog.SubsystemError(ctx, subsystem, "LDAP operation failed", logged)
}

// LogConnectionEvent logs connection-related events.
func LogConnectionEvent(ctx context.Context, event string, fields map[string]any) {
	logged := make(map[string]any, len(fields)+1)
	maps.Copy(logged, fields)
	logged["event"] = event

	switch event {
	case "connection_established", "authentication_success":
		tflog.SubsystemInfo(ctx, Subsystem, "Connection event", logged)
	case "connection_failed", "authentication_failed", "connection_lost":
		tflog.SubsystemError(ctx, Subsystem, "Connection event", logged)
	default:
		tflog.SubsystemDebug(ctx, Subsystem, "Connection event", logged)
	}
}

var sensitiveKeys = map[string]bool{
	"password":    true,
	"passwd":      true,
	"secret":      true,
	"token":       true,
	"key":         true,
	"private_key": true,
	"credential":  true,
	"credentials": true,
}

// SanitizeFields removes sensitive information from log fields.
func SanitizeFields(fields map[string]any) map[string]any {
	sanitized := make(map[string]any, len(fields))

	for k, v := range fields {
		if sensitiveKeys[strings.ToLower(k)] {
			sanitized[k] = "[REDACTED]"
			continue
		}
		if str, ok := v.(string); ok && containsSensitivePattern(str) {
			sanitized[k] = "[REDACTED]"
			continue
		}
		sanitized[k] = v
	}

	return sanitized
}

// containsSensitivePattern checks if a string contains patterns that might be sensitive.
func containsSensitivePattern(s string) bool {
	patterns := []string{
		"password=",
		"passwd=",
		"secret=",
		"token=",
	}

	lower := strings.ToLower(s)
	for _, pattern := range patterns {
		if strings.Contains(lower, pattern) {
			return true
		}
	}

	return false
}

// LogDataSourceOperation provides standardized entry/exit logging for Terraform data source operations.
func LogDataSourceOperation(ctx context.Context, dataSource, operation string, fields map[string]any) func(error) {
	start := time.Now()

	entryFields := make(map[string]any, len(fields)+2)
	maps.Copy(entryFields, fields)
	entryFields["data_source"] = dataSource
	entryFields["operation"] = operation

	tflog.SubsystemDebug(ctx, "provider", "Starting data source operation", entryFields)

	return func(err error) {
		exitFields := make(map[string]any, len(entryFields)+3)
		maps.Copy(exitFields, entryFields)
		exitFields["duration_ms"] = time.Since(start).Milliseconds()
		exitFields["has_error"] = err != nil

		if err != nil {
			exitFields["error"] = err.Error()
			tflog.SubsystemError(ctx, "provider", "Data source operation failed", exitFields)
		} else {
			tflog.SubsystemDebug(ctx, "provider", "Data source operation completed", exitFields)
		}
	}
}
