package query

import (
	"context"

	"github.com/hashicorp/terraform-plugin-log/tflog"
)

// Subsystem is the tflog subsystem used by the query engine.
const Subsystem = "query"

// NewLoggingContext registers the query subsystem on ctx. Its level comes from
// TF_LOG_PROVIDER_ADQUERY_QUERY.
func NewLoggingContext(ctx context.Context) context.Context {
	return tflog.NewSubsystem(ctx, Subsystem, tflog.WithLevelFromEnv("TF_LOG_PROVIDER_ADQUERY_QUERY"))
}

func logDebug(ctx context.Context, msg string, fields map[string]any) {
	tflog.SubsystemDebug(ctx, Subsystem, msg, fields)
}

func logError(ctx context.Context, msg string, fields map[string]any) {
	tflog.SubsystemError(ctx, Subsystem, msg, fields)
}
