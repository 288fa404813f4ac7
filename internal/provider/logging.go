package provider

import (
	"context"

	"github.com/hashicorp/terraform-plugin-log/tflog"

	adldap "github.com/isometry/terraform-provider-adquery/internal/ldap"
	"github.com/isometry/terraform-provider-adquery/internal/query"
)

// initializeLogging registers the provider, ldap and query subsystems. Call it
// at the start of each data source Read.
func initializeLogging(ctx context.Context) context.Context {
	// Pattern: TF_LOG_PROVIDER_ADQUERY_<SUBSYSTEM>
	ctx = tflog.NewSubsystem(ctx, "provider",
		tflog.WithLevelFromEnv("TF_LOG_PROVIDER_ADQUERY_PROVIDER"))
	ctx = adldap.NewLoggingContext(ctx)
	return query.NewLoggingContext(ctx)
}
