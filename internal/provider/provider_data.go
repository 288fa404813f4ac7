package provider

import (
	"fmt"

	"github.com/hashicorp/terraform-plugin-framework/diag"

	"github.com/isometry/terraform-provider-adquery/internal/directory"
	adldap "github.com/isometry/terraform-provider-adquery/internal/ldap"
)

// ProviderData is handed to every data source by Configure.
type ProviderData struct {
	Client    adldap.Client
	Directory *directory.Context
	BaseDN    string
}

// NewProviderData returns ProviderData querying below baseDN through client.
func NewProviderData(client adldap.Client, baseDN string) *ProviderData {
	return &ProviderData{
		Client:    client,
		Directory: directory.NewContext(directory.ClientBackend(client), baseDN),
		BaseDN:    baseDN,
	}
}

// providerDataFrom unpacks the value passed to a data source Configure. It
// returns nil, without diagnostics, before the provider is configured.
func providerDataFrom(data any, diags *diag.Diagnostics) *ProviderData {
	if data == nil {
		return nil
	}
	pd, ok := data.(*ProviderData)
	if !ok {
		diags.AddError(
			"Unexpected Data Source Configure Type",
			fmt.Sprintf("Expected *provider.ProviderData, got: %T. Please report this issue to the provider developers.", data),
		)
		return nil
	}
	return pd
}
