package provider

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/hashicorp/terraform-plugin-framework/datasource"
	"github.com/hashicorp/terraform-plugin-framework/path"
	"github.com/hashicorp/terraform-plugin-framework/tfsdk"
	"github.com/hashicorp/terraform-plugin-go/tftypes"
	"github.com/stretchr/testify/require"

	"github.com/isometry/terraform-provider-adquery/internal/directory"
	"github.com/isometry/terraform-provider-adquery/internal/query"
)

const testBaseDN = "DC=example,DC=com"

// fakeDirectory answers the n-th search with results[n], repeating the last
// entry once they run out. Every request is kept.
type fakeDirectory struct {
	results  [][]query.Record
	err      error
	requests []*query.SearchRequest
}

func (f *fakeDirectory) Search(_ context.Context, req *query.SearchRequest) (query.RecordSet, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	if len(f.results) == 0 {
		return query.NewRecordSet(), nil
	}
	i := min(len(f.requests)-1, len(f.results)-1)
	return query.NewRecordSet(f.results[i]...), nil
}

func newFakeDirectory(results ...[]query.Record) *fakeDirectory {
	return &fakeDirectory{results: results}
}

func testProviderData(backend query.Backend) *ProviderData {
	return &ProviderData{
		Client:    NewMockLDAPClient(),
		Directory: directory.NewContext(backend, testBaseDN),
		BaseDN:    testBaseDN,
	}
}

func testDirectory() *directory.Context {
	return directory.NewContext(nil, testBaseDN)
}

var (
	janeGUID = uuid.MustParse("6f9619ff-8b86-d011-b42d-00c04fc964ff")
	johnGUID = uuid.MustParse("0b7ac0b4-3a39-4c3b-9a0c-1e3f1f0b2a01")
	opsGUID  = uuid.MustParse("c3e1b5a0-52b4-4f50-8f63-8a7f1d3e9b10")
)

func userRecord(guid uuid.UUID, cn, sam string, uac string) *query.MapRecord {
	return &query.MapRecord{
		Name: "CN=" + cn + ",OU=Staff," + testBaseDN,
		Values: map[string][]any{
			"objectGUID":         {guid},
			"objectSid":          {"S-1-5-21-1-2-3-1104"},
			"sAMAccountName":     {sam},
			"userPrincipalName":  {sam + "@example.com"},
			"cn":                 {cn},
			"displayName":        {cn},
			"mail":               {sam + "@example.com"},
			"department":         {"Engineering"},
			"userAccountControl": {uac},
			"memberOf":           {"CN=Ops,OU=Groups," + testBaseDN},
			"whenCreated":        {"20240102030405.0Z"},
			"whenChanged":        {"20240607080910.0Z"},
		},
	}
}

func groupRecord(guid uuid.UUID, cn string, groupType string, members ...string) *query.MapRecord {
	values := map[string][]any{
		"objectGUID":     {guid},
		"objectSid":      {"S-1-5-21-1-2-3-2201"},
		"cn":             {cn},
		"sAMAccountName": {cn},
		"groupType":      {groupType},
		"whenCreated":    {"20240102030405.0Z"},
		"whenChanged":    {"20240607080910.0Z"},
	}
	if len(members) > 0 {
		raw := make([]any, len(members))
		for i, m := range members {
			raw[i] = m
		}
		values["member"] = raw
	}
	return &query.MapRecord{Name: "CN=" + cn + ",OU=Groups," + testBaseDN, Values: values}
}

func ouRecord(guid uuid.UUID, dn, name string) *query.MapRecord {
	return &query.MapRecord{
		Name: dn,
		Values: map[string][]any{
			"objectGUID":  {guid},
			"ou":          {name},
			"description": {"Staff accounts"},
			"whenCreated": {"20240102030405.0Z"},
			"whenChanged": {"20240607080910.0Z"},
		},
	}
}

// objectValue builds a value of the object type typ. Attributes missing from
// values are null.
func objectValue(typ tftypes.Type, values map[string]tftypes.Value) tftypes.Value {
	obj := typ.(tftypes.Object)
	vals := make(map[string]tftypes.Value, len(obj.AttributeTypes))
	for name, t := range obj.AttributeTypes {
		if v, ok := values[name]; ok {
			vals[name] = v
		} else {
			vals[name] = tftypes.NewValue(t, nil)
		}
	}
	return tftypes.NewValue(obj, vals)
}

// attributeType returns the type of a top level attribute or block of ds.
func attributeType(t testing.TB, ds datasource.DataSource, name string) tftypes.Type {
	t.Helper()
	var resp datasource.SchemaResponse
	ds.Schema(t.Context(), datasource.SchemaRequest{}, &resp)
	typ := resp.Schema.Type().TerraformType(t.Context()).(tftypes.Object)
	attrType, ok := typ.AttributeTypes[name]
	require.True(t, ok, "no attribute %s", name)
	return attrType
}

func tfString(s string) tftypes.Value {
	return tftypes.NewValue(tftypes.String, s)
}

func tfBool(b bool) tftypes.Value {
	return tftypes.NewValue(tftypes.Bool, b)
}

func tfNumber(n int64) tftypes.Value {
	return tftypes.NewValue(tftypes.Number, n)
}

func tfStrings(values ...string) tftypes.Value {
	out := make([]tftypes.Value, len(values))
	for i, v := range values {
		out[i] = tfString(v)
	}
	return tftypes.NewValue(tftypes.List{ElementType: tftypes.String}, out)
}

// readDataSource runs ds.Read with the given configuration.
func readDataSource(t testing.TB, ds datasource.DataSource, config map[string]tftypes.Value) *datasource.ReadResponse {
	t.Helper()
	ctx := t.Context()

	var schemaResp datasource.SchemaResponse
	ds.Schema(ctx, datasource.SchemaRequest{}, &schemaResp)
	require.False(t, schemaResp.Diagnostics.HasError(), "schema: %v", schemaResp.Diagnostics)

	typ := schemaResp.Schema.Type().TerraformType(ctx)
	req := datasource.ReadRequest{
		Config: tfsdk.Config{Schema: schemaResp.Schema, Raw: objectValue(typ, config)},
	}
	resp := &datasource.ReadResponse{
		State: tfsdk.State{Schema: schemaResp.Schema, Raw: tftypes.NewValue(typ, nil)},
	}
	ds.Read(ctx, req, resp)
	return resp
}

// stateValue reads one attribute from a successful response.
func stateValue[T any](t *testing.T, resp *datasource.ReadResponse, p path.Path) T {
	t.Helper()
	var out T
	diags := resp.State.GetAttribute(t.Context(), p, &out)
	require.False(t, diags.HasError(), "get %s: %v", p, diags)
	return out
}
