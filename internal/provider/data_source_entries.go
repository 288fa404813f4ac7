package provider

import (
	"context"
	"fmt"
	"maps"
	"strings"

	"github.com/hashicorp/terraform-plugin-framework-validators/stringvalidator"
	"github.com/hashicorp/terraform-plugin-framework/attr"
	"github.com/hashicorp/terraform-plugin-framework/datasource"
	"github.com/hashicorp/terraform-plugin-framework/datasource/schema"
	"github.com/hashicorp/terraform-plugin-framework/diag"
	"github.com/hashicorp/terraform-plugin-framework/path"
	"github.com/hashicorp/terraform-plugin-framework/schema/validator"
	"github.com/hashicorp/terraform-plugin-framework/types"
	"github.com/hashicorp/terraform-plugin-log/tflog"

	"github.com/isometry/terraform-provider-adquery/internal/directory"
	adldap "github.com/isometry/terraform-provider-adquery/internal/ldap"
	"github.com/isometry/terraform-provider-adquery/internal/provider/helpers"
	"github.com/isometry/terraform-provider-adquery/internal/query"
)

// Ensure provider defined types fully satisfy framework interfaces.
var _ datasource.DataSource = &EntriesDataSource{}
var _ datasource.DataSourceWithConfigure = &EntriesDataSource{}

func NewEntriesDataSource() datasource.DataSource {
	return &EntriesDataSource{}
}

// EntriesDataSource searches entries of any object class and returns their
// raw attributes.
type EntriesDataSource struct {
	data *ProviderData
}

// EntriesDataSourceModel describes the data source data model.
type EntriesDataSourceModel struct {
	ObjectClass types.String `tfsdk:"object_class"`
	Attributes  types.List   `tfsdk:"attributes"`
	Conditions  types.List   `tfsdk:"condition"`

	// Search configuration
	Container  types.String `tfsdk:"container"`
	Scope      types.String `tfsdk:"scope"`
	OrderBy    types.String `tfsdk:"order_by"`
	Descending types.Bool   `tfsdk:"descending"`
	Skip       types.Int64  `tfsdk:"skip"`
	Take       types.Int64  `tfsdk:"take"`

	// Output
	Entries    types.List   `tfsdk:"entries"`
	EntryCount types.Int64  `tfsdk:"entry_count"`
	LDAPFilter types.String `tfsdk:"ldap_filter"`
	ID         types.String `tfsdk:"id"`
}

func (m *EntriesDataSourceModel) searchArgs() searchArgs {
	return searchArgs{
		Container:  m.Container,
		Scope:      m.Scope,
		OrderBy:    m.OrderBy,
		Descending: m.Descending,
		Skip:       m.Skip,
		Take:       m.Take,
	}
}

// ConditionModel is one condition block.
type ConditionModel struct {
	Attribute types.String `tfsdk:"attribute"`
	Operator  types.String `tfsdk:"operator"`
	Value     types.String `tfsdk:"value"`
}

var entryAttrTypes = map[string]attr.Type{
	"dn":         types.StringType,
	"attributes": helpers.AttributeMapType,
}

func (d *EntriesDataSource) Metadata(ctx context.Context, req datasource.MetadataRequest, resp *datasource.MetadataResponse) {
	resp.TypeName = req.ProviderTypeName + "_entries"
}

func (d *EntriesDataSource) Schema(ctx context.Context, req datasource.SchemaRequest, resp *datasource.SchemaResponse) {
	attributes := searchAttributes("entries", nil)
	maps.Copy(attributes, map[string]schema.Attribute{
		"object_class": schema.StringAttribute{
			MarkdownDescription: "The objectClass to search, e.g. `computer` or `contact`.",
			Required:            true,
			Validators: []validator.String{
				stringvalidator.LengthAtLeast(1),
			},
		},
		"attributes": schema.ListAttribute{
			MarkdownDescription: "LDAP attributes to return for each entry, as strings. The DN is always returned.",
			ElementType:         types.StringType,
			Optional:            true,
		},
		"entry_count": schema.Int64Attribute{
			MarkdownDescription: "The number of entries returned.",
			Computed:            true,
		},
		"entries": schema.ListNestedAttribute{
			MarkdownDescription: "Entries matching the search.",
			Computed:            true,
			NestedObject: schema.NestedAttributeObject{
				Attributes: map[string]schema.Attribute{
					"dn": computedString("The Distinguished Name of the entry."),
					"attributes": schema.MapAttribute{
						MarkdownDescription: "Requested attributes present on the entry, by name.",
						ElementType:         helpers.AttributeMapType.ElemType,
						Computed:            true,
					},
				},
			},
		},
	})

	resp.Schema = schema.Schema{
		MarkdownDescription: "Searches Active Directory entries of any object class. Conditions are combined with AND " +
			"and compiled into a single LDAP search; `ldap_filter` shows the filter sent.",

		Attributes: attributes,

		Blocks: map[string]schema.Block{
			"condition": schema.ListNestedBlock{
				MarkdownDescription: "A test on one attribute. All conditions must hold.",
				NestedObject: schema.NestedBlockObject{
					Attributes: map[string]schema.Attribute{
						"attribute": schema.StringAttribute{
							MarkdownDescription: "The LDAP attribute to test.",
							Required:            true,
						},
						"operator": schema.StringAttribute{
							MarkdownDescription: "One of `" + strings.Join(query.ConditionOperators(), "`, `") + "`.",
							Required:            true,
							Validators: []validator.String{
								stringvalidator.OneOf(query.ConditionOperators()...),
							},
						},
						"value": schema.StringAttribute{
							MarkdownDescription: "The value to compare with. Not used by `present` and `absent`.",
							Optional:            true,
						},
					},
				},
			},
		},
	}
}

func (d *EntriesDataSource) Configure(ctx context.Context, req datasource.ConfigureRequest, resp *datasource.ConfigureResponse) {
	d.data = providerDataFrom(req.ProviderData, &resp.Diagnostics)
}

func (d *EntriesDataSource) Read(ctx context.Context, req datasource.ReadRequest, resp *datasource.ReadResponse) {
	var data EntriesDataSourceModel

	ctx = initializeLogging(ctx)

	resp.Diagnostics.Append(req.Config.Get(ctx, &data)...)
	if resp.Diagnostics.HasError() {
		return
	}

	var attributes []string
	if !data.Attributes.IsNull() && !data.Attributes.IsUnknown() {
		resp.Diagnostics.Append(data.Attributes.ElementsAs(ctx, &attributes, false)...)
	}
	var conditionModels []ConditionModel
	if !data.Conditions.IsNull() && !data.Conditions.IsUnknown() {
		resp.Diagnostics.Append(data.Conditions.ElementsAs(ctx, &conditionModels, false)...)
	}
	if resp.Diagnostics.HasError() {
		return
	}

	conditions := make([]query.Condition, len(conditionModels))
	for i, c := range conditionModels {
		conditions[i] = query.Condition{
			Attribute: c.Attribute.ValueString(),
			Operator:  c.Operator.ValueString(),
			Value:     c.Value.ValueString(),
		}
	}

	q := buildEntriesQuery(d.data.Directory, d.data.BaseDN, data.ObjectClass.ValueString(), attributes, conditions, data.searchArgs(), &resp.Diagnostics)
	if resp.Diagnostics.HasError() {
		return
	}

	compiled, err := q.Compile()
	if err != nil {
		resp.Diagnostics.AddError("Error Building Search Filter", queryErrorDetail(err))
		return
	}

	done := adldap.LogDataSourceOperation(ctx, "adquery_entries", "search", map[string]any{
		"object_class": data.ObjectClass.ValueString(),
		"ldap_filter":  compiled.Filter,
	})
	entries, err := q.ToSlice(ctx)
	done(err)
	if err != nil {
		resp.Diagnostics.AddError(
			"Error Searching Entries",
			fmt.Sprintf("Could not search Active Directory %s entries: %s", data.ObjectClass.ValueString(), queryErrorDetail(err)),
		)
		return
	}

	tflog.Debug(ctx, "Found AD entries", map[string]any{
		"entry_count": len(entries),
	})

	list, diags := helpers.ObjectList(entryAttrTypes, entries, func(e query.Entry) (map[string]attr.Value, diag.Diagnostics) {
		m, diags := helpers.AttributeMap(ctx, e.Attributes)
		return map[string]attr.Value{
			"dn":         types.StringValue(e.DN),
			"attributes": m,
		}, diags
	})
	resp.Diagnostics.Append(diags...)
	if resp.Diagnostics.HasError() {
		return
	}

	data.Entries = list
	data.EntryCount = types.Int64Value(int64(len(entries)))
	data.LDAPFilter = types.StringValue(compiled.Filter)
	data.ID = types.StringValue(searchID(compiled, d.data.BaseDN))

	resp.Diagnostics.Append(resp.State.Set(ctx, &data)...)
}

// buildEntriesQuery filters, sorts and pages entries of objectClass, then
// projects them as raw entries.
func buildEntriesQuery(dir *directory.Context, baseDN, objectClass string, attributes []string, conditions []query.Condition, args searchArgs, diags *diag.Diagnostics) *query.Query[query.Entry] {
	opts := setOptions(baseDN, args, diags)
	if diags.HasError() {
		return nil
	}

	q := dir.Dynamic(objectClass, attributes, opts...)
	if len(conditions) > 0 {
		p, err := query.Where(conditions...)
		if err != nil {
			diags.AddAttributeError(path.Root("condition"), "Invalid Condition", err.Error())
			return nil
		}
		q = q.Where(p)
	}

	field, _ := sortField(args, nil)
	return query.AsEntries(orderAndPage(q, args, field))
}
