package provider

import (
	"context"

	"github.com/hashicorp/terraform-plugin-framework/datasource"
	"github.com/hashicorp/terraform-plugin-framework/provider"
	"github.com/hashicorp/terraform-plugin-framework/provider/schema"
	"github.com/hashicorp/terraform-plugin-framework/resource"
	"github.com/hashicorp/terraform-plugin-framework/types"

	"github.com/mikecbrant/secure-static-site/internal/site"
)

var _ provider.Provider = (*staticSiteProvider)(nil)

// staticSiteProvider publishes asset directories to sites whose bucket and distribution are
// managed elsewhere, typically by the AWS provider.
type staticSiteProvider struct {
	version string
}

// siteDefaults apply to every staticsite_deployment that leaves the attribute unset.
type siteDefaults struct {
	Region       string
	CacheControl string
}

type providerModel struct {
	Region       types.String `tfsdk:"region"`
	CacheControl types.String `tfsdk:"cache_control"`
}

// New returns a provider factory closure with the given version string.
func New(version string) func() provider.Provider {
	return func() provider.Provider {
		return &staticSiteProvider{version: version}
	}
}

func (p *staticSiteProvider) Metadata(_ context.Context, _ provider.MetadataRequest, resp *provider.MetadataResponse) {
	resp.TypeName = "staticsite"
	resp.Version = p.version
}

func (p *staticSiteProvider) Schema(_ context.Context, _ provider.SchemaRequest, resp *provider.SchemaResponse) {
	resp.Schema = schema.Schema{
		Description: "Publishes static site assets to a private S3 bucket and invalidates its CloudFront distribution.",
		Attributes: map[string]schema.Attribute{
			"region":        schema.StringAttribute{Optional: true, Description: "Default bucket region for deployments. Credentials always come from the AWS default chain."},
			"cache_control": schema.StringAttribute{Optional: true, Description: "Default Cache-Control header for uploaded objects."},
		},
	}
}

// Configure hands the defaults to resources; unset values fall back to site defaults.
func (p *staticSiteProvider) Configure(ctx context.Context, req provider.ConfigureRequest, resp *provider.ConfigureResponse) {
	var m providerModel
	resp.Diagnostics.Append(req.Config.Get(ctx, &m)...)
	if resp.Diagnostics.HasError() {
		return
	}
	defaults := &siteDefaults{
		Region:       m.Region.ValueString(),
		CacheControl: strOrDefault(m.CacheControl.ValueString(), site.DefaultCacheControl),
	}
	resp.ResourceData = defaults
}

func (p *staticSiteProvider) Resources(_ context.Context) []func() resource.Resource {
	return []func() resource.Resource{
		NewDeploymentResource,
	}
}

// DataSources is empty; the site's outputs are read from the AWS provider.
func (p *staticSiteProvider) DataSources(_ context.Context) []func() datasource.DataSource {
	return nil
}
