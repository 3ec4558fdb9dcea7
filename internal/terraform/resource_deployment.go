package provider

import (
	"context"
	"fmt"
	"strings"

	"github.com/hashicorp/terraform-plugin-framework/diag"
	"github.com/hashicorp/terraform-plugin-framework/path"
	"github.com/hashicorp/terraform-plugin-framework/resource"
	"github.com/hashicorp/terraform-plugin-framework/resource/schema"
	"github.com/hashicorp/terraform-plugin-framework/resource/schema/planmodifier"
	"github.com/hashicorp/terraform-plugin-framework/resource/schema/stringplanmodifier"
	"github.com/hashicorp/terraform-plugin-framework/types"

	"github.com/mikecbrant/secure-static-site/internal/awssdk/deploy"
	"github.com/mikecbrant/secure-static-site/internal/awssdk/s3sync"
	"github.com/mikecbrant/secure-static-site/internal/site"
	"github.com/mikecbrant/secure-static-site/internal/utils/logging"
)

var _ resource.Resource = (*deploymentResource)(nil)
var _ resource.ResourceWithModifyPlan = (*deploymentResource)(nil)
var _ resource.ResourceWithConfigure = (*deploymentResource)(nil)

// NewDeploymentResource creates the asset deployment resource.
func NewDeploymentResource() resource.Resource { return &deploymentResource{} }

type deploymentResource struct {
	defaults siteDefaults
}

type deploymentModel struct {
	ID             types.String `tfsdk:"id"`
	BucketName     types.String `tfsdk:"bucket_name"`
	DistributionID types.String `tfsdk:"distribution_id"`
	SourceDir      types.String `tfsdk:"source_dir"`
	Region         types.String `tfsdk:"region"`
	Prune          types.Bool   `tfsdk:"prune"`
	Exclude        types.List   `tfsdk:"exclude"`
	CacheControl   types.String `tfsdk:"cache_control"`

	// Outputs
	SourceHash     types.String `tfsdk:"source_hash"`
	InvalidationID types.String `tfsdk:"invalidation_id"`
	Uploaded       types.Int64  `tfsdk:"uploaded"`
	Deleted        types.Int64  `tfsdk:"deleted"`
}

type deployRunner interface {
	Deploy(ctx context.Context, req deploy.Request) (deploy.Result, error)
}

var newDeployer = func(ctx context.Context, region string) (deployRunner, error) {
	zl, err := logging.NewCLILogger(false, true)
	if err != nil {
		return nil, err
	}
	d, err := deploy.NewDefault(ctx, region, logging.NewZap(zl))
	if err != nil {
		return nil, err
	}
	return d, nil
}

func (r *deploymentResource) Metadata(_ context.Context, req resource.MetadataRequest, resp *resource.MetadataResponse) {
	resp.TypeName = req.ProviderTypeName + "_deployment"
}

func (r *deploymentResource) Schema(_ context.Context, _ resource.SchemaRequest, resp *resource.SchemaResponse) {
	resp.Schema = schema.Schema{
		Description: "Sync a local asset directory into a static site bucket and invalidate its CloudFront distribution. Re-applies whenever the directory contents change.",
		Attributes: map[string]schema.Attribute{
			"id":              schema.StringAttribute{Computed: true, PlanModifiers: []planmodifier.String{stringplanmodifier.UseStateForUnknown()}},
			"bucket_name":     schema.StringAttribute{Required: true, Description: "Site bucket; equal to the site domain."},
			"distribution_id": schema.StringAttribute{Required: true},
			"source_dir":      schema.StringAttribute{Required: true, Description: "Local directory whose contents are published."},
			"region":          schema.StringAttribute{Optional: true, Description: "Bucket region; defaults to the AWS config chain."},
			"prune":           schema.BoolAttribute{Optional: true, Description: "Delete objects with no local counterpart. Defaults to true."},
			"exclude":         schema.ListAttribute{Optional: true, ElementType: types.StringType, Description: "Doublestar patterns neither uploaded nor pruned."},
			"cache_control":   schema.StringAttribute{Optional: true},
			// Outputs
			"source_hash":     schema.StringAttribute{Computed: true},
			"invalidation_id": schema.StringAttribute{Computed: true},
			"uploaded":        schema.Int64Attribute{Computed: true},
			"deleted":         schema.Int64Attribute{Computed: true},
		},
	}
}

// ModifyPlan fingerprints source_dir so that edited assets produce a diff even when the
// configuration is unchanged.
func (r *deploymentResource) ModifyPlan(ctx context.Context, req resource.ModifyPlanRequest, resp *resource.ModifyPlanResponse) {
	if req.Plan.Raw.IsNull() {
		return
	}
	var plan deploymentModel
	resp.Diagnostics.Append(req.Plan.Get(ctx, &plan)...)
	if resp.Diagnostics.HasError() || plan.SourceDir.IsUnknown() || plan.Exclude.IsUnknown() {
		return
	}
	exclude, diags := listStrings(ctx, plan.Exclude)
	resp.Diagnostics.Append(diags...)
	if resp.Diagnostics.HasError() {
		return
	}
	hash, err := sourceHash(plan.SourceDir.ValueString(), exclude)
	if err != nil {
		resp.Diagnostics.AddAttributeError(path.Root("source_dir"), "Invalid source_dir", err.Error())
		return
	}

	var prior types.String
	if !req.State.Raw.IsNull() {
		resp.Diagnostics.Append(req.State.GetAttribute(ctx, path.Root("source_hash"), &prior)...)
	}
	resp.Diagnostics.Append(resp.Plan.SetAttribute(ctx, path.Root("source_hash"), types.StringValue(hash))...)
	if prior.ValueString() != hash {
		resp.Diagnostics.Append(resp.Plan.SetAttribute(ctx, path.Root("invalidation_id"), types.StringUnknown())...)
		resp.Diagnostics.Append(resp.Plan.SetAttribute(ctx, path.Root("uploaded"), types.Int64Unknown())...)
		resp.Diagnostics.Append(resp.Plan.SetAttribute(ctx, path.Root("deleted"), types.Int64Unknown())...)
	}
}

// Configure picks up the provider-level defaults.
func (r *deploymentResource) Configure(_ context.Context, req resource.ConfigureRequest, resp *resource.ConfigureResponse) {
	if req.ProviderData == nil {
		return
	}
	d, ok := req.ProviderData.(*siteDefaults)
	if !ok {
		resp.Diagnostics.AddError("Unexpected provider data", fmt.Sprintf("expected *siteDefaults, got %T", req.ProviderData))
		return
	}
	r.defaults = *d
}

func (r *deploymentResource) Create(ctx context.Context, req resource.CreateRequest, resp *resource.CreateResponse) {
	var plan deploymentModel
	resp.Diagnostics.Append(req.Plan.Get(ctx, &plan)...)
	if resp.Diagnostics.HasError() {
		return
	}
	resp.Diagnostics.Append(applyDeployment(ctx, &plan, r.defaults)...)
	if resp.Diagnostics.HasError() {
		return
	}
	resp.Diagnostics.Append(resp.State.Set(ctx, &plan)...)
}

func (r *deploymentResource) Update(ctx context.Context, req resource.UpdateRequest, resp *resource.UpdateResponse) {
	var plan deploymentModel
	resp.Diagnostics.Append(req.Plan.Get(ctx, &plan)...)
	if resp.Diagnostics.HasError() {
		return
	}
	resp.Diagnostics.Append(applyDeployment(ctx, &plan, r.defaults)...)
	if resp.Diagnostics.HasError() {
		return
	}
	resp.Diagnostics.Append(resp.State.Set(ctx, &plan)...)
}

// Read keeps the prior state; drift is detected through source_hash at plan time.
func (r *deploymentResource) Read(_ context.Context, _ resource.ReadRequest, _ *resource.ReadResponse) {
}

// Delete leaves published objects in place; the bucket's own lifecycle owns them.
func (r *deploymentResource) Delete(_ context.Context, _ resource.DeleteRequest, _ *resource.DeleteResponse) {
}

// applyDeployment runs one deployment for m and records the results on it.
func applyDeployment(ctx context.Context, m *deploymentModel, defaults siteDefaults) diag.Diagnostics {
	var diags diag.Diagnostics
	req, d := m.request(ctx, defaults)
	diags.Append(d...)
	if diags.HasError() {
		return diags
	}
	if err := req.Validate(); err != nil {
		diags.AddError("Invalid deployment", err.Error())
		return diags
	}
	hash, err := sourceHash(req.SourceDir, req.Exclude)
	if err != nil {
		diags.AddAttributeError(path.Root("source_dir"), "Invalid source_dir", err.Error())
		return diags
	}

	runner, err := newDeployer(ctx, strOrDefault(m.Region.ValueString(), defaults.Region))
	if err != nil {
		diags.AddError("AWS config error", err.Error())
		return diags
	}
	res, err := runner.Deploy(ctx, req)
	if err != nil {
		diags.AddError("Deployment failed", err.Error())
		return diags
	}

	m.ID = types.StringValue(fmt.Sprintf("%s/%s", req.Bucket, req.DistributionID))
	m.SourceHash = types.StringValue(hash)
	m.InvalidationID = types.StringValue(res.Invalidation.ID)
	m.Uploaded = types.Int64Value(int64(len(res.Sync.Uploaded)))
	m.Deleted = types.Int64Value(int64(len(res.Sync.Deleted)))
	return diags
}

func (m deploymentModel) request(ctx context.Context, defaults siteDefaults) (deploy.Request, diag.Diagnostics) {
	exclude, diags := listStrings(ctx, m.Exclude)
	return deploy.Request{
		Bucket:         strings.TrimSpace(m.BucketName.ValueString()),
		DistributionID: strings.TrimSpace(m.DistributionID.ValueString()),
		SourceDir:      m.SourceDir.ValueString(),
		Exclude:        exclude,
		Prune:          m.Prune.IsNull() || m.Prune.ValueBool(),
		CacheControl:   strOrDefault(m.CacheControl.ValueString(), strOrDefault(defaults.CacheControl, site.DefaultCacheControl)),
	}, diags
}

func sourceHash(dir string, exclude []string) (string, error) {
	files, err := s3sync.LocalFiles(dir, exclude)
	if err != nil {
		return "", err
	}
	return s3sync.Fingerprint(files), nil
}

func listStrings(ctx context.Context, l types.List) ([]string, diag.Diagnostics) {
	if l.IsNull() || l.IsUnknown() {
		return nil, nil
	}
	var out []string
	diags := l.ElementsAs(ctx, &out, false)
	return out, diags
}

func strOrDefault(s string, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
