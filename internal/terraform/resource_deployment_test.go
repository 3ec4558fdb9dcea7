package provider

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/hashicorp/terraform-plugin-framework/attr"
	"github.com/hashicorp/terraform-plugin-framework/provider"
	"github.com/hashicorp/terraform-plugin-framework/providerserver"
	"github.com/hashicorp/terraform-plugin-framework/resource"
	"github.com/hashicorp/terraform-plugin-framework/types"
	"github.com/hashicorp/terraform-plugin-go/tfprotov6"
	tftest "github.com/hashicorp/terraform-plugin-testing/helper/resource"

	"github.com/mikecbrant/secure-static-site/internal/awssdk/cdn"
	"github.com/mikecbrant/secure-static-site/internal/awssdk/deploy"
	"github.com/mikecbrant/secure-static-site/internal/awssdk/s3sync"
)

type stubRunner struct {
	requests []deploy.Request
	region   string
	err      error
}

func (s *stubRunner) Deploy(_ context.Context, req deploy.Request) (deploy.Result, error) {
	s.requests = append(s.requests, req)
	if s.err != nil {
		return deploy.Result{}, s.err
	}
	return deploy.Result{
		Sync:         s3sync.Result{Uploaded: []string{"index.html", "app.js"}, Deleted: []string{"old.js"}},
		Invalidation: cdn.Invalidation{ID: "I1", Status: "InProgress"},
	}, nil
}

func useStubRunner(t *testing.T) *stubRunner {
	t.Helper()
	stub := &stubRunner{}
	prev := newDeployer
	newDeployer = func(_ context.Context, region string) (deployRunner, error) {
		stub.region = region
		return stub, nil
	}
	t.Cleanup(func() { newDeployer = prev })
	return stub
}

func assetDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "index.html"), []byte("<html></html>"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "app.js.map"), []byte("{}"), 0o600); err != nil {
		t.Fatal(err)
	}
	return dir
}

func TestApplyDeployment_RecordsResults(t *testing.T) {
	stub := useStubRunner(t)
	dir := assetDir(t)
	m := deploymentModel{
		BucketName:     types.StringValue("example.com"),
		DistributionID: types.StringValue("E1"),
		SourceDir:      types.StringValue(dir),
		Region:         types.StringValue("eu-west-1"),
		Prune:          types.BoolNull(),
		Exclude:        types.ListValueMust(types.StringType, []attr.Value{types.StringValue("**/*.map")}),
		CacheControl:   types.StringNull(),
	}
	diags := applyDeployment(context.Background(), &m, siteDefaults{})
	if diags.HasError() {
		t.Fatalf("apply failed: %v", diags)
	}
	if len(stub.requests) != 1 {
		t.Fatalf("expected one deployment, got %d", len(stub.requests))
	}
	req := stub.requests[0]
	if !req.Prune || len(req.Exclude) != 1 || req.CacheControl == "" {
		t.Fatalf("unexpected request: %+v", req)
	}
	if stub.region != "eu-west-1" {
		t.Fatalf("region = %q", stub.region)
	}
	if m.ID.ValueString() != "example.com/E1" || m.InvalidationID.ValueString() != "I1" {
		t.Fatalf("unexpected ids: %s %s", m.ID.ValueString(), m.InvalidationID.ValueString())
	}
	if m.Uploaded.ValueInt64() != 2 || m.Deleted.ValueInt64() != 1 {
		t.Fatalf("counts = %d/%d", m.Uploaded.ValueInt64(), m.Deleted.ValueInt64())
	}
	want, err := sourceHash(dir, []string{"**/*.map"})
	if err != nil {
		t.Fatal(err)
	}
	if m.SourceHash.ValueString() != want {
		t.Fatalf("source_hash = %s, want %s", m.SourceHash.ValueString(), want)
	}
}

func TestApplyDeployment_Errors(t *testing.T) {
	stub := useStubRunner(t)
	m := deploymentModel{
		BucketName:     types.StringValue("example.com"),
		DistributionID: types.StringValue(""),
		SourceDir:      types.StringValue(assetDir(t)),
		Exclude:        types.ListNull(types.StringType),
	}
	if diags := applyDeployment(context.Background(), &m, siteDefaults{}); !diags.HasError() {
		t.Fatalf("expected validation error for missing distribution_id")
	}

	m.DistributionID = types.StringValue("E1")
	m.SourceDir = types.StringValue(filepath.Join(t.TempDir(), "missing"))
	if diags := applyDeployment(context.Background(), &m, siteDefaults{}); !diags.HasError() {
		t.Fatalf("expected error for missing source_dir")
	}
	if len(stub.requests) != 0 {
		t.Fatalf("no deployment should run on invalid input")
	}

	m.SourceDir = types.StringValue(assetDir(t))
	stub.err = errors.New("boom")
	if diags := applyDeployment(context.Background(), &m, siteDefaults{}); !diags.HasError() {
		t.Fatalf("expected deployment failure to surface")
	}
	if !m.InvalidationID.IsNull() {
		t.Fatalf("failed deployment must not record results")
	}
}

func TestSourceHash_TracksContent(t *testing.T) {
	t.Parallel()
	dir := assetDir(t)
	a, err := sourceHash(dir, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "index.html"), []byte("<html>v2</html>"), 0o600); err != nil {
		t.Fatal(err)
	}
	b, err := sourceHash(dir, nil)
	if err != nil {
		t.Fatal(err)
	}
	if a == b {
		t.Fatalf("hash should change when an asset changes")
	}
}

func TestApplyDeployment_ProviderDefaults(t *testing.T) {
	stub := useStubRunner(t)
	m := deploymentModel{
		BucketName:     types.StringValue("example.com"),
		DistributionID: types.StringValue("E1"),
		SourceDir:      types.StringValue(assetDir(t)),
		Exclude:        types.ListNull(types.StringType),
	}
	defaults := siteDefaults{Region: "ap-southeast-2", CacheControl: "no-store"}
	if diags := applyDeployment(context.Background(), &m, defaults); diags.HasError() {
		t.Fatalf("apply failed: %v", diags)
	}
	if stub.region != "ap-southeast-2" || stub.requests[0].CacheControl != "no-store" {
		t.Fatalf("defaults not applied: region=%q request=%+v", stub.region, stub.requests[0])
	}

	m.Region = types.StringValue("eu-west-1")
	m.CacheControl = types.StringValue("max-age=60")
	if diags := applyDeployment(context.Background(), &m, defaults); diags.HasError() {
		t.Fatalf("apply failed: %v", diags)
	}
	if stub.region != "eu-west-1" || stub.requests[1].CacheControl != "max-age=60" {
		t.Fatalf("resource values should win: region=%q request=%+v", stub.region, stub.requests[1])
	}
}

func TestProvider_SchemaAndConfigure(t *testing.T) {
	t.Parallel()
	p := New("1.2.3")()
	var meta provider.MetadataResponse
	p.Metadata(context.Background(), provider.MetadataRequest{}, &meta)
	if meta.TypeName != "staticsite" || meta.Version != "1.2.3" {
		t.Fatalf("metadata = %+v", meta)
	}
	var sch provider.SchemaResponse
	p.Schema(context.Background(), provider.SchemaRequest{}, &sch)
	for _, name := range []string{"region", "cache_control"} {
		if a, ok := sch.Schema.Attributes[name]; !ok || !a.IsOptional() {
			t.Fatalf("provider schema should carry optional %s", name)
		}
	}

	r := NewDeploymentResource().(*deploymentResource)
	var resp resource.ConfigureResponse
	r.Configure(context.Background(), resource.ConfigureRequest{ProviderData: &siteDefaults{Region: "us-west-2"}}, &resp)
	if resp.Diagnostics.HasError() || r.defaults.Region != "us-west-2" {
		t.Fatalf("configure did not take defaults: %+v %v", r.defaults, resp.Diagnostics)
	}
	r.Configure(context.Background(), resource.ConfigureRequest{ProviderData: "nope"}, &resp)
	if !resp.Diagnostics.HasError() {
		t.Fatalf("unexpected provider data should be reported")
	}
}

func TestDeploymentSchema(t *testing.T) {
	t.Parallel()
	var resp resource.SchemaResponse
	NewDeploymentResource().Schema(context.Background(), resource.SchemaRequest{}, &resp)
	for _, name := range []string{"bucket_name", "distribution_id", "source_dir", "source_hash", "invalidation_id"} {
		if _, ok := resp.Schema.Attributes[name]; !ok {
			t.Fatalf("schema missing %s", name)
		}
	}
	if !resp.Schema.Attributes["source_hash"].IsComputed() {
		t.Fatalf("source_hash must be computed")
	}
}

func TestAcc_Deployment_basic(t *testing.T) {
	if os.Getenv("TF_ACC") == "" {
		t.Skip("set TF_ACC to run acceptance tests (requires AWS credentials)")
	}
	bucket, dist := os.Getenv("STATICSITE_BUCKET"), os.Getenv("STATICSITE_DISTRIBUTION_ID")
	if bucket == "" || dist == "" {
		t.Skip("set STATICSITE_BUCKET and STATICSITE_DISTRIBUTION_ID to an existing site")
	}
	cfg := `
provider "staticsite" {}
resource "staticsite_deployment" "test" {
  bucket_name     = "` + bucket + `"
  distribution_id = "` + dist + `"
  source_dir      = "` + filepath.ToSlash(assetDir(t)) + `"
  exclude         = ["**/*.map"]
}
`
	tftest.Test(t, tftest.TestCase{
		ProtoV6ProviderFactories: map[string]func() (tfprotov6.ProviderServer, error){
			"staticsite": providerserver.NewProtocol6WithError(New("dev")()),
		},
		Steps: []tftest.TestStep{{
			Config: cfg,
			Check: tftest.ComposeAggregateTestCheckFunc(
				tftest.TestCheckResourceAttrSet("staticsite_deployment.test", "invalidation_id"),
				tftest.TestCheckResourceAttrSet("staticsite_deployment.test", "source_hash"),
			),
		}},
	})
}
