package provider

import (
	"fmt"
	"strings"

	p "github.com/pulumi/pulumi-go-provider"
	"github.com/pulumi/pulumi-go-provider/infer"
	"github.com/pulumi/pulumi/sdk/v3/go/common/tokens"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"

	"github.com/mikecbrant/secure-static-site/internal/plan"
	"github.com/mikecbrant/secure-static-site/internal/site"
)

// NewProvider builds the component provider serving StaticSite.
func NewProvider() (p.Provider, error) {
	return infer.NewProviderBuilder().
		WithComponents(infer.ComponentF(NewStaticSite)).
		Build()
}

// StaticSiteArgs defines the inputs for the component resource.
type StaticSiteArgs struct {
	// Apex domain, e.g. example.com.
	DomainName string `pulumi:"domainName"`
	// Optional label prefixed to the apex domain, e.g. blog.
	SubDomain *string `pulumi:"subDomain,optional"`
	// When true the bucket and certificate are retained on delete; otherwise the bucket is
	// force-destroyed with every object in it.
	RetainOnDelete *bool `pulumi:"retainOnDelete,optional"`
	// Local directory published to the bucket. Defaults to ./website; skipped when missing.
	AssetDir *string `pulumi:"assetDir,optional"`
	// Delete objects with no local counterpart. Defaults to true.
	Prune *bool `pulumi:"prune,optional"`
	// Doublestar patterns of asset paths neither uploaded nor pruned.
	Exclude []string `pulumi:"exclude,optional"`
	// Cache-Control header set on uploaded objects.
	CacheControl *string `pulumi:"cacheControl,optional"`
	// Viewer TLS floor. Defaults to TLSv1.2_2021.
	MinimumProtocolVersion *string `pulumi:"minimumProtocolVersion,optional"`
	// CloudFront price class. Defaults to PriceClass_100.
	PriceClass *string `pulumi:"priceClass,optional"`
	// How long to wait for the certificate to be ISSUED. Defaults to 45m.
	CertificateValidationTimeout *string `pulumi:"certificateValidationTimeout,optional"`
	// Run HTTP smoke checks after each deployment.
	SmokeChecks *bool `pulumi:"smokeChecks,optional"`
	// Additional smoke checks merged with the built-in ones.
	SmokeCheckFile *string `pulumi:"smokeCheckFile,optional"`
	// Tags applied to every taggable child resource.
	Tags map[string]string `pulumi:"tags,optional"`
}

// StaticSite is a private bucket served over HTTPS through CloudFront on a custom domain.
type StaticSite struct {
	pulumi.ResourceState

	BucketName             pulumi.StringOutput      `pulumi:"bucketName"`
	CertificateArn         pulumi.StringOutput      `pulumi:"certificateArn"`
	DistributionDomainName pulumi.StringOutput      `pulumi:"distributionDomainName"`
	DistributionId         pulumi.StringOutput      `pulumi:"distributionId"`
	SiteDomain             pulumi.StringOutput      `pulumi:"siteDomain"`
	ValidationRecords      pulumi.StringArrayOutput `pulumi:"validationRecords"`
	DeploymentStatus       pulumi.StringOutput      `pulumi:"deploymentStatus,optional"`
}

// Annotate attaches schema metadata used for provider docs and code generation.
func (c *StaticSite) Annotate(a infer.Annotator) {
	a.Describe(&c, "A private S3 bucket served through CloudFront with an ACM certificate, an origin access identity and an asset deployment step.")
	a.SetToken(tokens.ModuleName("index"), tokens.TypeName("StaticSite"))
}

const staticSiteType = "static-site:index:StaticSite"

// NewStaticSite is the component constructor used by infer.Component. Configuration is
// validated before anything is registered.
func NewStaticSite(
	ctx *pulumi.Context,
	name string,
	args StaticSiteArgs,
	opts ...pulumi.ResourceOption,
) (*StaticSite, error) {
	cfg, err := normalizeStaticSiteArgs(args)
	if err != nil {
		return nil, err
	}

	comp := &StaticSite{}
	if err := ctx.RegisterComponentResource(staticSiteType, name, comp, opts...); err != nil {
		return nil, err
	}
	childOpts, retOpts := buildChildOptions(comp, opts, cfg.RetainOnDelete)

	domain := cfg.SiteDomain()
	if !cfg.RetainOnDelete {
		if err := ctx.Log.Warn(site.TeardownWarning(domain), &pulumi.LogArgs{Resource: comp}); err != nil {
			return nil, err
		}
	}

	b := &builder{
		ctx:        ctx,
		name:       name,
		cfg:        cfg,
		smoke:      args.SmokeChecks != nil && *args.SmokeChecks,
		comp:       comp,
		childOpts:  childOpts,
		retainOpts: retOpts,
	}
	values, err := plan.Execute(b.steps())
	if err != nil {
		return nil, fmt.Errorf("static site %s: %w", name, err)
	}
	out, ok := values[site.ComponentOutputs].(siteOutputs)
	if !ok {
		return nil, fmt.Errorf("static site %s: outputs not produced", name)
	}

	comp.BucketName = out.bucketName
	comp.CertificateArn = out.certificateArn
	comp.DistributionDomainName = out.distributionDomainName
	comp.DistributionId = out.distributionID
	comp.SiteDomain = pulumi.String(domain).ToStringOutput()
	comp.ValidationRecords = b.validationRecords
	comp.DeploymentStatus = b.deploymentStatus

	ctx.Export(fmt.Sprintf("%s-%s", name, site.OutputBucketName), comp.BucketName)
	ctx.Export(fmt.Sprintf("%s-%s", name, site.OutputCertificateArn), comp.CertificateArn)
	ctx.Export(fmt.Sprintf("%s-%s", name, site.OutputDistributionDomainName), comp.DistributionDomainName)
	ctx.Export(fmt.Sprintf("%s-%s", name, site.OutputDistributionID), comp.DistributionId)
	ctx.Export(fmt.Sprintf("%s-%s", name, site.OutputSiteDomain), comp.SiteDomain)
	ctx.Export(fmt.Sprintf("%s-validationRecords", name), comp.ValidationRecords)
	ctx.Export(fmt.Sprintf("%s-deployment", name), comp.DeploymentStatus)
	return comp, nil
}

// normalizeStaticSiteArgs applies defaults and validates, returning the equivalent site config.
func normalizeStaticSiteArgs(args StaticSiteArgs) (site.Config, error) {
	cfg := site.Config{
		SiteConfig: site.SiteConfig{
			DomainName: args.DomainName,
			SubDomain:  valueOrDefault(args.SubDomain, ""),
		},
		AssetDir:                     valueOrDefault(args.AssetDir, site.DefaultAssetDir),
		RetainOnDelete:               args.RetainOnDelete != nil && *args.RetainOnDelete,
		MinimumProtocolVersion:       valueOrDefault(args.MinimumProtocolVersion, site.DefaultMinimumProtocolVersion),
		PriceClass:                   valueOrDefault(args.PriceClass, site.DefaultPriceClass),
		CertificateValidationTimeout: valueOrDefault(args.CertificateValidationTimeout, site.DefaultCertificateValidationTimeout),
		Prune:                        args.Prune,
		Exclude:                      args.Exclude,
		CacheControl:                 valueOrDefault(args.CacheControl, site.DefaultCacheControl),
		Tags:                         args.Tags,
	}
	if args.SmokeCheckFile != nil {
		cfg.CanaryFile = strings.TrimSpace(*args.SmokeCheckFile)
	}
	cfg = cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return site.Config{}, err
	}
	return cfg, nil
}

// ArgsFromConfig maps a loaded site config onto component args. A configured smoke check file
// turns smoke checks on.
func ArgsFromConfig(cfg site.Config) StaticSiteArgs {
	args := StaticSiteArgs{
		DomainName:                   cfg.DomainName,
		RetainOnDelete:               pulumi.BoolRef(cfg.RetainOnDelete),
		AssetDir:                     optionalString(cfg.AssetDir),
		Prune:                        cfg.Prune,
		Exclude:                      cfg.Exclude,
		CacheControl:                 optionalString(cfg.CacheControl),
		MinimumProtocolVersion:       optionalString(cfg.MinimumProtocolVersion),
		PriceClass:                   optionalString(cfg.PriceClass),
		CertificateValidationTimeout: optionalString(cfg.CertificateValidationTimeout),
		SubDomain:                    optionalString(cfg.SubDomain),
		Tags:                         cfg.Tags,
	}
	if cfg.CanaryFile != "" {
		args.SmokeChecks = pulumi.BoolRef(true)
		args.SmokeCheckFile = pulumi.StringRef(cfg.CanaryFile)
	}
	return args
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func buildChildOptions(comp pulumi.Resource, opts []pulumi.ResourceOption, retainOnDelete bool) (childOpts []pulumi.ResourceOption, retainOpts []pulumi.ResourceOption) {
	childOpts = append([]pulumi.ResourceOption{}, opts...)
	childOpts = append(childOpts, pulumi.Parent(comp))
	retainOpts = append([]pulumi.ResourceOption{}, childOpts...)
	if retainOnDelete {
		retainOpts = append(retainOpts, pulumi.RetainOnDelete(true))
	}
	return childOpts, retainOpts
}
