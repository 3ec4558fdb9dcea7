package provider

import (
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"

	"github.com/mikecbrant/secure-static-site/internal/plan"
	"github.com/mikecbrant/secure-static-site/internal/site"
)

// builder declares the child resources of one StaticSite.
type builder struct {
	ctx        *pulumi.Context
	name       string
	cfg        site.Config
	smoke      bool
	comp       *StaticSite
	childOpts  []pulumi.ResourceOption
	retainOpts []pulumi.ResourceOption

	validationRecords pulumi.StringArrayOutput
	deploymentStatus  pulumi.StringOutput
}

// siteOutputs is the value of the outputs step.
type siteOutputs struct {
	bucketName             pulumi.StringOutput
	certificateArn         pulumi.StringOutput
	distributionDomainName pulumi.StringOutput
	distributionID         pulumi.StringOutput
}

// steps binds a build function to every component of the topology.
func (b *builder) steps() []plan.Step {
	builds := map[string]func(*plan.Resolver) (any, error){
		site.ComponentStorage:               b.buildStorage,
		site.ComponentCertificate:           b.buildCertificate,
		site.ComponentCertificateValidation: b.buildCertificateValidation,
		site.ComponentAccessIdentity:        b.buildAccessIdentity,
		site.ComponentAccessPolicy:          b.buildAccessPolicy,
		site.ComponentDistribution:          b.buildDistribution,
		site.ComponentDeployment:            b.buildDeployment,
		site.ComponentOutputs:               b.buildOutputs,
	}
	topo := site.Topology()
	steps := make([]plan.Step, 0, len(topo))
	for _, c := range topo {
		steps = append(steps, plan.Step{ID: c.ID, DependsOn: c.DependsOn, Description: c.Description, Build: builds[c.ID]})
	}
	return steps
}

func (b *builder) buildOutputs(r *plan.Resolver) (any, error) {
	st, err := plan.Value[*siteStorage](r, site.ComponentStorage)
	if err != nil {
		return nil, err
	}
	val, err := plan.Value[*certificateValidation](r, site.ComponentCertificateValidation)
	if err != nil {
		return nil, err
	}
	dist, err := plan.Value[*siteDistribution](r, site.ComponentDistribution)
	if err != nil {
		return nil, err
	}
	return siteOutputs{
		bucketName:             st.bucket.Bucket,
		certificateArn:         val.validation.CertificateArn,
		distributionDomainName: dist.distribution.DomainName,
		distributionID:         dist.distribution.ID().ToStringOutput(),
	}, nil
}

func (b *builder) tags() pulumi.StringMapInput {
	if len(b.cfg.Tags) == 0 {
		return nil
	}
	return pulumi.ToStringMap(b.cfg.Tags)
}
