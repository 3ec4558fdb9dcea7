package provider

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/gojek/heimdall/v7"
	awss3 "github.com/pulumi/pulumi-aws/sdk/v6/go/aws/s3"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"

	"github.com/mikecbrant/secure-static-site/internal/awssdk/deploy"
	"github.com/mikecbrant/secure-static-site/internal/common"
	"github.com/mikecbrant/secure-static-site/internal/plan"
	"github.com/mikecbrant/secure-static-site/internal/site"
	"github.com/mikecbrant/secure-static-site/internal/utils/logging"
)

// Deployment status values.
const (
	deploymentPending = "pending"
	deploymentSkipped = "skipped"
)

// smokeWait bounds how long a deployment waits for its invalidation before smoke checks run.
const smokeWait = 10 * time.Minute

type siteDeployer interface {
	Deploy(ctx context.Context, req deploy.Request) (deploy.Result, error)
}

var newDeployer = func(ctx context.Context, region string, logger logging.Logger) (siteDeployer, error) {
	d, err := deploy.NewDefault(ctx, region, logger)
	if err != nil {
		return nil, err
	}
	return d, nil
}

// newSmokeDoer returns the HTTP client smoke checks run with.
var newSmokeDoer = func() heimdall.Doer { return common.NewSmokeClient(nil) }

// buildDeployment publishes the asset directory once the bucket policy and distribution exist.
// Previews and missing asset directories skip it.
func (b *builder) buildDeployment(r *plan.Resolver) (any, error) {
	st, err := plan.Value[*siteStorage](r, site.ComponentStorage)
	if err != nil {
		return nil, err
	}
	dist, err := plan.Value[*siteDistribution](r, site.ComponentDistribution)
	if err != nil {
		return nil, err
	}
	policy, err := plan.Value[*awss3.BucketPolicy](r, site.ComponentAccessPolicy)
	if err != nil {
		return nil, err
	}

	if fi, statErr := os.Stat(b.cfg.AssetDir); statErr != nil || !fi.IsDir() {
		msg := fmt.Sprintf("asset directory %s not found; skipping deployment", b.cfg.AssetDir)
		if err := b.ctx.Log.Warn(msg, &pulumi.LogArgs{Resource: b.comp}); err != nil {
			return nil, err
		}
		b.deploymentStatus = pulumi.String(deploymentSkipped).ToStringOutput()
		return b.deploymentStatus, nil
	}

	d := dist.distribution
	b.deploymentStatus = pulumi.All(
		st.bucket.Bucket,
		d.ID().ToStringOutput(),
		st.bucket.Region,
		policy.ID().ToStringOutput(),
		d.DomainName,
	).ApplyT(func(args []interface{}) (string, error) {
		if b.ctx.DryRun() {
			return deploymentPending, nil
		}
		bucket, _ := args[0].(string)
		distributionID, _ := args[1].(string)
		region, _ := args[2].(string)
		host, _ := args[4].(string)
		return b.deploy(bucket, distributionID, region, host)
	}).(pulumi.StringOutput)
	return b.deploymentStatus, nil
}

func (b *builder) deploy(bucket, distributionID, region, host string) (string, error) {
	ctx := b.ctx.Context()
	logger := pulumiLogger{ctx: b.ctx, res: b.comp}
	d, err := newDeployer(ctx, region, logger)
	if err != nil {
		return "", err
	}
	req := deploy.Request{
		Bucket:         bucket,
		DistributionID: distributionID,
		SourceDir:      b.cfg.AssetDir,
		Exclude:        b.cfg.Exclude,
		Prune:          b.cfg.Prune == nil || *b.cfg.Prune,
		CacheControl:   b.cfg.CacheControl,
	}
	if b.smoke {
		req.Wait = smokeWait
	}
	res, err := d.Deploy(ctx, req)
	if err != nil {
		return "", fmt.Errorf("deploy %s: %w", b.cfg.SiteDomain(), err)
	}
	if b.smoke {
		cases, err := common.LoadSmokeCases(b.cfg.CanaryFile)
		if err != nil {
			return "", err
		}
		target := common.SmokeTarget{Host: host, Bucket: bucket, Region: region}
		if _, err := common.RunSmokeChecks(ctx, newSmokeDoer(), target, cases, logger); err != nil {
			return "", err
		}
	}
	return fmt.Sprintf("uploaded=%d deleted=%d invalidation=%s",
		len(res.Sync.Uploaded), len(res.Sync.Deleted), res.Invalidation.ID), nil
}
