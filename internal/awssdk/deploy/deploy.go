// Package deploy publishes site assets: it syncs a local directory into the site bucket and then
// invalidates the distribution so viewers see the new content.
package deploy

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudfront"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/mikecbrant/secure-static-site/internal/awssdk"
	"github.com/mikecbrant/secure-static-site/internal/awssdk/cdn"
	"github.com/mikecbrant/secure-static-site/internal/awssdk/s3sync"
	"github.com/mikecbrant/secure-static-site/internal/site"
	"github.com/mikecbrant/secure-static-site/internal/utils/logging"
)

// Request describes one deployment.
type Request struct {
	Bucket         string
	DistributionID string
	SourceDir      string
	Exclude        []string
	Prune          bool
	CacheControl   string
	Concurrency    int
	// Wait, when positive, blocks until the invalidation completes or the duration elapses.
	Wait time.Duration
}

// Validate checks the request has everything needed to run.
func (r Request) Validate() error {
	switch {
	case r.Bucket == "":
		return errors.New("deploy: bucket is required")
	case r.DistributionID == "":
		return errors.New("deploy: distribution ID is required")
	case r.SourceDir == "":
		return errors.New("deploy: source directory is required")
	}
	return nil
}

// Result reports what a deployment did.
type Result struct {
	Sync         s3sync.Result
	Invalidation cdn.Invalidation
}

// CloudFrontClient is the subset of the CloudFront API used by Deployer.
type CloudFrontClient interface {
	cdn.InvalidationClient
	cloudfront.GetInvalidationAPIClient
}

// Deployer runs deployments against a bucket and distribution.
type Deployer struct {
	S3         s3sync.Client
	CloudFront CloudFrontClient
	Logger     logging.Logger
}

// New builds a Deployer from an AWS config.
func New(cfg aws.Config, logger logging.Logger) *Deployer {
	return &Deployer{
		S3:         s3.NewFromConfig(cfg),
		CloudFront: cloudfront.NewFromConfig(cfg),
		Logger:     logger,
	}
}

// NewDefault loads the default AWS credential chain for region and builds a Deployer.
func NewDefault(ctx context.Context, region string, logger logging.Logger) (*Deployer, error) {
	cfg, err := awssdk.LoadDefault(ctx, region)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	return New(cfg, logger), nil
}

// Deploy uploads changed assets, prunes stale ones when asked, then issues exactly one
// invalidation of every path. Re-running with unchanged assets uploads nothing but still
// invalidates once.
func (d *Deployer) Deploy(ctx context.Context, req Request) (Result, error) {
	if err := req.Validate(); err != nil {
		return Result{}, err
	}
	logger := logging.With(d.Logger, logging.Fields{"bucket": req.Bucket, "distributionId": req.DistributionID})
	logger.Info("deploy.start", logging.Fields{"source": req.SourceDir})

	syncRes, err := s3sync.Sync(ctx, d.S3, s3sync.Options{
		Bucket:       req.Bucket,
		SourceDir:    req.SourceDir,
		Exclude:      req.Exclude,
		Prune:        req.Prune,
		CacheControl: req.CacheControl,
		Concurrency:  req.Concurrency,
		Logger:       logger,
	})
	if err != nil {
		return Result{Sync: syncRes}, fmt.Errorf("sync assets: %w", err)
	}

	inv, err := cdn.Invalidate(ctx, d.CloudFront, req.DistributionID, []string{site.InvalidationPath}, logger)
	if err != nil {
		return Result{Sync: syncRes}, err
	}
	if req.Wait > 0 && inv.ID != "" {
		w := cloudfront.NewInvalidationCompletedWaiter(d.CloudFront)
		if err := w.Wait(ctx, &cloudfront.GetInvalidationInput{DistributionId: aws.String(req.DistributionID), Id: aws.String(inv.ID)}, req.Wait); err != nil {
			return Result{Sync: syncRes, Invalidation: inv}, fmt.Errorf("wait for invalidation %s: %w", inv.ID, err)
		}
		inv.Status = "Completed"
	}
	logger.Info("deploy.ok", logging.Fields{
		"uploaded":       len(syncRes.Uploaded),
		"deleted":        len(syncRes.Deleted),
		"invalidationId": inv.ID,
	})
	return Result{Sync: syncRes, Invalidation: inv}, nil
}
