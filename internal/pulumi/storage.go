package provider

import (
	"fmt"

	awss3 "github.com/pulumi/pulumi-aws/sdk/v6/go/aws/s3"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"

	"github.com/mikecbrant/secure-static-site/internal/plan"
	"github.com/mikecbrant/secure-static-site/internal/site"
)

type siteStorage struct {
	bucket       *awss3.BucketV2
	publicAccess *awss3.BucketPublicAccessBlock
}

// buildStorage declares the private bucket. Its name is the site domain, so collisions with
// an existing bucket surface as a create error from the engine.
func (b *builder) buildStorage(_ *plan.Resolver) (any, error) {
	domain := b.cfg.SiteDomain()
	bucket, err := awss3.NewBucketV2(b.ctx, fmt.Sprintf("%s-bucket", b.name), &awss3.BucketV2Args{
		Bucket:       pulumi.StringPtr(domain),
		ForceDestroy: pulumi.BoolPtr(!b.cfg.RetainOnDelete),
		Tags:         b.tags(),
	}, b.retainOpts...)
	if err != nil {
		return nil, err
	}
	bucketOpts := append(append([]pulumi.ResourceOption{}, b.childOpts...), pulumi.Parent(bucket))

	pab, err := awss3.NewBucketPublicAccessBlock(b.ctx, fmt.Sprintf("%s-public-access", b.name), &awss3.BucketPublicAccessBlockArgs{
		Bucket:                bucket.ID(),
		BlockPublicAcls:       pulumi.BoolPtr(true),
		BlockPublicPolicy:     pulumi.BoolPtr(true),
		IgnorePublicAcls:      pulumi.BoolPtr(true),
		RestrictPublicBuckets: pulumi.BoolPtr(true),
	}, bucketOpts...)
	if err != nil {
		return nil, err
	}

	if _, err := awss3.NewBucketWebsiteConfigurationV2(b.ctx, fmt.Sprintf("%s-website", b.name), &awss3.BucketWebsiteConfigurationV2Args{
		Bucket:        bucket.ID(),
		IndexDocument: &awss3.BucketWebsiteConfigurationV2IndexDocumentArgs{Suffix: pulumi.String(site.IndexDocument)},
		ErrorDocument: &awss3.BucketWebsiteConfigurationV2ErrorDocumentArgs{Key: pulumi.String(site.IndexDocument)},
	}, bucketOpts...); err != nil {
		return nil, err
	}

	if _, err := awss3.NewBucketServerSideEncryptionConfigurationV2(b.ctx, fmt.Sprintf("%s-encryption", b.name), &awss3.BucketServerSideEncryptionConfigurationV2Args{
		Bucket: bucket.ID(),
		Rules: awss3.BucketServerSideEncryptionConfigurationV2RuleArray{
			&awss3.BucketServerSideEncryptionConfigurationV2RuleArgs{
				ApplyServerSideEncryptionByDefault: &awss3.BucketServerSideEncryptionConfigurationV2RuleApplyServerSideEncryptionByDefaultArgs{
					SseAlgorithm: pulumi.String("AES256"),
				},
			},
		},
	}, bucketOpts...); err != nil {
		return nil, err
	}

	return &siteStorage{bucket: bucket, publicAccess: pab}, nil
}
