package provider

import (
	"fmt"

	awscloudfront "github.com/pulumi/pulumi-aws/sdk/v6/go/aws/cloudfront"
	awss3 "github.com/pulumi/pulumi-aws/sdk/v6/go/aws/s3"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"

	"github.com/mikecbrant/secure-static-site/internal/plan"
	"github.com/mikecbrant/secure-static-site/internal/site"
)

func (b *builder) buildAccessIdentity(_ *plan.Resolver) (any, error) {
	return awscloudfront.NewOriginAccessIdentity(b.ctx, fmt.Sprintf("%s-oai", b.name), &awscloudfront.OriginAccessIdentityArgs{
		Comment: pulumi.StringPtr(fmt.Sprintf("OAI for %s", b.name)),
	}, b.childOpts...)
}

// buildAccessPolicy attaches the bucket policy. The document is rebuilt from scratch on every
// run and always holds one statement, so drift is overwritten rather than accumulated.
func (b *builder) buildAccessPolicy(r *plan.Resolver) (any, error) {
	st, err := plan.Value[*siteStorage](r, site.ComponentStorage)
	if err != nil {
		return nil, err
	}
	oai, err := plan.Value[*awscloudfront.OriginAccessIdentity](r, site.ComponentAccessIdentity)
	if err != nil {
		return nil, err
	}
	doc := pulumi.All(st.bucket.Arn, oai.S3CanonicalUserId).ApplyT(func(args []interface{}) (string, error) {
		arn, _ := args[0].(string)
		canonical, _ := args[1].(string)
		policy, err := site.AccessPolicy(arn, canonical)
		if err != nil {
			return "", err
		}
		return policy.JSON()
	}).(pulumi.StringOutput)

	opts := append(append([]pulumi.ResourceOption{}, b.childOpts...),
		pulumi.Parent(st.bucket),
		pulumi.DependsOn([]pulumi.Resource{st.publicAccess}),
	)
	return awss3.NewBucketPolicy(b.ctx, fmt.Sprintf("%s-policy", b.name), &awss3.BucketPolicyArgs{
		Bucket: st.bucket.ID(),
		Policy: doc,
	}, opts...)
}
