package provider

import (
	"fmt"

	awscloudfront "github.com/pulumi/pulumi-aws/sdk/v6/go/aws/cloudfront"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"

	"github.com/mikecbrant/secure-static-site/internal/plan"
	"github.com/mikecbrant/secure-static-site/internal/site"
)

type siteDistribution struct {
	distribution *awscloudfront.Distribution
}

// buildDistribution fronts the bucket with CloudFront. The viewer certificate is read from the
// validation resource, never from the certificate itself.
func (b *builder) buildDistribution(r *plan.Resolver) (any, error) {
	st, err := plan.Value[*siteStorage](r, site.ComponentStorage)
	if err != nil {
		return nil, err
	}
	val, err := plan.Value[*certificateValidation](r, site.ComponentCertificateValidation)
	if err != nil {
		return nil, err
	}
	oai, err := plan.Value[*awscloudfront.OriginAccessIdentity](r, site.ComponentAccessIdentity)
	if err != nil {
		return nil, err
	}

	originID := fmt.Sprintf("%s-origin", b.name)
	dist, err := awscloudfront.NewDistribution(b.ctx, fmt.Sprintf("%s-distribution", b.name), &awscloudfront.DistributionArgs{
		Enabled:           pulumi.Bool(true),
		Comment:           pulumi.StringPtr(b.cfg.SiteDomain()),
		Aliases:           pulumi.ToStringArray(b.cfg.Aliases()),
		DefaultRootObject: pulumi.StringPtr(site.IndexDocument),
		IsIpv6Enabled:     pulumi.BoolPtr(true),
		HttpVersion:       pulumi.StringPtr(site.HTTPVersion),
		PriceClass:        pulumi.StringPtr(b.cfg.PriceClass),
		Origins: awscloudfront.DistributionOriginArray{
			&awscloudfront.DistributionOriginArgs{
				OriginId:   pulumi.String(originID),
				DomainName: st.bucket.BucketRegionalDomainName,
				S3OriginConfig: &awscloudfront.DistributionOriginS3OriginConfigArgs{
					OriginAccessIdentity: oai.CloudfrontAccessIdentityPath,
				},
			},
		},
		DefaultCacheBehavior: &awscloudfront.DistributionDefaultCacheBehaviorArgs{
			TargetOriginId:       pulumi.String(originID),
			ViewerProtocolPolicy: pulumi.String(site.ViewerProtocolPolicy),
			AllowedMethods:       pulumi.ToStringArray(site.AllowedMethods),
			CachedMethods:        pulumi.ToStringArray(site.CachedMethods),
			Compress:             pulumi.BoolPtr(true),
			MinTtl:               pulumi.IntPtr(0),
			DefaultTtl:           pulumi.IntPtr(site.DefaultTTL),
			MaxTtl:               pulumi.IntPtr(site.MaxTTL),
			ForwardedValues: &awscloudfront.DistributionDefaultCacheBehaviorForwardedValuesArgs{
				QueryString: pulumi.Bool(false),
				Cookies: &awscloudfront.DistributionDefaultCacheBehaviorForwardedValuesCookiesArgs{
					Forward: pulumi.String("none"),
				},
			},
		},
		CustomErrorResponses: errorResponses(site.SPAErrorResponses()),
		Restrictions: &awscloudfront.DistributionRestrictionsArgs{
			GeoRestriction: &awscloudfront.DistributionRestrictionsGeoRestrictionArgs{
				RestrictionType: pulumi.String("none"),
			},
		},
		ViewerCertificate: &awscloudfront.DistributionViewerCertificateArgs{
			AcmCertificateArn:      val.validation.CertificateArn,
			SslSupportMethod:       pulumi.StringPtr(site.SSLSupportMethod),
			MinimumProtocolVersion: pulumi.StringPtr(b.cfg.MinimumProtocolVersion),
		},
		Tags: b.tags(),
	}, b.childOpts...)
	if err != nil {
		return nil, err
	}
	return &siteDistribution{distribution: dist}, nil
}

func errorResponses(in []site.ErrorResponse) awscloudfront.DistributionCustomErrorResponseArray {
	out := make(awscloudfront.DistributionCustomErrorResponseArray, 0, len(in))
	for _, e := range in {
		out = append(out, &awscloudfront.DistributionCustomErrorResponseArgs{
			ErrorCode:          pulumi.Int(e.ErrorCode),
			ResponseCode:       pulumi.IntPtr(e.ResponseCode),
			ResponsePagePath:   pulumi.StringPtr(e.ResponsePagePath),
			ErrorCachingMinTtl: pulumi.IntPtr(e.ErrorCachingMinTTL),
		})
	}
	return out
}
