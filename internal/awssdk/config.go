package awssdk

import (
	"context"
	"fmt"
	"strings"

	awsv2 "github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
)

// LoadDefault loads the default AWS configuration for the given region using the
// standard environment/credentials chain.
func LoadDefault(ctx context.Context, region string) (awsv2.Config, error) {
	if region == "" {
		return awsconfig.LoadDefaultConfig(ctx)
	}
	return awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
}

// PartitionForRegion derives the AWS partition from a region name.
func PartitionForRegion(region string) string {
	switch {
	case strings.HasPrefix(region, "cn-"):
		return "aws-cn"
	case strings.HasPrefix(region, "us-gov-"):
		return "aws-us-gov"
	default:
		return "aws"
	}
}

// BucketObjectURL is the virtual-hosted S3 REST URL of key in bucket. Requests to it bypass the
// CDN, so for a private bucket they must be refused.
func BucketObjectURL(bucket, region, key string) string {
	suffix := "amazonaws.com"
	if PartitionForRegion(region) == "aws-cn" {
		suffix = "amazonaws.com.cn"
	}
	if region == "" {
		region = "us-east-1"
	}
	return fmt.Sprintf("https://%s.s3.%s.%s/%s", bucket, region, suffix, strings.TrimPrefix(key, "/"))
}

// BucketArn is the ARN of an S3 bucket in the region's partition.
func BucketArn(bucket, region string) string {
	return fmt.Sprintf("arn:%s:s3:::%s", PartitionForRegion(region), bucket)
}
