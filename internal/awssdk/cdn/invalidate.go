// Package cdn issues CloudFront cache invalidations.
package cdn

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudfront"
	"github.com/aws/aws-sdk-go-v2/service/cloudfront/types"

	awserrors "github.com/mikecbrant/secure-static-site/internal/awssdk/errors"
	"github.com/mikecbrant/secure-static-site/internal/utils/logging"
)

// InvalidationClient is the subset of the CloudFront API used by Invalidate.
type InvalidationClient interface {
	CreateInvalidation(context.Context, *cloudfront.CreateInvalidationInput, ...func(*cloudfront.Options)) (*cloudfront.CreateInvalidationOutput, error)
}

// Invalidation identifies a submitted invalidation.
type Invalidation struct {
	ID     string
	Status string
}

// now is overridden in tests.
var now = time.Now

// Invalidate submits a single invalidation for paths on the distribution. The caller reference
// is unique per call so repeated deployments each get a fresh invalidation.
func Invalidate(ctx context.Context, client InvalidationClient, distributionID string, paths []string, logger logging.Logger) (Invalidation, error) {
	logger = logging.OrNop(logger)
	if distributionID == "" {
		return Invalidation{}, errors.New("cdn: distribution ID is required")
	}
	if len(paths) == 0 {
		return Invalidation{}, errors.New("cdn: at least one path is required")
	}
	ref := "static-site-" + strconv.FormatInt(now().UnixNano(), 10)
	out, err := client.CreateInvalidation(ctx, &cloudfront.CreateInvalidationInput{
		DistributionId: aws.String(distributionID),
		InvalidationBatch: &types.InvalidationBatch{
			CallerReference: aws.String(ref),
			Paths: &types.Paths{
				Quantity: aws.Int32(int32(len(paths))),
				Items:    paths,
			},
		},
	})
	if err != nil {
		return Invalidation{}, fmt.Errorf("invalidate %s: %w", distributionID, awserrors.Classify(err))
	}
	inv := Invalidation{}
	if out.Invalidation != nil {
		inv.ID = aws.ToString(out.Invalidation.Id)
		inv.Status = aws.ToString(out.Invalidation.Status)
	}
	logger.Info("cdn.invalidate.ok", logging.Fields{"distributionId": distributionID, "invalidationId": inv.ID, "paths": paths})
	return inv, nil
}
