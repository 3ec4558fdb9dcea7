package errors

import (
	goerrors "errors"
	"fmt"

	"github.com/aws/smithy-go"
)

// ConflictError indicates a naming or ownership conflict; callers should not blindly retry.
type ConflictError struct{ Cause error }

func (e *ConflictError) Error() string { return fmt.Sprintf("conflict: %v", e.Cause) }
func (e *ConflictError) Unwrap() error { return e.Cause }

// RetryableError indicates the request may succeed on retry with backoff.
type RetryableError struct{ Cause error }

func (e *RetryableError) Error() string { return fmt.Sprintf("retryable: %v", e.Cause) }
func (e *RetryableError) Unwrap() error { return e.Cause }

// NotFoundError indicates the bucket or distribution addressed does not exist.
type NotFoundError struct{ Cause error }

func (e *NotFoundError) Error() string { return fmt.Sprintf("not found: %v", e.Cause) }
func (e *NotFoundError) Unwrap() error { return e.Cause }

// OpError is a generic wrapper for unexpected failures.
type OpError struct{ Cause error }

func (e *OpError) Error() string { return fmt.Sprintf("op error: %v", e.Cause) }
func (e *OpError) Unwrap() error { return e.Cause }

// Classify maps smithy errors from S3 and CloudFront to the categories above.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	var api smithy.APIError
	if goerrors.As(err, &api) {
		switch api.ErrorCode() {
		case "BucketAlreadyExists", "BucketAlreadyOwnedByYou", "InvalidationBatchAlreadyExists", "CNAMEAlreadyExists":
			return &ConflictError{Cause: err}
		case "Throttling", "ThrottlingException", "SlowDown", "RequestLimitExceeded", "TooManyInvalidationsInProgress", "ServiceUnavailable":
			return &RetryableError{Cause: err}
		case "NoSuchBucket", "NoSuchDistribution", "NotFound":
			return &NotFoundError{Cause: err}
		}
	}
	return &OpError{Cause: err}
}

// IsRetryable reports whether err was classified as retryable.
func IsRetryable(err error) bool {
	var r *RetryableError
	return goerrors.As(err, &r)
}
