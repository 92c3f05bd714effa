package s3

import (
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/tendant/simple-blob/pkg/simpleblob/remote"
)

// Error codes returned by S3 and S3-compatible services (MinIO reports some of
// them only through the generic API error).
const (
	codeNotFound     = "NotFound"
	codeNoSuchKey    = "NoSuchKey"
	codeNoSuchBucket = "NoSuchBucket"
	codeNoSuchTagSet = "NoSuchTagSet"
)

func errorCode(err error) string {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode()
	}
	return ""
}

func isBucketMissing(err error) bool {
	var noSuchBucket *types.NoSuchBucket
	if errors.As(err, &noSuchBucket) {
		return true
	}
	return errorCode(err) == codeNoSuchBucket
}

func isObjectMissing(err error) bool {
	var notFound *types.NotFound
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &notFound) || errors.As(err, &noSuchKey) {
		return true
	}
	switch errorCode(err) {
	case codeNotFound, codeNoSuchKey:
		return true
	}
	return false
}

func isTagSetMissing(err error) bool {
	return errorCode(err) == codeNoSuchTagSet
}

// mapObjectError translates an S3 error for key into the remote error taxonomy
func mapObjectError(op, key string, err error) error {
	switch {
	case isBucketMissing(err):
		return fmt.Errorf("%w: %s: %w", remote.ErrContainerNotFound, op, err)
	case isObjectMissing(err):
		return fmt.Errorf("%w: %s: %w", remote.ErrObjectNotFound, key, err)
	default:
		return fmt.Errorf("failed to %s %s in S3: %w", op, key, err)
	}
}
