package minio

import (
	"errors"
	"fmt"
	"net/http"

	miniogo "github.com/minio/minio-go/v7"
	"github.com/tendant/simple-blob/pkg/simpleblob/remote"
)

func errorResponse(err error) (miniogo.ErrorResponse, bool) {
	var resp miniogo.ErrorResponse
	if errors.As(err, &resp) {
		return resp, true
	}
	return miniogo.ErrorResponse{}, false
}

func isAuthError(err error) bool {
	resp, ok := errorResponse(err)
	if !ok {
		return false
	}
	switch resp.Code {
	case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch":
		return true
	}
	return resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusUnauthorized
}

func isTagSetMissing(err error) bool {
	resp, ok := errorResponse(err)
	return ok && resp.Code == "NoSuchTagSet"
}

// mapError translates a MinIO SDK error for key into the remote error taxonomy
func mapError(op, key string, err error) error {
	if resp, ok := errorResponse(err); ok {
		switch resp.Code {
		case "NoSuchBucket":
			return fmt.Errorf("%w: %s: %w", remote.ErrContainerNotFound, resp.BucketName, err)
		case "NoSuchKey", "NoSuchObject":
			return fmt.Errorf("%w: %s: %w", remote.ErrObjectNotFound, key, err)
		}
		if resp.StatusCode == http.StatusNotFound {
			return fmt.Errorf("%w: %s: %w", remote.ErrObjectNotFound, key, err)
		}
	}
	return fmt.Errorf("failed to %s %s in minio: %w", op, key, err)
}
