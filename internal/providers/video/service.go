package video

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/smithy-go"

	"reelgen/internal/domain"
)

// StatusReport is the normalized answer to a status query. Output is a
// best-effort remote descriptor of the artifact and is only set when Status
// is Completed; FailureReason is only set when Status is Failed.
type StatusReport struct {
	Status        domain.Status
	Output        string
	FailureReason string
}

// Service is the generation client the lifecycle controller drives.
type Service interface {
	// Submit starts generation for job and returns the invocation ARN.
	Submit(ctx context.Context, job *domain.Job) (string, error)
	// PollStatus normalizes the remote state of an invocation. Only transport
	// failures are reported as errors.
	PollStatus(ctx context.Context, arn string) (StatusReport, error)
	// LocateArtifact downloads the finished video into local storage and
	// returns its path, or "" when no artifact exists.
	LocateArtifact(ctx context.Context, arn string) (string, error)
}

func submissionError(err error) error {
	return fmt.Errorf("%w: %w", domain.ErrSubmission, err)
}

func statusCheckError(err error) error {
	return fmt.Errorf("%w: %w", domain.ErrStatusCheck, err)
}

// isNotFound matches the service-level "does not exist" answers of both
// Bedrock and S3.
func isNotFound(err error) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	switch apiErr.ErrorCode() {
	case "ResourceNotFoundException", "NoSuchKey", "NotFound":
		return true
	}
	return false
}
