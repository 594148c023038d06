package video

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"reelgen/internal/domain"
	"reelgen/internal/infra"
	"reelgen/internal/storage"
)

const (
	taskTypeTextVideo   = "TEXT_VIDEO"
	defaultListPageSize = 100
	defaultMaxListPages = 10
)

// BedrockAPI is the subset of the Bedrock runtime client used for async
// invocations.
type BedrockAPI interface {
	StartAsyncInvoke(ctx context.Context, params *bedrockruntime.StartAsyncInvokeInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.StartAsyncInvokeOutput, error)
	GetAsyncInvoke(ctx context.Context, params *bedrockruntime.GetAsyncInvokeInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.GetAsyncInvokeOutput, error)
	ListAsyncInvokes(ctx context.Context, params *bedrockruntime.ListAsyncInvokesInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ListAsyncInvokesOutput, error)
}

// ObjectStore is the subset of the S3 client used to fetch artifacts.
type ObjectStore interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// NovaReelConfig holds the fixed submission parameters.
type NovaReelConfig struct {
	ModelID      string
	Bucket       string
	ArtifactExt  string
	ListPageSize int32
	MaxListPages int
}

// NovaReel drives Amazon Nova Reel through Bedrock async invocations and
// downloads finished videos from the output bucket.
type NovaReel struct {
	bedrock BedrockAPI
	objects ObjectStore
	store   *storage.FileStore
	cfg     NovaReelConfig
	logger  *infra.Logger
}

// NewNovaReel wires the provider. store is the local artifact root.
func NewNovaReel(bedrock BedrockAPI, objects ObjectStore, store *storage.FileStore, cfg NovaReelConfig, logger *infra.Logger) *NovaReel {
	if logger == nil {
		logger = infra.NopLogger()
	}
	cfg.Bucket = strings.TrimSuffix(strings.TrimPrefix(cfg.Bucket, "s3://"), "/")
	cfg.ArtifactExt = strings.TrimPrefix(cfg.ArtifactExt, ".")
	if cfg.ArtifactExt == "" {
		cfg.ArtifactExt = "mp4"
	}
	if cfg.ListPageSize <= 0 {
		cfg.ListPageSize = defaultListPageSize
	}
	if cfg.MaxListPages <= 0 {
		cfg.MaxListPages = defaultMaxListPages
	}
	return &NovaReel{bedrock: bedrock, objects: objects, store: store, cfg: cfg, logger: logger}
}

// NewNovaReelFromConfig builds the provider from application config. The
// output bucket comes from cfg.OutputURI.
func NewNovaReelFromConfig(clients *infra.AWSClients, store *storage.FileStore, cfg *infra.Config, logger *infra.Logger) *NovaReel {
	return NewNovaReel(clients.Bedrock, clients.S3, store, NovaReelConfig{
		ModelID:     cfg.BedrockModelID,
		Bucket:      cfg.OutputURI(),
		ArtifactExt: cfg.ArtifactExt,
	}, logger)
}

// Submit starts an async invocation writing into the output bucket.
func (n *NovaReel) Submit(ctx context.Context, job *domain.Job) (string, error) {
	if job == nil {
		return "", submissionError(errors.New("job is required"))
	}
	out, err := n.bedrock.StartAsyncInvoke(ctx, &bedrockruntime.StartAsyncInvokeInput{
		ModelId:    aws.String(n.cfg.ModelID),
		ModelInput: document.NewLazyDocument(requestDocument(job)),
		OutputDataConfig: &types.AsyncInvokeOutputDataConfigMemberS3OutputDataConfig{
			Value: types.AsyncInvokeS3OutputDataConfig{S3Uri: aws.String(n.outputURI())},
		},
		ClientRequestToken: aws.String(uuid.NewString()),
	})
	if err != nil {
		n.logger.Error().Err(err).Str("job_key", job.Key()).Msg("novareel: submit failed")
		return "", submissionError(err)
	}
	arn := strings.TrimSpace(aws.ToString(out.InvocationArn))
	if arn == "" {
		return "", submissionError(errors.New("service returned no invocation arn"))
	}
	n.logger.Info().
		Str("job_key", job.Key()).
		Str("invocation_arn", arn).
		Msg("novareel: submitted")
	return arn, nil
}

// requestDocument renders the Nova Reel TEXT_VIDEO request body.
func requestDocument(job *domain.Job) map[string]any {
	return map[string]any{
		"taskType": taskTypeTextVideo,
		"textToVideoParams": map[string]any{
			"text": job.Prompt,
		},
		"videoGenerationConfig": map[string]any{
			"durationSeconds": job.Config.Duration,
			"fps":             job.Config.FPS,
			"dimension":       job.Config.Resolution,
			"seed":            job.Config.Seed,
		},
	}
}

// PollStatus consults the completed listing, then the failed listing, then a
// point lookup. The listings are eventually consistent, so an invocation
// missing from both is looked up directly.
func (n *NovaReel) PollStatus(ctx context.Context, arn string) (StatusReport, error) {
	arn = strings.TrimSpace(arn)
	if arn == "" {
		return StatusReport{}, statusCheckError(errors.New("invocation arn is required"))
	}

	if _, ok, err := n.findListed(ctx, arn, types.AsyncInvokeStatusCompleted); err != nil {
		return StatusReport{}, statusCheckError(err)
	} else if ok {
		return n.completed(arn), nil
	}

	if summary, ok, err := n.findListed(ctx, arn, types.AsyncInvokeStatusFailed); err != nil {
		return StatusReport{}, statusCheckError(err)
	} else if ok {
		return failed(aws.ToString(summary.FailureMessage)), nil
	}

	out, err := n.bedrock.GetAsyncInvoke(ctx, &bedrockruntime.GetAsyncInvokeInput{InvocationArn: aws.String(arn)})
	if err != nil {
		if isNotFound(err) {
			// An invocation that existed at submit time but is gone from
			// every view is taken as finished.
			n.logger.Warn().Str("invocation_arn", arn).Msg("novareel: invocation not found, assuming completed")
			return n.completed(arn), nil
		}
		return StatusReport{}, statusCheckError(err)
	}

	switch out.Status {
	case types.AsyncInvokeStatusCompleted:
		return n.completed(arn), nil
	case types.AsyncInvokeStatusFailed:
		return failed(aws.ToString(out.FailureMessage)), nil
	default:
		return StatusReport{Status: domain.StatusInProgress}, nil
	}
}

func (n *NovaReel) findListed(ctx context.Context, arn string, status types.AsyncInvokeStatus) (types.AsyncInvokeSummary, bool, error) {
	input := &bedrockruntime.ListAsyncInvokesInput{
		StatusEquals: status,
		MaxResults:   aws.Int32(n.cfg.ListPageSize),
	}
	for page := 0; page < n.cfg.MaxListPages; page++ {
		out, err := n.bedrock.ListAsyncInvokes(ctx, input)
		if err != nil {
			return types.AsyncInvokeSummary{}, false, fmt.Errorf("list %s invocations: %w", status, err)
		}
		for _, summary := range out.AsyncInvokeSummaries {
			if aws.ToString(summary.InvocationArn) == arn {
				return summary, true, nil
			}
		}
		next := aws.ToString(out.NextToken)
		if next == "" || next == aws.ToString(input.NextToken) {
			break
		}
		input.NextToken = aws.String(next)
	}
	return types.AsyncInvokeSummary{}, false, nil
}

func (n *NovaReel) completed(arn string) StatusReport {
	return StatusReport{Status: domain.StatusCompleted, Output: n.remoteURI(arn)}
}

func failed(reason string) StatusReport {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = domain.UnknownFailure
	}
	return StatusReport{Status: domain.StatusFailed, FailureReason: reason}
}

// LocateArtifact copies <id>/output.<ext> into the local store, falling back
// to the first other object under the <id> prefix with the right extension
// when the direct key cannot be fetched for any reason. An existing local
// copy is returned without contacting S3.
func (n *NovaReel) LocateArtifact(ctx context.Context, arn string) (string, error) {
	id := domain.InvocationID(arn)
	if id == "" {
		return "", nil
	}
	localKey := n.artifactKey(id)
	if n.store.Exists(localKey) {
		return n.store.Path(localKey)
	}

	err := n.download(ctx, localKey, localKey)
	if err != nil && ctx.Err() == nil {
		directErr := err
		if !errors.Is(directErr, domain.ErrArtifactNotFound) {
			n.logger.Warn().Err(directErr).Str("invocation_arn", arn).Msg("novareel: direct artifact fetch failed, scanning prefix")
		}
		var remoteKey string
		remoteKey, err = n.findObject(ctx, id, localKey)
		switch {
		case err == nil:
			err = n.download(ctx, remoteKey, localKey)
		case errors.Is(err, domain.ErrArtifactNotFound):
			// nothing else under the prefix; report why the direct key failed
			err = directErr
		}
	}
	switch {
	case errors.Is(err, domain.ErrArtifactNotFound):
		n.logger.Warn().Str("invocation_arn", arn).Msg("novareel: no artifact found")
		return "", nil
	case err != nil:
		return "", err
	}

	n.logger.Info().Str("invocation_arn", arn).Str("key", localKey).Msg("novareel: artifact downloaded")
	return n.store.Path(localKey)
}

func (n *NovaReel) download(ctx context.Context, remoteKey, localKey string) error {
	out, err := n.objects.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(n.cfg.Bucket),
		Key:    aws.String(remoteKey),
	})
	if err != nil {
		if isNotFound(err) {
			return fmt.Errorf("%w: s3://%s/%s", domain.ErrArtifactNotFound, n.cfg.Bucket, remoteKey)
		}
		return fmt.Errorf("get s3://%s/%s: %w", n.cfg.Bucket, remoteKey, err)
	}
	defer out.Body.Close()

	if _, err := n.store.WriteFrom(ctx, localKey, out.Body); err != nil {
		return fmt.Errorf("store artifact %s: %w", localKey, err)
	}
	return nil
}

// findObject returns the first key under the id prefix with the artifact
// extension, other than skip.
func (n *NovaReel) findObject(ctx context.Context, id, skip string) (string, error) {
	suffix := "." + n.cfg.ArtifactExt
	paginator := s3.NewListObjectsV2Paginator(n.objects, &s3.ListObjectsV2Input{
		Bucket: aws.String(n.cfg.Bucket),
		Prefix: aws.String(id + "/"),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return "", fmt.Errorf("list s3://%s/%s: %w", n.cfg.Bucket, id, err)
		}
		for _, obj := range page.Contents {
			if key := aws.ToString(obj.Key); key != skip && strings.HasSuffix(key, suffix) {
				return key, nil
			}
		}
	}
	return "", fmt.Errorf("%w: no %s object under s3://%s/%s", domain.ErrArtifactNotFound, suffix, n.cfg.Bucket, id)
}

func (n *NovaReel) artifactKey(id string) string {
	return path.Join(id, "output."+n.cfg.ArtifactExt)
}

func (n *NovaReel) outputURI() string {
	return "s3://" + n.cfg.Bucket
}

func (n *NovaReel) remoteURI(arn string) string {
	return n.outputURI() + "/" + n.artifactKey(domain.InvocationID(arn))
}

var _ Service = (*NovaReel)(nil)
