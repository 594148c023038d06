package infra

import (
	"context"
	"fmt"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// AWSClients bundles the service clients the Nova Reel provider needs.
type AWSClients struct {
	Bedrock *bedrockruntime.Client
	S3      *s3.Client
}

// NewAWSClients resolves credentials through the default chain (env, shared
// config, instance role) for the configured region.
func NewAWSClients(ctx context.Context, cfg *Config) (*AWSClients, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.AWSRegion),
		awsconfig.WithRetryMaxAttempts(1),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return &AWSClients{
		Bedrock: bedrockruntime.NewFromConfig(awsCfg),
		S3:      s3.NewFromConfig(awsCfg),
	}, nil
}
