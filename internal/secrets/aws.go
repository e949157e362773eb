package secrets

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

// AWSResolver reads device passwords from AWS Secrets Manager; the secret
// reference is the secret's ARN or name.
type AWSResolver struct {
	client *secretsmanager.Client
}

// NewAWSResolver builds a resolver from the default AWS config chain
// (environment, shared config, instance role).
func NewAWSResolver(ctx context.Context) (*AWSResolver, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	return &AWSResolver{client: secretsmanager.NewFromConfig(cfg)}, nil
}

func (r *AWSResolver) Resolve(ctx context.Context, secretRef string) (string, error) {
	out, err := r.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(secretRef),
	})
	if err != nil {
		return "", fmt.Errorf("get secret value: %w", err)
	}
	if out.SecretString == nil || *out.SecretString == "" {
		return "", fmt.Errorf("secret %q has no string value", secretRef)
	}
	return *out.SecretString, nil
}
