// Package secrets reads JSON key/value secrets from AWS Secrets Manager.
package secrets

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

// API is the subset of the Secrets Manager client used here.
type API interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// SecretsManager fetches a secret whose string value is a flat JSON object.
// The AWS client is built on first use so processes without a secret id
// never load AWS credentials.
type SecretsManager struct {
	region string

	once   sync.Once
	client API
	err    error
}

func NewSecretsManager(region string) *SecretsManager {
	return &SecretsManager{region: region}
}

// NewWithClient wraps an existing client.
func NewWithClient(client API) *SecretsManager {
	s := &SecretsManager{client: client}
	s.once.Do(func() {})
	return s
}

func (s *SecretsManager) init(ctx context.Context) error {
	s.once.Do(func() {
		var opts []func(*config.LoadOptions) error
		if s.region != "" {
			opts = append(opts, config.WithRegion(s.region))
		}
		cfg, err := config.LoadDefaultConfig(ctx, opts...)
		if err != nil {
			s.err = fmt.Errorf("load aws config: %w", err)
			return
		}
		s.client = secretsmanager.NewFromConfig(cfg)
	})
	return s.err
}

// Fetch returns the key/value pairs stored under id.
func (s *SecretsManager) Fetch(ctx context.Context, id string) (map[string]string, error) {
	if err := s.init(ctx); err != nil {
		return nil, err
	}

	out, err := s.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(id),
	})
	if err != nil {
		return nil, fmt.Errorf("get secret %s: %w", id, err)
	}
	if out.SecretString == nil {
		return nil, fmt.Errorf("secret %s has no string value", id)
	}

	values := make(map[string]string)
	if err := json.Unmarshal([]byte(*out.SecretString), &values); err != nil {
		return nil, fmt.Errorf("decode secret %s: %w", id, err)
	}
	return values, nil
}
