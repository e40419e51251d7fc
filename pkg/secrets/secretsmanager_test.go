package secrets

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockAPI struct {
	GetSecretValueFunc func(ctx context.Context, params *secretsmanager.GetSecretValueInput) (*secretsmanager.GetSecretValueOutput, error)
}

func (m *mockAPI) GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	return m.GetSecretValueFunc(ctx, params)
}

func TestSecretsManager_Fetch(t *testing.T) {
	tests := []struct {
		name    string
		out     *secretsmanager.GetSecretValueOutput
		err     error
		want    map[string]string
		wantErr string
	}{
		{
			name: "flat json",
			out:  &secretsmanager.GetSecretValueOutput{SecretString: aws.String(`{"VAPID_PRIVATE_KEY":"priv","OPENAI_API_KEY":"sk"}`)},
			want: map[string]string{"VAPID_PRIVATE_KEY": "priv", "OPENAI_API_KEY": "sk"},
		},
		{
			name:    "binary secret",
			out:     &secretsmanager.GetSecretValueOutput{SecretBinary: []byte{1, 2}},
			wantErr: "no string value",
		},
		{
			name:    "nested json",
			out:     &secretsmanager.GetSecretValueOutput{SecretString: aws.String(`{"vapid":{"private_key":"x"}}`)},
			wantErr: "decode secret prod/nudge",
		},
		{
			name:    "api failure",
			err:     errors.New("AccessDeniedException"),
			wantErr: "get secret prod/nudge: AccessDeniedException",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotID string
			sm := NewWithClient(&mockAPI{GetSecretValueFunc: func(ctx context.Context, params *secretsmanager.GetSecretValueInput) (*secretsmanager.GetSecretValueOutput, error) {
				gotID = aws.ToString(params.SecretId)
				return tt.out, tt.err
			}})

			got, err := sm.Fetch(context.Background(), "prod/nudge")
			assert.Equal(t, "prod/nudge", gotID)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
