package duckdb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseParams(t *testing.T) {
	useSSL := false
	tests := []struct {
		name  string
		input map[string]any
		want  *Params
	}{
		{name: "nil", input: nil, want: &Params{}},
		{name: "empty", input: map[string]any{}, want: &Params{}},
		{
			name: "extensions and settings",
			input: map[string]any{
				"extensions": []any{"httpfs", "parquet"},
				"settings":   map[string]any{"memory_limit": "2GB", "threads": 4},
			},
			want: &Params{
				Extensions: []string{"httpfs", "parquet"},
				Settings:   map[string]string{"memory_limit": "2GB", "threads": "4"},
			},
		},
		{
			name: "secret for an external source bucket",
			input: map[string]any{
				"secrets": []any{
					map[string]any{
						"type":     "s3",
						"provider": "config",
						"key_id":   "AKIA",
						"secret":   "s3cr3t",
						"scope":    "s3://landing",
						"use_ssl":  "false",
					},
				},
			},
			want: &Params{
				Secrets: []SecretConfig{{
					Type:     "s3",
					Provider: "config",
					KeyID:    "AKIA",
					Secret:   "s3cr3t",
					Scope:    "s3://landing",
					UseSSL:   &useSSL,
				}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseParams(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseParams_BadShape(t *testing.T) {
	_, err := parseParams(map[string]any{"secrets": "not a list"})
	assert.ErrorContains(t, err, "failed to decode duckdb params")
}

func TestBuildCreateSecretSQL(t *testing.T) {
	useSSL := true
	tests := []struct {
		name string
		cfg  SecretConfig
		want string
	}{
		{
			name: "type only",
			cfg:  SecretConfig{Type: "gcs"},
			want: "CREATE SECRET (\n    TYPE gcs\n)",
		},
		{
			name: "credential chain with region",
			cfg:  SecretConfig{Type: "s3", Provider: "credential_chain", Region: "eu-west-1"},
			want: "CREATE SECRET (\n    TYPE s3,\n    PROVIDER credential_chain,\n    REGION 'eu-west-1'\n)",
		},
		{
			name: "scope list and quoting",
			cfg: SecretConfig{
				Type:     "s3",
				Scope:    []any{"s3://a", "s3://b"},
				Secret:   "it's",
				Endpoint: "minio:9000",
				URLStyle: "path",
				UseSSL:   &useSSL,
			},
			want: "CREATE SECRET (\n    TYPE s3,\n    SCOPE ('s3://a', 's3://b'),\n    SECRET 'it''s',\n" +
				"    ENDPOINT 'minio:9000',\n    URL_STYLE 'path',\n    USE_SSL true\n)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, buildCreateSecretSQL(tt.cfg))
		})
	}
}
