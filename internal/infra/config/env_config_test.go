package config_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/mkrupp/homecase-accounts/internal/infra/config"
)

type testConfig struct {
	EnvConfig

	StringValue   string        `env:"STRING_VALUE" default:"default"`
	IntValue      int           `env:"INT_VALUE" default:"42"`
	Int64Value    int64         `env:"INT64_VALUE" default:"5242880"`
	UintValue     uint32        `env:"UINT_VALUE" default:"7"`
	BoolValue     bool          `env:"BOOL_VALUE" default:"true"`
	DurationValue time.Duration `env:"DURATION_VALUE" default:"1h"`
	NoEnvTag      string
	Nested        testNestedConfig `envPrefix:"NESTED_"`
}

type testNestedConfig struct {
	NestedString string `env:"STRING" default:"nested-default"`
}

type requiredConfig struct {
	EnvConfig

	Secret string `env:"TEST_REQUIRED_SECRET"`
}

func defaults() testConfig {
	return testConfig{
		StringValue:   "default",
		IntValue:      42,
		Int64Value:    5242880,
		UintValue:     7,
		BoolValue:     true,
		DurationValue: time.Hour,
		Nested: testNestedConfig{
			NestedString: "nested-default",
		},
	}
}

//nolint:paralleltest
func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		prefix  string
		envVars map[string]string
		want    func(cfg *testConfig)
		wantErr bool
	}{
		{
			name:    "uses default values when env vars not set",
			envVars: map[string]string{},
			want:    func(*testConfig) {},
		},
		{
			name: "reads environment variables",
			envVars: map[string]string{
				"STRING_VALUE":   "env-value",
				"INT_VALUE":      "123",
				"INT64_VALUE":    "1024",
				"UINT_VALUE":     "9",
				"BOOL_VALUE":     "false",
				"DURATION_VALUE": "90s",
				"NESTED_STRING":  "env-nested",
			},
			want: func(cfg *testConfig) {
				cfg.StringValue = "env-value"
				cfg.IntValue = 123
				cfg.Int64Value = 1024
				cfg.UintValue = 9
				cfg.BoolValue = false
				cfg.DurationValue = 90 * time.Second
				cfg.Nested.NestedString = "env-nested"
			},
		},
		{
			name:   "handles prefix correctly",
			prefix: "APP",
			envVars: map[string]string{
				"APP_STRING_VALUE": "prefixed-value",
			},
			want: func(cfg *testConfig) { cfg.StringValue = "prefixed-value" },
		},
		{
			name:   "prefers more specific prefix",
			prefix: "APP_SERVICE",
			envVars: map[string]string{
				"APP_STRING_VALUE":         "less-specific",
				"APP_SERVICE_STRING_VALUE": "more-specific",
			},
			want: func(cfg *testConfig) { cfg.StringValue = "more-specific" },
		},
		{
			name:   "falls back to unprefixed name",
			prefix: "APP_SERVICE",
			envVars: map[string]string{
				"STRING_VALUE": "bare",
			},
			want: func(cfg *testConfig) { cfg.StringValue = "bare" },
		},
		{
			name: "handles empty string values",
			envVars: map[string]string{
				"STRING_VALUE": "",
			},
			want: func(cfg *testConfig) { cfg.StringValue = "" },
		},
		{
			name:    "fails on invalid int value",
			envVars: map[string]string{"INT_VALUE": "not-a-number"},
			wantErr: true,
		},
		{
			name:    "fails on negative uint value",
			envVars: map[string]string{"UINT_VALUE": "-1"},
			wantErr: true,
		},
		{
			name:    "fails on invalid bool value",
			envVars: map[string]string{"BOOL_VALUE": "not-a-bool"},
			wantErr: true,
		},
		{
			name:    "fails on invalid duration value",
			envVars: map[string]string{"DURATION_VALUE": "soon"},
			wantErr: true,
		},
	}

	ctx := context.Background()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}

			cfg := &testConfig{}
			err := Parse(ctx, cfg, tt.prefix)

			if tt.wantErr {
				require.Error(t, err)

				return
			}

			require.NoError(t, err)

			want := defaults()
			tt.want(&want)

			assert.Equal(t, want.StringValue, cfg.StringValue)
			assert.Equal(t, want.IntValue, cfg.IntValue)
			assert.Equal(t, want.Int64Value, cfg.Int64Value)
			assert.Equal(t, want.UintValue, cfg.UintValue)
			assert.Equal(t, want.BoolValue, cfg.BoolValue)
			assert.Equal(t, want.DurationValue, cfg.DurationValue)
			assert.Empty(t, cfg.NoEnvTag)
			assert.Equal(t, want.Nested.NestedString, cfg.Nested.NestedString)
			assert.Equal(t, tt.prefix, cfg.Namespace())
		})
	}
}

//nolint:paralleltest
func TestParseRequired(t *testing.T) {
	t.Run("missing required var", func(t *testing.T) {
		err := Parse(context.Background(), &requiredConfig{}, "")
		require.ErrorIs(t, err, ErrVarNotSet)
	})

	t.Run("required var set", func(t *testing.T) {
		t.Setenv("TEST_REQUIRED_SECRET", "s3cr3t")

		cfg := &requiredConfig{}
		require.NoError(t, Parse(context.Background(), cfg, ""))
		assert.Equal(t, "s3cr3t", cfg.Secret)
	})
}

func TestParseInvalidConfig(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cfg  any
	}{
		{name: "non-pointer config", cfg: testConfig{}},
		{name: "non-struct pointer", cfg: new(string)},
		{
			name: "missing EnvConfig embedding",
			cfg: &struct {
				Value string `env:"VALUE"`
			}{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := Parse(context.Background(), tt.cfg, "")
			require.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

//nolint:paralleltest
func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")

	require.NoError(t, os.WriteFile(path, []byte("DOTENV_FROM_FILE=file\nDOTENV_PRESET=file\n"), 0o600))

	t.Setenv("DOTENV_PRESET", "process")
	t.Cleanup(func() { os.Unsetenv("DOTENV_FROM_FILE") })

	require.NoError(t, LoadDotEnv(filepath.Join(dir, "missing.env"), path))

	assert.Equal(t, "file", os.Getenv("DOTENV_FROM_FILE"))
	assert.Equal(t, "process", os.Getenv("DOTENV_PRESET"), "existing variables are kept")
}
