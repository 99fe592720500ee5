package config_test

import (
	"context"
	"testing"
	"time"

	config "github.com/agentwire/a2a/server/config"
	envconfig "github.com/sethvargo/go-envconfig"
	assert "github.com/stretchr/testify/assert"
)

func TestConfig_LoadWithLookuper(t *testing.T) {
	tests := []struct {
		name         string
		envVars      map[string]string
		validateFunc func(t *testing.T, cfg *config.Config)
	}{
		{
			name:    "loads defaults when no env vars set",
			envVars: map[string]string{},
			validateFunc: func(t *testing.T, cfg *config.Config) {
				assert.Equal(t, "agentwire", cfg.AgentName)
				assert.Equal(t, "0.1.0", cfg.AgentVersion)
				assert.Equal(t, "0.2.2", cfg.ProtocolVersion)
				assert.Equal(t, "agent-info", cfg.DefaultSkill)
				assert.Equal(t, 30*time.Second, cfg.SkillTimeout)
				assert.False(t, cfg.Debug)

				assert.Equal(t, "8080", cfg.ServerConfig.Port)
				assert.Equal(t, 120*time.Second, cfg.ServerConfig.ReadTimeout)
				assert.True(t, cfg.ServerConfig.DisableHealthcheckLog)
				assert.False(t, cfg.ServerConfig.TLSConfig.Enable)

				assert.Equal(t, "memory", cfg.StoreConfig.Provider)
				assert.Equal(t, 1000, cfg.StoreConfig.Capacity)

				assert.False(t, cfg.PaymentConfig.Enable)
				assert.Equal(t, "exact", cfg.PaymentConfig.Scheme)
				assert.Equal(t, "base-sepolia", cfg.PaymentConfig.Network)
				assert.Equal(t, "USDC", cfg.PaymentConfig.Asset)
				assert.Equal(t, "0.01", cfg.PaymentConfig.Amount)

				assert.False(t, cfg.TelemetryConfig.Enable)
				assert.Equal(t, "9090", cfg.TelemetryConfig.MetricsConfig.Port)
			},
		},
		{
			name: "environment overrides",
			envVars: map[string]string{
				"AGENT_NAME":     "custom-agent",
				"DEFAULT_SKILL":  "echo",
				"SKILL_TIMEOUT":  "10s",
				"SERVER_PORT":    "9999",
				"STORE_PROVIDER": "redis",
				"STORE_CAPACITY": "50",
			},
			validateFunc: func(t *testing.T, cfg *config.Config) {
				assert.Equal(t, "custom-agent", cfg.AgentName)
				assert.Equal(t, "echo", cfg.DefaultSkill)
				assert.Equal(t, 10*time.Second, cfg.SkillTimeout)
				assert.Equal(t, "9999", cfg.ServerConfig.Port)
				assert.Equal(t, "redis", cfg.StoreConfig.Provider)
				assert.Equal(t, 50, cfg.StoreConfig.Capacity)
			},
		},
		{
			name: "payment gating configuration",
			envVars: map[string]string{
				"PAYMENT_ENABLE": "true",
				"PAYMENT_PAY_TO": "0x1234",
				"PAYMENT_AMOUNT": "1.50",
			},
			validateFunc: func(t *testing.T, cfg *config.Config) {
				assert.True(t, cfg.PaymentConfig.Enable)
				assert.Equal(t, "0x1234", cfg.PaymentConfig.PayTo)
				assert.Equal(t, "1.50", cfg.PaymentConfig.Amount)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lookuper := envconfig.MapLookuper(tt.envVars)
			cfg, err := config.LoadWithLookuper(context.Background(), nil, lookuper)
			assert.NoError(t, err)
			tt.validateFunc(t, cfg)
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	t.Run("corrects invalid capacity", func(t *testing.T) {
		cfg, err := config.NewWithDefaults(context.Background(), nil)
		assert.NoError(t, err)

		cfg.StoreConfig.Capacity = 0
		assert.NoError(t, cfg.Validate())
		assert.Equal(t, 1, cfg.StoreConfig.Capacity)
	})

	t.Run("corrects non-positive skill timeout", func(t *testing.T) {
		cfg, err := config.NewWithDefaults(context.Background(), nil)
		assert.NoError(t, err)

		cfg.SkillTimeout = 0
		assert.NoError(t, cfg.Validate())
		assert.Equal(t, 30*time.Second, cfg.SkillTimeout)
	})

	t.Run("payment gating requires a recipient", func(t *testing.T) {
		cfg, err := config.NewWithDefaults(context.Background(), nil)
		assert.NoError(t, err)

		cfg.PaymentConfig.Enable = true
		cfg.PaymentConfig.PayTo = ""
		assert.Error(t, cfg.Validate())

		cfg.PaymentConfig.PayTo = "0x1234"
		assert.NoError(t, cfg.Validate())
	})
}

func TestConfig_BaseConfigMerge(t *testing.T) {
	base := &config.Config{AgentName: "preset-agent"}

	cfg, err := config.LoadWithLookuper(context.Background(), base, envconfig.MapLookuper(map[string]string{}))
	assert.NoError(t, err)

	// Values present in the base config survive the environment pass
	assert.Equal(t, "preset-agent", cfg.AgentName)
	assert.Equal(t, "8080", cfg.ServerConfig.Port)
}
