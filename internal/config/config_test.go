package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name      string
		filePath  string
		wantErr   bool
		errString string
	}{
		{
			name:     "valid config file",
			filePath: "testdata/valid_config.yaml",
			wantErr:  false,
		},
		{
			name:      "non-existent file",
			filePath:  "testdata/nonexistent.yaml",
			wantErr:   true,
			errString: "failed to read config file",
		},
		{
			name:      "malformed yaml",
			filePath:  "testdata/malformed.yaml",
			wantErr:   true,
			errString: "failed to parse config file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(tt.filePath)

			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errString)
				assert.Nil(t, cfg)
				return
			}

			require.NoError(t, err)
			require.NotNil(t, cfg)

			assert.Equal(t, 8000, cfg.Server.Port)
			assert.Equal(t, DriverPostgres, cfg.Storage.Driver)
			assert.Equal(t, "rabbit_hole", cfg.Database.Database)
			assert.Equal(t, "learning_plans", cfg.RabbitMQ.Exchange.Name)
			assert.Equal(t, DispatcherRabbitMQ, cfg.Jobs.Dispatcher)
			assert.Equal(t, "21:9", cfg.Annotate.AspectRatios.Widescreen)
			assert.Equal(t, "4:3", cfg.Annotate.AspectRatios.Wide)
		})
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("testdata/minimal.yaml")
	require.NoError(t, err)

	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, DriverSQLite, cfg.Storage.Driver)
	assert.Equal(t, "gemini-3-flash-preview", cfg.Gemini.ChatModel)
	assert.Equal(t, "gemini-3-pro-image-preview", cfg.Gemini.ImageModel)
	assert.Equal(t, cfg.Gemini.ChatModel, cfg.Gemini.ResearchModel)
	assert.Equal(t, DispatcherLocal, cfg.Jobs.Dispatcher)
	assert.Equal(t, 30*time.Second, cfg.PDF.IndexWait)
	assert.Equal(t, 2*time.Second, cfg.PDF.PollInterval)
	assert.Equal(t, 3, cfg.Jobs.RetryAttempts)
	assert.Equal(t, 200*time.Millisecond, cfg.Jobs.RetryInterval)
	assert.Equal(t, AspectRatioLabels{
		Widescreen: "16:9",
		Wide:       "4:3",
		Square:     "1:1",
		Tall:       "3:4",
		Portrait:   "9:16",
	}, cfg.Annotate.AspectRatios)

	require.NoError(t, cfg.ValidateAPIConfig())
}

func TestLoad_APIKeyFromEnvironment(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "from-env")

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 9000\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Gemini.APIKey)
	assert.Equal(t, 9000, cfg.Server.Port)
}

func validAPIConfig() *Config {
	cfg := &Config{
		Gemini:  GeminiConfig{APIKey: "key"},
		Storage: StorageConfig{Driver: DriverMemory},
	}
	cfg.ApplyDefaults()
	return cfg
}

func TestConfig_ValidateAPIConfig(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(c *Config)
		errString string
	}{
		{
			name:   "valid config",
			mutate: func(c *Config) {},
		},
		{
			name:      "invalid server port - too low",
			mutate:    func(c *Config) { c.Server.Port = -1 },
			errString: "invalid server port",
		},
		{
			name:      "invalid server port - too high",
			mutate:    func(c *Config) { c.Server.Port = 70000 },
			errString: "invalid server port",
		},
		{
			name:      "missing api key",
			mutate:    func(c *Config) { c.Gemini.APIKey = "" },
			errString: "gemini api_key is required",
		},
		{
			name:      "unknown storage driver",
			mutate:    func(c *Config) { c.Storage.Driver = "mongo" },
			errString: "unknown storage driver",
		},
		{
			name: "postgres without database name",
			mutate: func(c *Config) {
				c.Storage.Driver = DriverPostgres
				c.Database = DatabaseConfig{Host: "localhost", Port: 5432}
			},
			errString: "database name is required",
		},
		{
			name: "postgres with url only",
			mutate: func(c *Config) {
				c.Storage.Driver = DriverPostgres
				c.Database = DatabaseConfig{URL: "postgres://localhost/rabbit_hole"}
			},
		},
		{
			name:      "redis without address",
			mutate:    func(c *Config) { c.Storage.Driver = DriverRedis },
			errString: "redis addr is required",
		},
		{
			name:      "unknown dispatcher",
			mutate:    func(c *Config) { c.Jobs.Dispatcher = "kafka" },
			errString: "unknown jobs dispatcher",
		},
		{
			name: "rabbitmq dispatcher with memory store",
			mutate: func(c *Config) {
				c.Jobs.Dispatcher = DispatcherRabbitMQ
			},
			errString: "requires a shared storage driver",
		},
		{
			name: "rabbitmq dispatcher without queue",
			mutate: func(c *Config) {
				c.Storage.Driver = DriverSQLite
				c.Jobs.Dispatcher = DispatcherRabbitMQ
				c.RabbitMQ = RabbitMQConfig{
					Host:     "localhost",
					Port:     5672,
					Exchange: ExchangeConfig{Name: "learning_plans"},
				}
			},
			errString: "rabbitmq queue name is required",
		},
		{
			name:      "missing aspect ratio label",
			mutate:    func(c *Config) { c.Annotate.AspectRatios.Tall = "" },
			errString: `label "tall" is required`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validAPIConfig()
			tt.mutate(cfg)

			err := cfg.ValidateAPIConfig()

			if tt.errString != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errString)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestConfig_ValidateWorkerConfig(t *testing.T) {
	t.Run("load and validate valid config", func(t *testing.T) {
		cfg, err := Load("testdata/valid_config.yaml")
		require.NoError(t, err)

		require.NoError(t, cfg.ValidateWorkerConfig())
	})

	t.Run("memory store is rejected", func(t *testing.T) {
		cfg, err := Load("testdata/memory_rabbit.yaml")
		require.NoError(t, err)

		err = cfg.ValidateWorkerConfig()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "worker requires a shared storage driver")
	})
}

func TestLoad_ValidateIntegration(t *testing.T) {
	t.Run("load config with invalid port", func(t *testing.T) {
		cfg, err := Load("testdata/invalid_port.yaml")
		require.NoError(t, err)

		err = cfg.ValidateAPIConfig()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid server port")
	})

	t.Run("load config with rabbit dispatch over memory store", func(t *testing.T) {
		cfg, err := Load("testdata/memory_rabbit.yaml")
		require.NoError(t, err)

		err = cfg.ValidateAPIConfig()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "requires a shared storage driver")
	})
}
