package config

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/shark-explorer/shark-indexer/common"
	explorerconfig "github.com/shark-explorer/shark-indexer/modules/explorer/config"
	"github.com/shark-explorer/shark-indexer/pkg/logger"
	"github.com/shark-explorer/shark-indexer/pkg/logger/slogx"
	"github.com/shark-explorer/shark-indexer/pkg/middleware/requestcontext"
	"github.com/shark-explorer/shark-indexer/pkg/middleware/requestlogger"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var (
	configOnce sync.Once
	config     = &Config{
		Logger: logger.Config{
			Output: "TEXT",
		},
		Network:       common.NetworkMainnet,
		EnableModules: []string{common.ModuleExplorer.String()},
		ErgoNode: ErgoNode{
			URL:              "http://127.0.0.1:9053",
			RequestTimeoutMs: 30_000,
			CacheTTLSeconds:  3600,
		},
		Explorer: explorerconfig.Config{
			Datasource:      "ergo-node",
			Database:        "postgres",
			PollIntervalMs:  5000,
			BatchSize:       20,
			MaxWorkers:      8,
			MaxReorgDepth:   720,
			MaxBlockRetries: 5,
			APIHandlers:     []string{"http"},
		},
		HTTPServer: HTTPServer{
			Port: 8080,
		},
	}
)

type Config struct {
	Logger        logger.Config         `mapstructure:"logger"`
	Network       common.Network        `mapstructure:"network"`
	APIOnly       bool                  `mapstructure:"api_only"`
	EnableModules []string              `mapstructure:"enable_modules"`
	ErgoNode      ErgoNode              `mapstructure:"ergo_node"`
	Explorer      explorerconfig.Config `mapstructure:"explorer"`
	HTTPServer    HTTPServer            `mapstructure:"http_server"`
}

type ErgoNode struct {
	URL              string `mapstructure:"url"`
	APIKey           string `mapstructure:"api_key"`
	RequestTimeoutMs int64  `mapstructure:"request_timeout_ms"`
	CacheEnabled     bool   `mapstructure:"cache_enabled"`
	CacheTTLSeconds  int64  `mapstructure:"cache_ttl_s"`
	Redis            Redis  `mapstructure:"redis"`
}

type Redis struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type HTTPServer struct {
	Port      int                               `mapstructure:"port"`
	Logger    requestlogger.Config              `mapstructure:"logger"`
	RequestIP requestcontext.WithClientIPConfig `mapstructure:"request_ip"`
}

// Parse loads the configuration from the given file (or the default lookup
// paths when empty), environment variables and bound flags. Subsequent calls
// return the already parsed config.
func Parse(configFile string) Config {
	ctx := logger.WithContext(context.Background(), slog.String("package", "config"))
	configOnce.Do(func() {
		if configFile != "" {
			viper.SetConfigFile(configFile)
		} else {
			viper.AddConfigPath("./")
			viper.SetConfigName("config")
		}

		viper.AutomaticEnv()
		viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
		if err := viper.ReadInConfig(); err != nil {
			var errNotfound viper.ConfigFileNotFoundError
			if errors.As(err, &errNotfound) {
				logger.WarnContext(ctx, "config file not found, use default value", slogx.Error(err))
			} else {
				logger.PanicContext(ctx, "invalid config file", slogx.Error(err))
			}
		}

		if err := viper.Unmarshal(&config); err != nil {
			logger.PanicContext(ctx, "failed to unmarshal config", slogx.Error(err))
		}
		logger.InfoContext(ctx, "loaded config successfully")
	})

	return *config
}

// Load returns the shared config, parsing it with the default lookup paths
// if it has not been parsed yet.
func Load() Config {
	return Parse("")
}

// BindPFlag binds a configuration key to a command line flag.
func BindPFlag(key string, flag *pflag.Flag) {
	if err := viper.BindPFlag(key, flag); err != nil {
		logger.Panic("failed to bind flag to config", slogx.Error(err), slog.String("key", key))
	}
}
