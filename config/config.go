package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"goflare.io/ember"
	emberConfig "goflare.io/ember/config"
	"goflare.io/ignite"
	"goflare.io/quoting/driver"
	"goflare.io/quoting/schema"
)

const (
	ServerStartPort = ":8080"

	StorageDriverPostgres = "postgres"
	StorageDriverMemory   = "memory"

	envPrefix     = "QUOTING"
	configPathEnv = "QUOTING_CONFIG"
)

type Config struct {
	Server   ServerConfig
	Storage  StorageConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Nats     NatsConfig
	Outbox   OutboxConfig
	Log      LogConfig
}

type ServerConfig struct {
	Address string `mapstructure:"address"`
}

type StorageConfig struct {
	Driver string `mapstructure:"driver"`
	// Migrate applies driver/migrations.sql on startup.
	Migrate bool `mapstructure:"migrate"`
}

type PostgresConfig struct {
	URL string `mapstructure:"url"`
}

type RedisConfig struct {
	Addr      string        `mapstructure:"addr"`
	Password  string        `mapstructure:"password"`
	SchemaTTL time.Duration `mapstructure:"schema_ttl"`
}

type NatsConfig struct {
	URL string `mapstructure:"url"`
}

type OutboxConfig struct {
	Workers   int `mapstructure:"workers"`
	BatchSize int `mapstructure:"batch_size"`
	QueueSize int `mapstructure:"queue_size"`
}

type LogConfig struct {
	Development bool `mapstructure:"development"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.address", ServerStartPort)
	v.SetDefault("storage.driver", StorageDriverPostgres)
	v.SetDefault("storage.migrate", false)
	v.SetDefault("postgres.url", "")
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.schema_ttl", 10*time.Minute)
	v.SetDefault("nats.url", "")
	v.SetDefault("outbox.workers", 4)
	v.SetDefault("outbox.batch_size", 100)
	v.SetDefault("outbox.queue_size", 1000)
	v.SetDefault("log.development", false)
}

// ProvideApplicationConfig reads ./config.yaml, or the file named by
// QUOTING_CONFIG, and applies QUOTING_* environment overrides such as
// QUOTING_POSTGRES_URL. A missing default file is not an error.
func ProvideApplicationConfig() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	path, explicit := os.LookupEnv(configPathEnv)
	if !explicit {
		path = "./config.yaml"
	}
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *Config) validate() error {
	switch c.Storage.Driver {
	case StorageDriverMemory:
	case StorageDriverPostgres:
		if c.Postgres.URL == "" {
			return errors.New("postgres.url is required when storage.driver is postgres")
		}
	default:
		return fmt.Errorf("unknown storage.driver %q", c.Storage.Driver)
	}
	if c.Outbox.Workers < 1 || c.Outbox.BatchSize < 1 || c.Outbox.QueueSize < 1 {
		return errors.New("outbox.workers, outbox.batch_size and outbox.queue_size must be positive")
	}
	return nil
}

func ProvidePostgresConn(appConfig *Config) (driver.PostgresPool, error) {

	conn, err := driver.ConnectSQL(appConfig.Postgres.URL)
	if err != nil {
		return nil, err
	}

	return conn.Pool, nil
}

// ProvideSchemaCache returns nil when no redis address is configured; the
// schema engine then reads straight from storage.
func ProvideSchemaCache(appConfig *Config, logger *zap.Logger) (schema.Cache, error) {
	if appConfig.Redis.Addr == "" {
		logger.Info("redis.addr not set, schema cache disabled")
		return nil, nil
	}

	conn, err := driver.ConnectRedis(appConfig.Redis.Addr, appConfig.Redis.Password, 0)
	if err != nil {
		return nil, err
	}

	versions, err := ProvideEmber(conn)
	if err != nil {
		return nil, err
	}

	return schema.NewRedisCache(conn, versions, appConfig.Redis.SchemaTTL), nil
}

// ProvideNats returns nil when nats.url is empty. Events then stay in the
// outbox until a relay with a bus connection picks them up.
func ProvideNats(appConfig *Config, logger *zap.Logger) (*nats.Conn, error) {
	if appConfig.Nats.URL == "" {
		logger.Info("nats.url not set, outbox relay disabled")
		return nil, nil
	}

	nc, err := nats.Connect(appConfig.Nats.URL,
		nats.Name("quoting"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats: %w", err)
	}

	return nc, nil
}

// ProvideEmber layers a local cache over the redis connection.
func ProvideEmber(conn *redis.Client) (*ember.MultiCache, error) {
	config := emberConfig.NewConfig()
	cache, err := ember.NewMultiCache(context.Background(), &config, conn)
	if err != nil {
		return nil, fmt.Errorf("failed to create cache: %w", err)
	}

	return cache, nil
}

func ProvideIgnite() ignite.Manager {
	return ignite.NewManager()
}

func NewLogger(appConfig *Config) *zap.Logger {

	if appConfig.Log.Development {
		logger, _ := zap.NewDevelopment()
		return logger
	}
	logger, _ := zap.NewProduction()
	return logger
}
