// Package config loads process configuration from defaults, an optional YAML
// file, the environment and an optional AWS Secrets Manager secret.
package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/proxyhq/nudge-engine/internal/ai"
	"github.com/proxyhq/nudge-engine/internal/notification"
	"github.com/proxyhq/nudge-engine/internal/push"
)

type Config struct {
	Service  string `mapstructure:"service" validate:"required"`
	LogLevel string `mapstructure:"log_level" validate:"oneof=debug info warn warning error"`

	Database DatabaseConfig `mapstructure:"database"`
	VAPID    VAPIDConfig    `mapstructure:"vapid"`
	OpenAI   OpenAIConfig   `mapstructure:"openai"`
	Push     PushConfig     `mapstructure:"push"`
	Dispatch DispatchConfig `mapstructure:"dispatch"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	RabbitMQ RabbitMQConfig `mapstructure:"rabbitmq"`
	Resend   ResendConfig   `mapstructure:"resend"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Schedule ScheduleConfig `mapstructure:"schedule"`
	OTel     OTelConfig     `mapstructure:"otel"`
	Secrets  SecretsConfig  `mapstructure:"secrets"`
}

type DatabaseConfig struct {
	URL             string        `mapstructure:"url"`
	MaxOpenConns    int           `mapstructure:"max_open_conns" validate:"gte=0"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" validate:"gte=0"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// VAPIDConfig keys are not required here; a missing pair is reported by the
// dispatcher as a run-level configuration error.
type VAPIDConfig struct {
	PublicKey  string `mapstructure:"public_key"`
	PrivateKey string `mapstructure:"private_key"`
	Subject    string `mapstructure:"subject" validate:"required"`
}

type OpenAIConfig struct {
	APIKey      string        `mapstructure:"api_key"`
	BaseURL     string        `mapstructure:"base_url" validate:"required,url"`
	Model       string        `mapstructure:"model" validate:"required"`
	MaxTokens   int           `mapstructure:"max_tokens" validate:"gt=0"`
	Temperature float64       `mapstructure:"temperature" validate:"gte=0,lte=2"`
	Timeout     time.Duration `mapstructure:"timeout" validate:"gt=0"`
}

type PushConfig struct {
	TTL      time.Duration `mapstructure:"ttl" validate:"gt=0"`
	Urgency  string        `mapstructure:"urgency" validate:"oneof=very-low low normal high"`
	Timeout  time.Duration `mapstructure:"timeout" validate:"gt=0"`
	Icon     string        `mapstructure:"icon"`
	Badge    string        `mapstructure:"badge"`
	Tag      string        `mapstructure:"tag"`
	ClickURL string        `mapstructure:"click_url"`
}

type DispatchConfig struct {
	Workers               int     `mapstructure:"workers" validate:"gte=1,lte=64"`
	QuietStart            int     `mapstructure:"quiet_start" validate:"gte=0,lte=23"`
	QuietEnd              int     `mapstructure:"quiet_end" validate:"gte=0,lte=24"`
	FunctionalProbability float64 `mapstructure:"functional_probability" validate:"gte=0,lte=1"`
	PageSize              int     `mapstructure:"page_size" validate:"gte=1"`
	TaskLimit             int     `mapstructure:"task_limit" validate:"gte=1"`
	HistoryLimit          int     `mapstructure:"history_limit" validate:"gte=1"`
}

type RedisConfig struct {
	URL     string        `mapstructure:"url"`
	LockKey string        `mapstructure:"lock_key"`
	LockTTL time.Duration `mapstructure:"lock_ttl"`
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic" validate:"required_with=Brokers"`
}

type RabbitMQConfig struct {
	URL   string `mapstructure:"url"`
	Queue string `mapstructure:"queue" validate:"required"`
}

type ResendConfig struct {
	APIKey       string   `mapstructure:"api_key"`
	From         string   `mapstructure:"from"`
	AlertTo      []string `mapstructure:"alert_to" validate:"dive,email"`
	FailureRatio float64  `mapstructure:"failure_ratio" validate:"gt=0,lte=1"`
}

type HTTPConfig struct {
	Addr      string `mapstructure:"addr" validate:"required"`
	JWTSecret string `mapstructure:"jwt_secret"`
}

type ScheduleConfig struct {
	Interval time.Duration `mapstructure:"interval"`
	Cron     string        `mapstructure:"cron"`
}

type OTelConfig struct {
	Endpoint    string `mapstructure:"endpoint"`
	Environment string `mapstructure:"environment"`
}

type SecretsConfig struct {
	ID     string `mapstructure:"id"`
	Region string `mapstructure:"region"`
}

// SecretSource returns the flat key/value pairs stored under id.
type SecretSource interface {
	Fetch(ctx context.Context, id string) (map[string]string, error)
}

// secretKeys lists the settings a secret may override, by viper key.
var secretKeys = []string{
	"database.url",
	"vapid.public_key",
	"vapid.private_key",
	"openai.api_key",
	"resend.api_key",
	"http.jwt_secret",
	"redis.url",
	"rabbitmq.url",
}

// SetDefaults registers every key so AutomaticEnv can resolve it.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("service", "nudge")
	v.SetDefault("log_level", "info")

	v.SetDefault("database.url", "")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 30*time.Minute)

	v.SetDefault("vapid.public_key", "")
	v.SetDefault("vapid.private_key", "")
	v.SetDefault("vapid.subject", push.DefaultSubject)

	v.SetDefault("openai.api_key", "")
	v.SetDefault("openai.base_url", ai.DefaultBaseURL)
	v.SetDefault("openai.model", ai.DefaultModel)
	v.SetDefault("openai.max_tokens", ai.DefaultMaxTokens)
	v.SetDefault("openai.temperature", ai.DefaultTemperature)
	v.SetDefault("openai.timeout", ai.DefaultTimeout)

	v.SetDefault("push.ttl", push.DefaultTTL)
	v.SetDefault("push.urgency", "normal")
	v.SetDefault("push.timeout", push.DefaultTimeout)
	v.SetDefault("push.icon", notification.DefaultPayloadMeta.Icon)
	v.SetDefault("push.badge", notification.DefaultPayloadMeta.Badge)
	v.SetDefault("push.tag", notification.DefaultPayloadMeta.Tag)
	v.SetDefault("push.click_url", notification.DefaultPayloadMeta.ClickURL)

	v.SetDefault("dispatch.workers", notification.DefaultWorkers)
	v.SetDefault("dispatch.quiet_start", notification.DefaultQuietHours.Start)
	v.SetDefault("dispatch.quiet_end", notification.DefaultQuietHours.End)
	v.SetDefault("dispatch.functional_probability", notification.DefaultFunctionalProbability)
	v.SetDefault("dispatch.page_size", notification.DefaultPageSize)
	v.SetDefault("dispatch.task_limit", notification.DefaultTaskLimit)
	v.SetDefault("dispatch.history_limit", notification.DefaultHistoryLimit)

	v.SetDefault("redis.url", "")
	v.SetDefault("redis.lock_key", notification.DefaultLockKey)
	v.SetDefault("redis.lock_ttl", notification.DefaultLockTTL)

	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", "nudge.events")

	v.SetDefault("rabbitmq.url", "")
	v.SetDefault("rabbitmq.queue", "nudge.dispatch")

	v.SetDefault("resend.api_key", "")
	v.SetDefault("resend.from", "")
	v.SetDefault("resend.alert_to", []string{})
	v.SetDefault("resend.failure_ratio", notification.DefaultFailureRatio)

	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.jwt_secret", "")

	v.SetDefault("schedule.interval", time.Duration(0))
	v.SetDefault("schedule.cron", "")

	v.SetDefault("otel.endpoint", "")
	v.SetDefault("otel.environment", "development")

	v.SetDefault("secrets.id", "")
	v.SetDefault("secrets.region", "")
}

// New returns a viper instance reading NUDGE-less env names such as
// DATABASE_URL and VAPID_PRIVATE_KEY, plus cfgFile when non-empty.
func New(cfgFile string) (*viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(*os.PathError); !ok {
				return nil, fmt.Errorf("reading config %s: %w", cfgFile, err)
			}
		}
	}
	return v, nil
}

// Load unmarshals v, overlays the configured secret and validates the result.
// Every failure wraps notification.ErrConfiguration.
func Load(ctx context.Context, v *viper.Viper, secrets SecretSource) (*Config, error) {
	if id := v.GetString("secrets.id"); id != "" && secrets != nil {
		values, err := secrets.Fetch(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", notification.ErrConfiguration, err)
		}
		ApplySecrets(v, values)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%w: parsing config: %w", notification.ErrConfiguration, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplySecrets copies known keys from values into v. Secret keys may be
// written either as viper keys or as their env names.
func ApplySecrets(v *viper.Viper, values map[string]string) {
	for _, key := range secretKeys {
		envName := strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		for _, name := range []string{key, envName} {
			if val, ok := values[name]; ok && val != "" {
				v.Set(key, val)
				break
			}
		}
	}
}

var validate = validator.New()

func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("%w: %s failed on '%s' validation", notification.ErrConfiguration, fe.Namespace(), fe.Tag())
		}
		return fmt.Errorf("%w: %v", notification.ErrConfiguration, err)
	}
	if c.Dispatch.QuietStart == c.Dispatch.QuietEnd {
		return fmt.Errorf("%w: dispatch quiet window is empty", notification.ErrConfiguration)
	}
	if c.Schedule.Interval > 0 && c.Schedule.Cron != "" {
		return fmt.Errorf("%w: schedule.interval and schedule.cron are mutually exclusive", notification.ErrConfiguration)
	}
	return nil
}

func (c *Config) VAPIDKeys() notification.VAPIDKeys {
	return notification.VAPIDKeys{
		PublicKey:  c.VAPID.PublicKey,
		PrivateKey: c.VAPID.PrivateKey,
		Subject:    c.VAPID.Subject,
	}
}

func (c *Config) PayloadMeta() notification.PayloadMeta {
	return notification.PayloadMeta{
		Icon:     c.Push.Icon,
		Badge:    c.Push.Badge,
		Tag:      c.Push.Tag,
		ClickURL: c.Push.ClickURL,
	}
}

func (c *Config) DispatcherConfig() notification.Config {
	return notification.Config{
		Workers:      c.Dispatch.Workers,
		QuietHours:   notification.QuietHours{Start: c.Dispatch.QuietStart, End: c.Dispatch.QuietEnd},
		TaskLimit:    c.Dispatch.TaskLimit,
		HistoryLimit: c.Dispatch.HistoryLimit,
		Now:          time.Now,
	}
}
