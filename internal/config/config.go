package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	v *viper.Viper
}

// New creates a new configuration instance
func New() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("/etc/newsletter-filter/")
	v.AddConfigPath("$HOME/.newsletter-filter")
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")

	setDefaults(v)

	v.AutomaticEnv()
	v.SetEnvPrefix("NEWSLETTER_FILTER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, using defaults
	}

	return &Config{v: v}, nil
}

// NewFromViper creates a new configuration instance from an existing Viper instance
func NewFromViper(v *viper.Viper) *Config {
	return &Config{v: v}
}

// NewEmptyViper creates a new Viper instance with defaults
func NewEmptyViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	return v
}

// setDefaults sets the default configuration values
func setDefaults(v *viper.Viper) {
	// Detection defaults
	v.SetDefault("detection.verify_low", 0.4)
	v.SetDefault("detection.verify_high", 0.6)

	// Server defaults
	v.SetDefault("server.filter_type", "postfix")
	v.SetDefault("server.listen_address", "0.0.0.0:10025")
	v.SetDefault("server.headers.status", "X-Newsletter-Status")
	v.SetDefault("server.headers.score", "X-Newsletter-Score")
	v.SetDefault("server.headers.reason", "X-Newsletter-Reason")
	v.SetDefault("server.subject_prefix", "")
	v.SetDefault("server.modify_subject", false)
	v.SetDefault("server.verify_on_ambiguous", true)
	v.SetDefault("server.postfix.enabled", false)
	v.SetDefault("server.postfix.address", "127.0.0.1")
	v.SetDefault("server.postfix.port", 10026)

	// Reputation store defaults
	v.SetDefault("reputation.type", "memory")
	v.SetDefault("reputation.sqlite_path", "/data/reputation.db")
	v.SetDefault("reputation.mysql_dsn", "user:password@tcp(localhost:3306)/newsletter_filter")
	v.SetDefault("reputation.redis_addr", "localhost:6379")
	v.SetDefault("reputation.redis_password", "")
	v.SetDefault("reputation.redis_db", 0)

	// Feedback/verification storage defaults
	v.SetDefault("storage.type", "memory")
	v.SetDefault("storage.feedback_path", "/data/feedback.db")
	v.SetDefault("storage.verification_path", "/data/verification.db")

	// Verification defaults
	v.SetDefault("verification.expiry_days", 7)
	v.SetDefault("verification.max_resend_count", 3)
	v.SetDefault("verification.base_url", "http://localhost:8080")
	v.SetDefault("verification.sweep_frequency", "1h")
	v.SetDefault("verification.batch_threshold", 0.7)
	v.SetDefault("verification.batch_limit", 50)

	// Improver defaults
	v.SetDefault("improver.high_confidence", 0.8)
	v.SetDefault("improver.low_confidence", 0.2)
	v.SetDefault("improver.learning_rate", 0.3)
	v.SetDefault("improver.surprise_boost", 2.0)
	v.SetDefault("improver.surprise_damp", 0.5)
	v.SetDefault("improver.min_training_items", 10)
	v.SetDefault("improver.weights.confirm", 1.0)
	v.SetDefault("improver.weights.reject", 1.0)
	v.SetDefault("improver.weights.verify", 0.8)
	v.SetDefault("improver.weights.uncertain", 0.3)
	v.SetDefault("improver.weights.ignore", 0.1)

	// Delivery defaults
	v.SetDefault("delivery.type", "log")
	v.SetDefault("delivery.from", "verify@localhost")
	v.SetDefault("delivery.ses.region", "us-east-1")
	v.SetDefault("delivery.ses.access_key", "")
	v.SetDefault("delivery.ses.secret_key", "")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// GetString gets a string value from the configuration
func (c *Config) GetString(key string) string {
	return c.v.GetString(key)
}

// GetInt gets an integer value from the configuration
func (c *Config) GetInt(key string) int {
	return c.v.GetInt(key)
}

// GetFloat64 gets a float64 value from the configuration
func (c *Config) GetFloat64(key string) float64 {
	return c.v.GetFloat64(key)
}

// GetBool gets a boolean value from the configuration
func (c *Config) GetBool(key string) bool {
	return c.v.GetBool(key)
}

// GetStringSlice gets a string slice value from the configuration
func (c *Config) GetStringSlice(key string) []string {
	return c.v.GetStringSlice(key)
}

// GetDuration gets a duration value from the configuration
func (c *Config) GetDuration(key string) (time.Duration, error) {
	return time.ParseDuration(c.GetString(key))
}

// GetViper returns the underlying Viper instance
func (c *Config) GetViper() *viper.Viper {
	return c.v
}
