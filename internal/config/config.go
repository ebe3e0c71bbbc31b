package config

import (
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
// The values are read by Viper from a config file or environment variables.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	S3       S3Config       `mapstructure:"s3"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Mail     MailConfig     `mapstructure:"mail"`
	AMQP     AMQPConfig     `mapstructure:"amqp"`
	Billing  BillingConfig  `mapstructure:"billing"`
	Schedule ScheduleConfig `mapstructure:"schedule"`
}

type ServerConfig struct {
	Address string `mapstructure:"address"`
	// Timezone is the IANA zone used to decide what "today" is for due dates
	// and schedule projection.
	Timezone string `mapstructure:"timezone"`
}

type DatabaseConfig struct {
	URI  string `mapstructure:"uri"`
	Name string `mapstructure:"name"`
}

type S3Config struct {
	Endpoint        string `mapstructure:"endpoint"`
	Region          string `mapstructure:"region"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	BucketName      string `mapstructure:"bucket_name"`
	UseSSL          bool   `mapstructure:"use_ssl"`
}

// JWTConfig defines JWT specific configuration
type JWTConfig struct {
	Secret     string        `mapstructure:"secret"`
	Expiration time.Duration `mapstructure:"expiration"`
}

// AuthConfig lists the accounts that get the admin role on registration.
type AuthConfig struct {
	AdminEmails []string `mapstructure:"admin_emails"`
}

// MailConfig configures outgoing email. An empty API key selects the noop sender.
type MailConfig struct {
	ResendAPIKey string `mapstructure:"resend_api_key"`
	From         string `mapstructure:"from"`
}

// AMQPConfig configures the event publisher. An empty URL disables publishing.
type AMQPConfig struct {
	URL   string `mapstructure:"url"`
	Queue string `mapstructure:"queue"`
}

type BillingConfig struct {
	DefaultDueDay      int `mapstructure:"default_due_day"`
	DefaultMonthsAhead int `mapstructure:"default_months_ahead"`
}

type ScheduleConfig struct {
	DefaultWeeks   int `mapstructure:"default_weeks"`
	SessionMinutes int `mapstructure:"session_minutes"`
}

// Location resolves the configured timezone, falling back to UTC.
func (c ServerConfig) Location() *time.Location {
	if c.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		log.Printf("WARN: Unknown timezone %q, using UTC: %v", c.Timezone, err)
		return time.UTC
	}
	return loc
}

// LoadConfig reads configuration from file or environment variables.
// A .env file in path is loaded first (if present) so its values are visible
// to the environment lookup below.
func LoadConfig(path string) (config Config, err error) {
	if envErr := godotenv.Load(strings.TrimSuffix(path, "/") + "/.env"); envErr == nil {
		log.Println("INFO: Loaded environment from .env")
	}

	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	// server.address -> SERVER_ADDRESS, jwt.expiration -> JWT_EXPIRATION
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(`.`, `_`))

	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.timezone", "UTC")
	v.SetDefault("database.uri", "mongodb://localhost:27017")
	v.SetDefault("database.name", "formafit")
	v.SetDefault("s3.use_ssl", true)
	v.SetDefault("jwt.expiration", "1h")
	v.SetDefault("auth.admin_emails", []string{})
	v.SetDefault("mail.resend_api_key", "")
	v.SetDefault("mail.from", "FormaFit <noreply@formafit.app>")
	v.SetDefault("amqp.url", "")
	v.SetDefault("amqp.queue", "formafit.events")
	v.SetDefault("billing.default_due_day", 5)
	v.SetDefault("billing.default_months_ahead", 3)
	v.SetDefault("schedule.default_weeks", 4)
	v.SetDefault("schedule.session_minutes", 60)
	// Registered so AutomaticEnv can see keys that have no default.
	for _, key := range []string{"jwt.secret", "s3.endpoint", "s3.region", "s3.access_key_id", "s3.secret_access_key", "s3.bucket_name"} {
		_ = v.BindEnv(key)
	}

	err = v.ReadInConfig()
	if _, ok := err.(viper.ConfigFileNotFoundError); ok {
		// Config file is optional; defaults and env vars are enough.
		err = nil
	} else if err != nil {
		return
	}

	// Duration strings ("60m", "1h") decode straight into time.Duration.
	err = v.Unmarshal(&config)
	if err != nil {
		return
	}

	// AUTH_ADMIN_EMAILS arrives as a single comma separated string.
	if len(config.Auth.AdminEmails) == 1 && strings.Contains(config.Auth.AdminEmails[0], ",") {
		config.Auth.AdminEmails = strings.Split(config.Auth.AdminEmails[0], ",")
	}
	for i, e := range config.Auth.AdminEmails {
		config.Auth.AdminEmails[i] = strings.ToLower(strings.TrimSpace(e))
	}

	return config, nil
}
