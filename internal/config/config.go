package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig
	Store     StoreConfig
	DB        DBConfig
	Redis     RedisConfig
	Broadcast BroadcastConfig
	Scheduler SchedulerConfig
	Telegram  TelegramConfig
	Twilio    TwilioConfig
	AMQP      AMQPConfig
	Scraper   ScraperConfig
	Seed      SeedConfig
	Log       LogConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port         int           `envconfig:"SERVER_PORT" default:"8080"`
	ReadTimeout  time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"10s"`
	WriteTimeout time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"30s"`
}

// StoreConfig selects the record store backend
type StoreConfig struct {
	Driver     string `envconfig:"STORE_DRIVER" default:"memory"`
	SQLitePath string `envconfig:"SQLITE_PATH" default:"data/cesto.db"`
}

// DBConfig holds SQL database configuration for the mysql and postgres drivers
type DBConfig struct {
	Host     string `envconfig:"DB_HOST" default:"localhost"`
	Port     int    `envconfig:"DB_PORT"` // 3306 for mysql, 5432 for postgres when unset
	User     string `envconfig:"DB_USER" default:"root"`
	Password string `envconfig:"DB_PASSWORD"`
	Database string `envconfig:"DB_NAME" default:"cesto_ofertas"`
	SSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`
	MaxConns int    `envconfig:"DB_MAX_CONNS" default:"10"`
}

// RedisConfig holds configuration for the redis driver
type RedisConfig struct {
	Addr      string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	Password  string `envconfig:"REDIS_PASSWORD"`
	DB        int    `envconfig:"REDIS_DB" default:"0"`
	KeyPrefix string `envconfig:"REDIS_KEY_PREFIX" default:"cesto:"`
}

// BroadcastConfig holds send simulator configuration
type BroadcastConfig struct {
	Sender      string        `envconfig:"SENDER" default:"simulated"`
	SendDelay   time.Duration `envconfig:"SEND_DELAY" default:"1s"`
	LogCapacity int           `envconfig:"SEND_LOG_CAPACITY" default:"10"`
	RateLimit   float64       `envconfig:"SEND_RATE_LIMIT" default:"30"`
}

// SchedulerConfig holds automatic broadcast configuration
type SchedulerConfig struct {
	Enabled  bool   `envconfig:"SCHEDULER_ENABLED" default:"false"`
	Spec     string `envconfig:"SCHEDULER_SPEC" default:"@every 1m"`
	Timezone string `envconfig:"SCHEDULER_TIMEZONE" default:"America/Sao_Paulo"`
}

// TelegramConfig holds Telegram sender configuration
type TelegramConfig struct {
	Token string `envconfig:"TELEGRAM_TOKEN"`
}

// TwilioConfig holds Twilio configuration for SMS codes and WhatsApp sends
type TwilioConfig struct {
	AccountSID     string `envconfig:"TWILIO_ACCOUNT_SID"`
	AuthToken      string `envconfig:"TWILIO_AUTH_TOKEN"`
	PhoneNumber    string `envconfig:"TWILIO_PHONE_NUMBER"`
	WhatsAppNumber string `envconfig:"TWILIO_WHATSAPP_NUMBER"`
}

// AMQPConfig holds RabbitMQ event publishing configuration
type AMQPConfig struct {
	URL   string `envconfig:"AMQP_URL"`
	Queue string `envconfig:"AMQP_QUEUE" default:"cesto.events"`
}

// ScraperConfig holds product page import configuration
type ScraperConfig struct {
	RateLimit  float64       `envconfig:"SCRAPER_RATE_LIMIT" default:"0.5"`
	Timeout    time.Duration `envconfig:"SCRAPER_TIMEOUT" default:"30s"`
	MaxRetries int           `envconfig:"SCRAPER_MAX_RETRIES" default:"3"`
	UserAgent  string        `envconfig:"SCRAPER_USER_AGENT"`
	Browser    bool          `envconfig:"SCRAPER_BROWSER" default:"false"`
	// AllowPrivate permits fetching loopback, private and link-local addresses
	AllowPrivate bool `envconfig:"SCRAPER_ALLOW_PRIVATE" default:"false"`
}

// SeedConfig controls demo data loading
type SeedConfig struct {
	Enabled bool   `envconfig:"SEED_ENABLED" default:"true"`
	File    string `envconfig:"SEED_FILE"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string `envconfig:"LOG_LEVEL" default:"info"`
}

var storeDrivers = map[string]bool{
	"memory":   true,
	"mysql":    true,
	"postgres": true,
	"sqlite":   true,
	"redis":    true,
}

var senders = map[string]bool{
	"simulated": true,
	"telegram":  true,
	"twilio":    true,
}

// MySQLDSN returns the MySQL data source name
func (c *DBConfig) MySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		c.User, c.Password, c.Host, c.Port, c.Database)
}

// PostgresDSN returns the PostgreSQL data source name
func (c *DBConfig) PostgresDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	var cfg Config

	sections := []struct {
		name   string
		target interface{}
	}{
		{"server", &cfg.Server},
		{"store", &cfg.Store},
		{"db", &cfg.DB},
		{"redis", &cfg.Redis},
		{"broadcast", &cfg.Broadcast},
		{"scheduler", &cfg.Scheduler},
		{"telegram", &cfg.Telegram},
		{"twilio", &cfg.Twilio},
		{"amqp", &cfg.AMQP},
		{"scraper", &cfg.Scraper},
		{"seed", &cfg.Seed},
		{"log", &cfg.Log},
	}
	for _, s := range sections {
		if err := envconfig.Process("", s.target); err != nil {
			return nil, fmt.Errorf("failed to load %s config: %w", s.name, err)
		}
	}
	if cfg.DB.Port == 0 {
		cfg.DB.Port = defaultDBPort(cfg.Store.Driver)
	}

	return &cfg, nil
}

// defaultDBPort returns the standard port of the SQL driver
func defaultDBPort(driver string) int {
	if driver == "postgres" {
		return 5432
	}
	return 3306
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("SERVER_PORT must be between 1 and 65535")
	}
	if !storeDrivers[c.Store.Driver] {
		return fmt.Errorf("STORE_DRIVER %q is not supported", c.Store.Driver)
	}
	if (c.Store.Driver == "mysql" || c.Store.Driver == "postgres") && c.DB.Password == "" {
		return fmt.Errorf("DB_PASSWORD is required for the %s driver", c.Store.Driver)
	}
	if c.Store.Driver == "sqlite" && c.Store.SQLitePath == "" {
		return fmt.Errorf("SQLITE_PATH is required for the sqlite driver")
	}
	if !senders[c.Broadcast.Sender] {
		return fmt.Errorf("SENDER %q is not supported", c.Broadcast.Sender)
	}
	if c.Broadcast.Sender == "telegram" && c.Telegram.Token == "" {
		return fmt.Errorf("TELEGRAM_TOKEN is required for the telegram sender")
	}
	if c.Broadcast.Sender == "twilio" && (c.Twilio.AccountSID == "" || c.Twilio.WhatsAppNumber == "") {
		return fmt.Errorf("TWILIO_ACCOUNT_SID and TWILIO_WHATSAPP_NUMBER are required for the twilio sender")
	}
	if c.Broadcast.SendDelay < 0 {
		return fmt.Errorf("SEND_DELAY must not be negative")
	}
	if c.Broadcast.LogCapacity <= 0 {
		return fmt.Errorf("SEND_LOG_CAPACITY must be positive")
	}
	if c.Broadcast.RateLimit <= 0 {
		return fmt.Errorf("SEND_RATE_LIMIT must be positive")
	}
	if c.Scheduler.Enabled && c.Scheduler.Spec == "" {
		return fmt.Errorf("SCHEDULER_SPEC is required when the scheduler is enabled")
	}
	if c.Scraper.RateLimit <= 0 {
		return fmt.Errorf("SCRAPER_RATE_LIMIT must be positive")
	}
	if c.Scraper.MaxRetries < 0 {
		return fmt.Errorf("SCRAPER_MAX_RETRIES must not be negative")
	}
	return nil
}

// TwilioEnabled reports whether Twilio credentials are present
func (c *TwilioConfig) TwilioEnabled() bool {
	return c.AccountSID != "" && c.AuthToken != ""
}
