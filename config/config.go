package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of environment variables overriding file values,
// e.g. SKYBOOKING_DATABASE_HOST or SKYBOOKING_BILLING_BALANCEURL.
const EnvPrefix = "SKYBOOKING"

type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	GRPC     GRPCConfig     `yaml:"grpc"`
	Storage  StorageConfig  `yaml:"storage"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Booking  BookingConfig  `yaml:"booking"`
	Billing  BillingConfig  `yaml:"billing"`
	Auth     AuthConfig     `yaml:"auth"`
	Worker   WorkerConfig   `yaml:"worker"`
	Log      LogConfig      `yaml:"log"`
	Tracing  TracingConfig  `yaml:"tracing"`
}

type HTTPConfig struct {
	Address     string   `yaml:"address"`
	SwaggerDir  string   `yaml:"swagger_dir"`
	CORSOrigins []string `yaml:"cors_origins"`
}

type GRPCConfig struct {
	Address string `yaml:"address"`
}

type StorageConfig struct {
	// Driver is "postgres" or "memory".
	Driver  string `yaml:"driver"`
	Migrate bool   `yaml:"migrate"`
	// Airplanes seeds the airplane registry of the memory driver.
	Airplanes []AirplaneSeed `yaml:"airplanes" ignored:"true"`
}

type AirplaneSeed struct {
	ID           string `yaml:"id"`
	AirlineCode  string `yaml:"airline_code"`
	Model        string `yaml:"model"`
	SeatCapacity int    `yaml:"seat_capacity"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int32  `yaml:"max_conns"`
}

func (d DatabaseConfig) DSN() string {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s", d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
	if d.MaxConns > 0 {
		dsn += fmt.Sprintf(" pool_max_conns=%d", d.MaxConns)
	}
	return dsn
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type KafkaConfig struct {
	Brokers            []string `yaml:"brokers"`
	BookingTopic       string   `yaml:"booking_topic"`
	BillingTopic       string   `yaml:"billing_topic"`
	NotificationsTopic string   `yaml:"notifications_topic"`
	GroupID            string   `yaml:"group_id"`
}

type BookingConfig struct {
	FlightsCacheTTL int `yaml:"flights_cache_ttl_seconds"`
}

type BillingConfig struct {
	BalanceURL     string            `yaml:"balance_url"`
	BalanceTimeout time.Duration     `yaml:"balance_timeout"`
	ConfirmTimeout time.Duration     `yaml:"confirm_timeout"`
	ConfirmURLs    map[string]string `yaml:"confirm_urls"`
	PaymentLockTTL time.Duration     `yaml:"payment_lock_ttl"`
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
}

type WorkerConfig struct {
	StatusSweepMinutes int `yaml:"status_sweep_minutes"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type TracingConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Endpoint    string `yaml:"endpoint"`
	ServiceName string `yaml:"service_name"`
}

// Default returns the configuration used when a value is absent from both
// the file and the environment.
func Default() Config {
	return Config{
		HTTP:    HTTPConfig{Address: ":8080"},
		GRPC:    GRPCConfig{Address: ":9090"},
		Storage: StorageConfig{Driver: "postgres"},
		Database: DatabaseConfig{
			Host:    "localhost",
			Port:    5432,
			SSLMode: "disable",
		},
		Redis: RedisConfig{Addr: "localhost:6379"},
		Kafka: KafkaConfig{
			BookingTopic:       "booking-events",
			BillingTopic:       "bill-events",
			NotificationsTopic: "notifications",
			GroupID:            "skybooking-worker",
		},
		Booking: BookingConfig{FlightsCacheTTL: 60},
		Billing: BillingConfig{
			BalanceTimeout: 5 * time.Second,
			ConfirmTimeout: 3 * time.Second,
			PaymentLockTTL: 30 * time.Second,
		},
		Worker:  WorkerConfig{StatusSweepMinutes: 5},
		Log:     LogConfig{Level: "info", Format: "json"},
		Tracing: TracingConfig{Endpoint: "otel-collector:4317", ServiceName: "skybooking"},
	}
}

// LoadConfig reads the YAML file at path on top of Default, then applies
// .env and SKYBOOKING_* environment overrides. A missing file is not an
// error: the service can run purely from the environment.
func LoadConfig(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to apply env overrides: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case "postgres", "memory":
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	if c.Billing.BalanceTimeout <= 0 || c.Billing.ConfirmTimeout <= 0 {
		return errors.New("billing timeouts must be positive")
	}
	return nil
}
