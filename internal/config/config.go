package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Store  *StoreConfig  `yaml:"store"`
	Broker *BrokerConfig `yaml:"broker"`
	Sync   *SyncConfig   `yaml:"sync"`
	HTTP   *HTTPConfig   `yaml:"http"`
}

// StoreConfig selects the durable mirror backend. "file" needs only Dir;
// "postgres" uses the connection fields.
type StoreConfig struct {
	Backend  string `yaml:"backend"`
	Dir      string `yaml:"dir"`
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

type BrokerConfig struct {
	Enabled  bool   `yaml:"enabled"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	VHost    string `yaml:"vhost"`
}

type SyncConfig struct {
	DisplayPollInterval time.Duration `yaml:"-"`
	OrderPollInterval   time.Duration `yaml:"-"`
	CompletedRetention  time.Duration `yaml:"-"`
}

// UnmarshalYAML accepts the intervals as duration strings ("80ms", "30s").
func (s *SyncConfig) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		DisplayPollInterval string `yaml:"display_poll_interval"`
		OrderPollInterval   string `yaml:"order_poll_interval"`
		CompletedRetention  string `yaml:"completed_retention"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	fields := []struct {
		text string
		dst  *time.Duration
	}{
		{raw.DisplayPollInterval, &s.DisplayPollInterval},
		{raw.OrderPollInterval, &s.OrderPollInterval},
		{raw.CompletedRetention, &s.CompletedRetention},
	}
	for _, f := range fields {
		if f.text == "" {
			continue
		}
		d, err := time.ParseDuration(f.text)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", f.text, err)
		}
		*f.dst = d
	}
	return nil
}

type HTTPConfig struct {
	Port int `yaml:"port"`
}

func LoadConfig(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

// LoadDotEnv builds the config from the environment, reading .env first if
// one is present in the working directory.
func LoadDotEnv() *Config {
	_ = godotenv.Load(".env")

	cfg := &Config{
		Store: &StoreConfig{
			Backend:  getEnv("STORE_BACKEND", "file"),
			Dir:      getEnv("STORE_DIR", "./data"),
			Host:     getEnv("POSTGRES_HOST", "localhost"),
			Port:     getEnv("POSTGRES_PORT", "5432"),
			User:     getEnv("POSTGRES_USER", "admin"),
			Password: getEnv("POSTGRES_PASSWORD", "admin"),
			Database: getEnv("POSTGRES_DBNAME", "cafe_pos"),
		},
		Broker: &BrokerConfig{
			Enabled:  getEnv("RABBITMQ_ENABLED", "") == "true",
			Host:     getEnv("RABBITMQ_HOST", "localhost"),
			Port:     getEnv("RABBITMQ_PORT_APP", "5672"),
			User:     getEnv("RABBITMQ_USER", "guest"),
			Password: getEnv("RABBITMQ_PASSWORD", "guest"),
			VHost:    getEnv("RABBITMQ_VHOST", ""),
		},
		HTTP: &HTTPConfig{Port: getEnvInt("HTTP_PORT", 3000)},
	}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Store == nil {
		c.Store = &StoreConfig{}
	}
	if c.Store.Backend == "" {
		c.Store.Backend = "file"
	}
	if c.Store.Dir == "" {
		c.Store.Dir = "./data"
	}
	if c.Broker == nil {
		c.Broker = &BrokerConfig{}
	}
	if c.Sync == nil {
		c.Sync = &SyncConfig{}
	}
	if c.Sync.DisplayPollInterval <= 0 {
		c.Sync.DisplayPollInterval = 80 * time.Millisecond
	}
	if c.Sync.OrderPollInterval <= 0 {
		c.Sync.OrderPollInterval = 100 * time.Millisecond
	}
	if c.Sync.CompletedRetention <= 0 {
		c.Sync.CompletedRetention = 30 * time.Second
	}
	if c.HTTP == nil {
		c.HTTP = &HTTPConfig{}
	}
	if c.HTTP.Port == 0 {
		c.HTTP.Port = 3000
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}
