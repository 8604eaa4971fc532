package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	EnvDev   = "dev"
	EnvStage = "stage"
	EnvProd  = "prod"
)

type Config struct {
	Env          string `yaml:"env"`
	BaseURL      string `yaml:"base_url"`
	Service      `yaml:"service"`
	HTTPServer   `yaml:"http_server"`
	Postgres     `yaml:"postgres"`
	Redis        `yaml:"redis"`
	Analytics    `yaml:"analytics"`
	Monitor      `yaml:"monitor"`
	SafeBrowsing `yaml:"safe_browsing"`
}

type Service struct {
	ShortCodeLength int           `yaml:"short_code_length"`
	MaxRetries      int           `yaml:"max_retries"`
	StoreTimeout    time.Duration `yaml:"store_timeout"`
	CountOnResolve  bool          `yaml:"count_on_resolve"`
	FetchTitle      bool          `yaml:"fetch_title"`
}

var defaultService = Service{
	ShortCodeLength: 7,
	MaxRetries:      5,
	StoreTimeout:    3 * time.Second,
	CountOnResolve:  true,
	FetchTitle:      true,
}

type HTTPServer struct {
	Port           int           `yaml:"port"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	IdleTimeout    time.Duration `yaml:"idle_timeout"`
	MaxHeaderBytes int           `yaml:"max_header_bytes"`
	CertFile       string        `yaml:"cert_file"`
	KeyFile        string        `yaml:"key_file"`
}

var defaultHTTPServer = HTTPServer{
	Port:           8080,
	ReadTimeout:    5 * time.Second,
	WriteTimeout:   10 * time.Second,
	IdleTimeout:    time.Minute,
	MaxHeaderBytes: 1 << 20,
}

func (s *HTTPServer) Addr() string {
	return fmt.Sprintf(":%d", s.Port)
}

type Postgres struct {
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	DB              string        `yaml:"db"`
	SSLMode         string        `yaml:"sslmode"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
}

var defaultPostgres = Postgres{
	Host:            "localhost",
	Port:            5432,
	SSLMode:         "disable",
	ConnMaxIdleTime: 5 * time.Minute,
	ConnMaxLifetime: 30 * time.Minute,
	MaxIdleConns:    5,
	MaxOpenConns:    25,
}

func (p *Postgres) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		p.User, p.Password, p.Host, p.Port, p.DB, p.SSLMode)
}

// Redis is optional; an empty Addr disables the resolve-path cache.
type Redis struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

var defaultRedis = Redis{
	TTL: time.Hour,
}

type Analytics struct {
	URL          string        `yaml:"url"`
	Stream       string        `yaml:"stream"`
	Subject      string        `yaml:"subject"`
	Durable      string        `yaml:"durable"`
	DeliverAll   bool          `yaml:"deliver_all"`
	BatchSize    int           `yaml:"batch_size"`
	BatchTimeout time.Duration `yaml:"batch_timeout"`
}

var defaultAnalytics = Analytics{
	URL:          "nats://localhost:4222",
	Stream:       "ACCESS_EVENTS",
	Subject:      "access.events",
	Durable:      "shortly-analytics",
	DeliverAll:   true,
	BatchSize:    100,
	BatchTimeout: 5 * time.Second,
}

type Monitor struct {
	Window    time.Duration `yaml:"window"`
	Threshold int           `yaml:"threshold"`
}

var defaultMonitor = Monitor{
	Window:    5 * time.Minute,
	Threshold: 10,
}

// SafeBrowsing is optional; an empty APIKey disables target screening.
type SafeBrowsing struct {
	APIKey string `yaml:"api_key"`
}

func Load(path string) (*Config, error) {
	const op = "config.Load"

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to open config file: %w", op, err)
	}
	defer f.Close()

	var cfg Config
	setDefaults(&cfg)

	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("%s: failed to decode config file: %w", op, err)
	}

	return &cfg, nil
}

func setDefaults(cfg *Config) {
	cfg.Env = EnvDev
	cfg.BaseURL = "http://localhost:8080"
	cfg.Service = defaultService
	cfg.HTTPServer = defaultHTTPServer
	cfg.Postgres = defaultPostgres
	cfg.Redis = defaultRedis
	cfg.Analytics = defaultAnalytics
	cfg.Monitor = defaultMonitor
}
