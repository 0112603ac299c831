package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

const (
	DefaultListenAddr        = ":50051"
	DefaultBelowPercentage   = "20"
	DefaultAbovePercentage   = "50"
	DefaultMaxReportingDepth = 4

	maxReportingDepthLimit = 999
)

// Config はアプリケーション全体の設定を表現します。
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Analysis AnalysisConfig `yaml:"analysis"`
	Log      LogConfig      `yaml:"log"`
}

// ServerConfig は gRPC サーバーに関する設定です。
type ServerConfig struct {
	ListenAddr string `yaml:"listen_addr"`
	// MetricsAddr が空の場合 /metrics は公開しません。
	MetricsAddr string `yaml:"metrics_addr"`
}

// DatabaseConfig は PostgreSQL 接続に関する設定です。
// host が空の場合はデータベースを使用しない構成として扱います。
type DatabaseConfig struct {
	Host               string        `yaml:"host"`
	Port               int           `yaml:"port"`
	User               string        `yaml:"user"`
	Password           string        `yaml:"password"`
	Name               string        `yaml:"name"`
	SSLMode            string        `yaml:"ssl_mode"`
	ApplicationName    string        `yaml:"application_name"`
	MaxOpenConns       int           `yaml:"max_open_conns"`
	MaxIdleConns       int           `yaml:"max_idle_conns"`
	ConnMaxLifetime    time.Duration `yaml:"-"`
	ConnMaxIdleTime    time.Duration `yaml:"-"`
	ConnMaxLifetimeRaw string        `yaml:"conn_max_lifetime"`
	ConnMaxIdleTimeRaw string        `yaml:"conn_max_idle_time"`
}

// AnalysisConfig は分析パラメータの既定値です。
type AnalysisConfig struct {
	BelowPercentage      decimal.Decimal `yaml:"-"`
	AbovePercentage      decimal.Decimal `yaml:"-"`
	BelowPercentageRaw   string          `yaml:"below_percentage"`
	AbovePercentageRaw   string          `yaml:"above_percentage"`
	MaxReportingDepth    int             `yaml:"-"`
	MaxReportingDepthRaw *int            `yaml:"max_reporting_depth"`
}

// LogConfig はロガーの設定です。
type LogConfig struct {
	Level  string       `yaml:"level"`
	Format string       `yaml:"format"`
	Parsed logrus.Level `yaml:"-"`
}

// Default は設定ファイルを使わない場合の設定を返します。
func Default() *Config {
	cfg := &Config{}
	// 既定値のみの設定は必ず検証を通過します。
	if err := cfg.validateAndNormalize(); err != nil {
		panic(err)
	}
	return cfg
}

// Load は指定されたパスから設定ファイルを読み込みます。
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}

	if err := cfg.validateAndNormalize(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validateAndNormalize() error {
	if c.Server.ListenAddr == "" {
		c.Server.ListenAddr = DefaultListenAddr
	}

	if c.Database.Enabled() {
		if err := c.Database.validateAndNormalize(); err != nil {
			return err
		}
	}

	if err := c.Analysis.validateAndNormalize(); err != nil {
		return err
	}

	return c.Log.validateAndNormalize()
}

// Enabled はデータベース接続が設定されているかを返します。
func (d DatabaseConfig) Enabled() bool {
	return d.Host != ""
}

func (d *DatabaseConfig) validateAndNormalize() error {
	if d.Port == 0 {
		return fmt.Errorf("config: database.port must be set")
	}
	if d.User == "" {
		return fmt.Errorf("config: database.user must be set")
	}
	if d.Password == "" {
		return fmt.Errorf("config: database.password must be set")
	}
	if d.Name == "" {
		return fmt.Errorf("config: database.name must be set")
	}
	if d.SSLMode == "" {
		d.SSLMode = "disable"
	}

	lifetime, err := parseDurationAllowEmpty(d.ConnMaxLifetimeRaw)
	if err != nil {
		return fmt.Errorf("config: database.conn_max_lifetime: %w", err)
	}
	d.ConnMaxLifetime = lifetime

	idleTime, err := parseDurationAllowEmpty(d.ConnMaxIdleTimeRaw)
	if err != nil {
		return fmt.Errorf("config: database.conn_max_idle_time: %w", err)
	}
	d.ConnMaxIdleTime = idleTime

	return nil
}

func (a *AnalysisConfig) validateAndNormalize() error {
	below, err := parsePercentage(a.BelowPercentageRaw, DefaultBelowPercentage)
	if err != nil {
		return fmt.Errorf("config: analysis.below_percentage: %w", err)
	}
	a.BelowPercentage = below

	above, err := parsePercentage(a.AbovePercentageRaw, DefaultAbovePercentage)
	if err != nil {
		return fmt.Errorf("config: analysis.above_percentage: %w", err)
	}
	a.AbovePercentage = above

	a.MaxReportingDepth = DefaultMaxReportingDepth
	if a.MaxReportingDepthRaw != nil {
		depth := *a.MaxReportingDepthRaw
		if depth < 0 || depth > maxReportingDepthLimit {
			return fmt.Errorf("config: analysis.max_reporting_depth must be between 0 and %d, got %d", maxReportingDepthLimit, depth)
		}
		a.MaxReportingDepth = depth
	}

	return nil
}

func (l *LogConfig) validateAndNormalize() error {
	if l.Level == "" {
		l.Level = "info"
	}
	level, err := logrus.ParseLevel(l.Level)
	if err != nil {
		return fmt.Errorf("config: log.level: %w", err)
	}
	l.Parsed = level

	switch l.Format {
	case "":
		l.Format = "text"
	case "text", "json":
	default:
		return fmt.Errorf("config: log.format must be text or json, got %q", l.Format)
	}

	return nil
}

func parseDurationAllowEmpty(raw string) (time.Duration, error) {
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, err
	}
	return d, nil
}

func parsePercentage(raw, fallback string) (decimal.Decimal, error) {
	if raw == "" {
		raw = fallback
	}
	pct, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, err
	}
	if pct.IsNegative() {
		return decimal.Zero, fmt.Errorf("must not be negative, got %s", raw)
	}
	return pct, nil
}

// DSN は pgx 用の接続文字列を返します。認証情報は URL エスケープされます。
func (d DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     net.JoinHostPort(d.Host, strconv.Itoa(d.Port)),
		Path:     "/" + d.Name,
		RawQuery: url.Values{"sslmode": {d.SSLMode}}.Encode(),
	}
	return u.String()
}
