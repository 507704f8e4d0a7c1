package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config はアプリケーション全体の設定を表現します。
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Log       LogConfig       `yaml:"log"`
	Currency  CurrencyConfig  `yaml:"currency"`
	Redis     RedisConfig     `yaml:"redis"`
	MinIO     MinIOConfig     `yaml:"minio"`
	SMTP      SMTPConfig      `yaml:"smtp"`
	Company   CompanyConfig   `yaml:"company"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// ServerConfig は HTTP / gRPC サーバーに関する設定です。
type ServerConfig struct {
	HTTPAddr        string        `yaml:"http_addr"`
	GRPCAddr        string        `yaml:"grpc_addr"`
	CookieSecure    bool          `yaml:"cookie_secure"`
	MaxBodyBytes    int64         `yaml:"max_body_bytes"`
	ReadTimeout     time.Duration `yaml:"-"`
	WriteTimeout    time.Duration `yaml:"-"`
	ShutdownTimeout time.Duration `yaml:"-"`
	ReadTimeoutRaw  string        `yaml:"read_timeout"`
	WriteTimeoutRaw string        `yaml:"write_timeout"`
	ShutdownRaw     string        `yaml:"shutdown_timeout"`
}

// DatabaseConfig は PostgreSQL 接続に関する設定です。
type DatabaseConfig struct {
	Host               string        `yaml:"host"`
	Port               int           `yaml:"port"`
	User               string        `yaml:"user"`
	Password           string        `yaml:"password"`
	Name               string        `yaml:"name"`
	SSLMode            string        `yaml:"ssl_mode"`
	MaxOpenConns       int           `yaml:"max_open_conns"`
	MaxIdleConns       int           `yaml:"max_idle_conns"`
	ConnMaxLifetime    time.Duration `yaml:"-"`
	ConnMaxIdleTime    time.Duration `yaml:"-"`
	ConnMaxLifetimeRaw string        `yaml:"conn_max_lifetime"`
	ConnMaxIdleTimeRaw string        `yaml:"conn_max_idle_time"`
}

// LogConfig はロガーの設定です。Format は json または console です。
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// CurrencyConfig は外部通貨 API の設定です。
type CurrencyConfig struct {
	CountriesURL string        `yaml:"countries_url"`
	RatesURL     string        `yaml:"rates_url"`
	UserAgent    string        `yaml:"user_agent"`
	Timeout      time.Duration `yaml:"-"`
	RatesTTL     time.Duration `yaml:"-"`
	TimeoutRaw   string        `yaml:"timeout"`
	RatesTTLRaw  string        `yaml:"rates_ttl"`
}

// RedisConfig は共有レートキャッシュの設定です。Addr が空の場合はプロセス内キャッシュを使います。
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// Enabled は Redis を利用するかどうかを返します。
func (r RedisConfig) Enabled() bool {
	return r.Addr != ""
}

// MinIOConfig は領収書ストレージの設定です。Endpoint が空の場合はファイル名のみを記録します。
type MinIOConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`
}

// Enabled は MinIO を利用するかどうかを返します。
func (m MinIOConfig) Enabled() bool {
	return m.Endpoint != ""
}

// SMTPConfig はメール送信の設定です。Host が空の場合は送信せずログに残します。
type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
}

// Enabled は SMTP 送信を行うかどうかを返します。
func (s SMTPConfig) Enabled() bool {
	return s.Host != ""
}

// CompanyConfig は会社単位の設定です。BaseCurrency を指定すると管理者の国からの導出より優先されます。
type CompanyConfig struct {
	BaseCurrency string `yaml:"base_currency"`
}

// RateLimitConfig は認証系エンドポイントのレート制限です。
type RateLimitConfig struct {
	PerSecond float64 `yaml:"per_second"`
	Burst     int     `yaml:"burst"`
}

// Load は指定されたパスから設定ファイルを読み込みます。
// 同じディレクトリまたはカレントディレクトリの .env を読み込み、環境変数で秘密情報を上書きします。
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file %s: %w", path, err)
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: load .env: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}

	cfg.applyEnv(os.LookupEnv)

	if err := cfg.validateAndNormalize(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	set := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	set("DATABASE_PASSWORD", &c.Database.Password)
	set("SMTP_HOST", &c.SMTP.Host)
	set("SMTP_USER", &c.SMTP.User)
	set("SMTP_PASS", &c.SMTP.Password)
	set("FROM_EMAIL", &c.SMTP.From)
	set("REDIS_ADDR", &c.Redis.Addr)
	set("REDIS_PASSWORD", &c.Redis.Password)
	set("MINIO_ACCESS_KEY", &c.MinIO.AccessKey)
	set("MINIO_SECRET_KEY", &c.MinIO.SecretKey)

	if v, ok := lookup("SMTP_PORT"); ok {
		if port, err := strconv.Atoi(v); err == nil {
			c.SMTP.Port = port
		}
	}
}

func (c *Config) validateAndNormalize() error {
	if err := c.Server.validateAndNormalize(); err != nil {
		return err
	}
	if err := c.Database.validateAndNormalize(); err != nil {
		return err
	}
	if err := c.Log.validateAndNormalize(); err != nil {
		return err
	}
	if err := c.Currency.validateAndNormalize(); err != nil {
		return err
	}
	if err := c.MinIO.validateAndNormalize(); err != nil {
		return err
	}
	if err := c.SMTP.validateAndNormalize(); err != nil {
		return err
	}

	c.Company.BaseCurrency = strings.ToUpper(strings.TrimSpace(c.Company.BaseCurrency))

	if c.RateLimit.PerSecond <= 0 {
		c.RateLimit.PerSecond = 1
	}
	if c.RateLimit.Burst <= 0 {
		c.RateLimit.Burst = 5
	}

	return nil
}

func (s *ServerConfig) validateAndNormalize() error {
	if s.HTTPAddr == "" {
		return fmt.Errorf("config: server.http_addr must be set")
	}
	if s.MaxBodyBytes <= 0 {
		s.MaxBodyBytes = 10 << 20
	}

	var err error
	if s.ReadTimeout, err = parseDurationDefault(s.ReadTimeoutRaw, 15*time.Second); err != nil {
		return fmt.Errorf("config: server.read_timeout: %w", err)
	}
	if s.WriteTimeout, err = parseDurationDefault(s.WriteTimeoutRaw, 30*time.Second); err != nil {
		return fmt.Errorf("config: server.write_timeout: %w", err)
	}
	if s.ShutdownTimeout, err = parseDurationDefault(s.ShutdownRaw, 10*time.Second); err != nil {
		return fmt.Errorf("config: server.shutdown_timeout: %w", err)
	}
	return nil
}

func (d *DatabaseConfig) validateAndNormalize() error {
	if d.Host == "" {
		return fmt.Errorf("config: database.host must be set")
	}
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

	lifetime, err := parseDurationDefault(d.ConnMaxLifetimeRaw, 0)
	if err != nil {
		return fmt.Errorf("config: database.conn_max_lifetime: %w", err)
	}
	d.ConnMaxLifetime = lifetime

	idleTime, err := parseDurationDefault(d.ConnMaxIdleTimeRaw, 0)
	if err != nil {
		return fmt.Errorf("config: database.conn_max_idle_time: %w", err)
	}
	d.ConnMaxIdleTime = idleTime

	return nil
}

func (l *LogConfig) validateAndNormalize() error {
	if l.Level == "" {
		l.Level = "info"
	}
	switch l.Format {
	case "":
		l.Format = "json"
	case "json", "console":
	default:
		return fmt.Errorf("config: log.format must be json or console")
	}
	return nil
}

func (c *CurrencyConfig) validateAndNormalize() error {
	if c.CountriesURL == "" {
		c.CountriesURL = "https://restcountries.com/v3.1/all?fields=name,currencies"
	}
	if c.RatesURL == "" {
		c.RatesURL = "https://api.exchangerate-api.com/v4/latest"
	}
	if c.UserAgent == "" {
		c.UserAgent = "ExpenseMgmt/1.0"
	}

	var err error
	if c.Timeout, err = parseDurationDefault(c.TimeoutRaw, 10*time.Second); err != nil {
		return fmt.Errorf("config: currency.timeout: %w", err)
	}
	if c.RatesTTL, err = parseDurationDefault(c.RatesTTLRaw, 10*time.Minute); err != nil {
		return fmt.Errorf("config: currency.rates_ttl: %w", err)
	}
	return nil
}

func (m *MinIOConfig) validateAndNormalize() error {
	if !m.Enabled() {
		return nil
	}
	if m.AccessKey == "" || m.SecretKey == "" {
		return fmt.Errorf("config: minio.access_key and minio.secret_key must be set")
	}
	if m.Bucket == "" {
		m.Bucket = "receipts"
	}
	return nil
}

func (s *SMTPConfig) validateAndNormalize() error {
	if !s.Enabled() {
		return nil
	}
	if s.Port == 0 {
		s.Port = 587
	}
	if s.From == "" {
		s.From = s.User
	}
	if s.From == "" {
		return fmt.Errorf("config: smtp.from must be set when smtp.host is set")
	}
	return nil
}

func parseDurationDefault(raw string, def time.Duration) (time.Duration, error) {
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, err
	}
	return d, nil
}

// DSN は pgx 用の接続文字列を返します。
func (d DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     net.JoinHostPort(d.Host, strconv.Itoa(d.Port)),
		Path:     "/" + d.Name,
		RawQuery: url.Values{"sslmode": []string{d.SSLMode}}.Encode(),
	}
	return u.String()
}
