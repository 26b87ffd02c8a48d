// Package config loads the support-chat configuration from an optional TOML
// file and the process environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"support-chat-backend/internal/env"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

const (
	DefaultConfigPath     = "config.toml"
	DefaultPublicAddr     = ":82"
	DefaultAgentAddr      = ":81"
	DefaultWebsocketAddr  = ":83"
	DefaultStoreDriver    = StoreDynamoDB
	DefaultBusDriver      = BusRedis
	DefaultRedisAddr      = "127.0.0.1:6379"
	DefaultSessionTTL     = 24 * time.Hour
	DefaultOTPTTL         = 10 * time.Minute
	DefaultOTPMaxAttempts = 3
	DefaultVisitorTTL     = 7 * 24 * time.Hour
	DefaultQueueSize      = 10
	DefaultQueueWorkers   = 10
)

const (
	StoreDynamoDB = "dynamodb"
	StoreMySQL    = "mysql"
	StoreSQLite   = "sqlite"
)

const (
	BusRedis  = "redis"
	BusMemory = "memory"
)

type Config struct {
	Log      LogConfig      `toml:"log"`
	Server   ServerConfig   `toml:"server"`
	Store    StoreConfig    `toml:"store"`
	Bus      BusConfig      `toml:"bus"`
	DynamoDB DynamoDBConfig `toml:"dynamodb"`
	SQL      SQLConfig      `toml:"sql"`
	Redis    RedisConfig    `toml:"redis"`
	Auth     AuthConfig     `toml:"auth"`
	Mail     MailConfig     `toml:"mail"`
	Widget   WidgetConfig   `toml:"widget"`
	CORS     CORSConfig     `toml:"cors"`
	Queue    QueueConfig    `toml:"queue"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

type ServerConfig struct {
	PublicAddr    string `toml:"public_addr"`
	AgentAddr     string `toml:"agent_addr"`
	WebsocketAddr string `toml:"websocket_addr"`
}

type StoreConfig struct {
	Driver string `toml:"driver"`
}

// BusConfig selects the event bus. "memory" keeps events and agent sessions
// inside one process and only suits cmd/dev-server, which serves every
// surface itself.
type BusConfig struct {
	Driver string `toml:"driver"`
}

type DynamoDBConfig struct {
	Region          string `toml:"region"`
	Endpoint        string `toml:"endpoint"`
	AccessKeyID     string `toml:"access_key_id"`
	SecretAccessKey string `toml:"secret_access_key"`
	SessionToken    string `toml:"session_token"`
}

type SQLConfig struct {
	DSN string `toml:"dsn"`
}

type RedisConfig struct {
	Addr            string `toml:"addr"`
	Password        string `toml:"password"`
	DB              int    `toml:"db"`
	SessionAddr     string `toml:"session_addr"`
	SessionPassword string `toml:"session_password"`
}

type AuthConfig struct {
	SessionSecret      string   `toml:"session_secret"`
	VisitorTokenSecret string   `toml:"visitor_token_secret"`
	SessionTTL         Duration `toml:"session_ttl"`
	OTPTTL             Duration `toml:"otp_ttl"`
	OTPMaxAttempts     int      `toml:"otp_max_attempts"`
	VisitorTokenTTL    Duration `toml:"visitor_token_ttl"`
}

// MailConfig selects how one-time codes reach agents. Driver is "smtp" or "log".
type MailConfig struct {
	Driver   string `toml:"driver"`
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	Username string `toml:"username"`
	Password string `toml:"password"`
	From     string `toml:"from"`
}

type WidgetConfig struct {
	BubbleText   string `toml:"bubble_text"`
	HeaderText   string `toml:"header_text"`
	ThemeColor   string `toml:"theme_color"`
	WebsocketURL string `toml:"websocket_url"`
}

type CORSConfig struct {
	AllowedOrigins []string `toml:"allowed_origins"`
}

type QueueConfig struct {
	Size    int `toml:"size"`
	Workers int `toml:"workers"`
}

// Duration decodes TOML strings such as "24h".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("config: parse duration %q: %w", string(text), err)
	}
	d.Duration = parsed
	return nil
}

func Default() Config {
	return Config{
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Server: ServerConfig{
			PublicAddr:    DefaultPublicAddr,
			AgentAddr:     DefaultAgentAddr,
			WebsocketAddr: DefaultWebsocketAddr,
		},
		Store: StoreConfig{
			Driver: DefaultStoreDriver,
		},
		Bus: BusConfig{
			Driver: DefaultBusDriver,
		},
		Redis: RedisConfig{
			Addr: DefaultRedisAddr,
		},
		Auth: AuthConfig{
			SessionTTL:      Duration{DefaultSessionTTL},
			OTPTTL:          Duration{DefaultOTPTTL},
			OTPMaxAttempts:  DefaultOTPMaxAttempts,
			VisitorTokenTTL: Duration{DefaultVisitorTTL},
		},
		Mail: MailConfig{
			Driver: "log",
			Port:   587,
			From:   "support@localhost",
		},
		Widget: WidgetConfig{
			BubbleText: "Chat with us",
			HeaderText: "Need a hand?",
			ThemeColor: "#7F56D9",
		},
		CORS: CORSConfig{
			AllowedOrigins: []string{"http://localhost:3000"},
		},
		Queue: QueueConfig{
			Size:    DefaultQueueSize,
			Workers: DefaultQueueWorkers,
		},
	}
}

// Load reads the TOML file at path on top of the defaults and then applies
// environment overrides. A missing file is not an error. A .env file in the
// working directory is loaded first when present.
func Load(path string) (Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return Config{}, fmt.Errorf("config: decode %s: %w", path, err)
			}
		}
	}

	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	override := func(dst *string, key string) {
		if val, ok := env.Lookup(key); ok {
			*dst = val
		}
	}

	override(&cfg.Log.Level, env.LogLevel)
	override(&cfg.Log.Format, env.LogFormat)
	override(&cfg.Store.Driver, env.StoreDriver)
	override(&cfg.Bus.Driver, env.BusDriver)
	override(&cfg.DynamoDB.Region, env.AWSRegion)
	override(&cfg.DynamoDB.Endpoint, env.DynamoDBEndpoint)
	override(&cfg.DynamoDB.AccessKeyID, env.AWSID)
	override(&cfg.DynamoDB.SecretAccessKey, env.AWSSecret)
	override(&cfg.DynamoDB.SessionToken, env.AWSToken)
	override(&cfg.SQL.DSN, env.SQLDSN)
	override(&cfg.Redis.Addr, env.ChatRedisURL)
	override(&cfg.Redis.Password, env.ChatRedisPass)
	override(&cfg.Redis.SessionAddr, env.AuthRedisURL)
	override(&cfg.Redis.SessionPassword, env.AuthRedisPass)
	override(&cfg.Auth.SessionSecret, env.AgentSessionSecret)
	override(&cfg.Auth.VisitorTokenSecret, env.VisitorTokenSecret)
	override(&cfg.Mail.Driver, env.MailDriver)
	override(&cfg.Mail.Host, env.SMTPHost)
	override(&cfg.Mail.Username, env.SMTPUser)
	override(&cfg.Mail.Password, env.SMTPPass)
	override(&cfg.Mail.From, env.MailFrom)
	override(&cfg.Widget.WebsocketURL, env.WebsocketURL)

	cfg.Mail.Port = env.GetInt(env.SMTPPort, cfg.Mail.Port)

	if origins, ok := env.Lookup(env.WebUrl); ok {
		cfg.CORS.AllowedOrigins = splitList(origins)
	}
	if cfg.Redis.SessionAddr == "" {
		cfg.Redis.SessionAddr = cfg.Redis.Addr
		cfg.Redis.SessionPassword = cfg.Redis.Password
	}
}

// Validate reports every missing or inconsistent setting at once.
func (c Config) Validate() error {
	var problems []string

	switch c.Store.Driver {
	case StoreDynamoDB:
		if c.DynamoDB.Region == "" {
			problems = append(problems, "dynamodb.region is required")
		}
	case StoreMySQL, StoreSQLite:
		if c.SQL.DSN == "" {
			problems = append(problems, "sql.dsn is required for driver "+c.Store.Driver)
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown store driver %q", c.Store.Driver))
	}

	if c.Bus.Driver != BusRedis && c.Bus.Driver != BusMemory {
		problems = append(problems, fmt.Sprintf("unknown bus driver %q", c.Bus.Driver))
	}

	if c.Auth.SessionSecret == "" {
		problems = append(problems, "auth.session_secret is required")
	}
	if c.Auth.VisitorTokenSecret == "" {
		problems = append(problems, "auth.visitor_token_secret is required")
	}
	if c.Mail.Driver == "smtp" && c.Mail.Host == "" {
		problems = append(problems, "mail.host is required for the smtp driver")
	}

	if len(problems) > 0 {
		return fmt.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
