package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Portal   PortalConfig   `mapstructure:"portal"`
	OTP      OTPConfig      `mapstructure:"otp"`
	Session  SessionConfig  `mapstructure:"session"`
	Store    StoreConfig    `mapstructure:"store"`
	Jobs     JobsConfig     `mapstructure:"jobs"`
	Sync     SyncConfig     `mapstructure:"sync"`
	Auth     AuthConfig     `mapstructure:"auth"`

	Credentials CredentialsConfig `mapstructure:"credentials"`
}

type ServerConfig struct {
	Port int        `mapstructure:"port"`
	Mode string     `mapstructure:"mode"`
	CORS CORSConfig `mapstructure:"cors"`
}

type CORSConfig struct {
	AllowedOrigins  []string `mapstructure:"allowed_origins"`
	AllowAllOrigins bool     `mapstructure:"allow_all_origins"`
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	Path            string        `mapstructure:"path"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Name            string        `mapstructure:"name"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// DSN builds the driver-specific connection string.
func (c *DatabaseConfig) DSN() string {
	if c.Driver == "postgres" {
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
	}
	return c.Path
}

type PortalConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	LoginPath      string        `mapstructure:"login_path"`
	HistoryPath    string        `mapstructure:"history_path"`
	DetailPath     string        `mapstructure:"detail_path"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	DetailWait     time.Duration `mapstructure:"detail_wait"`
	PageWait       time.Duration `mapstructure:"page_wait"`
	PageSize       int           `mapstructure:"page_size"`
}

type OTPConfig struct {
	Freshness time.Duration  `mapstructure:"freshness"`
	Telegram  TelegramConfig `mapstructure:"telegram"`
	Gmail     GmailConfig    `mapstructure:"gmail"`
}

type TelegramConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	BotToken string        `mapstructure:"bot_token"`
	ChatID   int64         `mapstructure:"chat_id"`
	Wait     time.Duration `mapstructure:"wait"`
}

type GmailConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	AccessToken  string        `mapstructure:"access_token"`
	SenderFilter string        `mapstructure:"sender_filter"`
	Wait         time.Duration `mapstructure:"wait"`
}

type SessionConfig struct {
	Path      string        `mapstructure:"path"`
	Freshness time.Duration `mapstructure:"freshness"`
}

type StoreConfig struct {
	WorkbookPath string `mapstructure:"workbook_path"`
	OutputDir    string `mapstructure:"output_dir"`
	SummaryDir   string `mapstructure:"summary_dir"`
	WriteRetries int    `mapstructure:"write_retries"`
}

type JobsConfig struct {
	// LockScope is "global" (one active job system-wide) or "month"
	// (one active job per month-key).
	LockScope string `mapstructure:"lock_scope"`
	LogDir    string `mapstructure:"log_dir"`
}

type SyncConfig struct {
	SkipRatioThreshold float64 `mapstructure:"skip_ratio_threshold"`
}

type AuthConfig struct {
	AllowlistPath string `mapstructure:"allowlist_path"`
}

type CredentialsConfig struct {
	KeyFile   string `mapstructure:"key_file"`
	CredsFile string `mapstructure:"creds_file"`
}

func Load(configPath string) (*Config, error) {
	// Load .env file if exists
	_ = godotenv.Load()

	v := viper.New()

	// Set config file path
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	// Enable environment variable override
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.cors.allow_all_origins", true)
	v.SetDefault("server.cors.allowed_origins", []string{})
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/jobs.db")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("portal.base_url", "https://dealer.unifi.com.my")
	v.SetDefault("portal.login_path", "/esales/login")
	v.SetDefault("portal.history_path", "/esales/retailHistory")
	v.SetDefault("portal.detail_path", "/esales/h5/onBoarding/OrderDetails")
	v.SetDefault("portal.request_timeout", 45*time.Second)
	v.SetDefault("portal.detail_wait", 10*time.Second)
	v.SetDefault("portal.page_wait", 15*time.Second)
	v.SetDefault("portal.page_size", 50)
	v.SetDefault("otp.freshness", 2*time.Minute)
	v.SetDefault("otp.telegram.enabled", true)
	v.SetDefault("otp.telegram.wait", 2*time.Minute)
	v.SetDefault("otp.gmail.enabled", true)
	v.SetDefault("otp.gmail.sender_filter", "@forward-sms.com")
	v.SetDefault("otp.gmail.wait", 3*time.Minute)
	v.SetDefault("session.path", "sessions/session_cache.json")
	v.SetDefault("session.freshness", 24*time.Hour)
	v.SetDefault("store.workbook_path", "outputs/unifi_orders.xlsx")
	v.SetDefault("store.output_dir", "outputs")
	v.SetDefault("store.summary_dir", "outputs/summaries")
	v.SetDefault("store.write_retries", 3)
	v.SetDefault("jobs.lock_scope", "global")
	v.SetDefault("jobs.log_dir", "logs/jobs")
	v.SetDefault("sync.skip_ratio_threshold", 0.8)
	v.SetDefault("auth.allowlist_path", "config/authorized_users.json")
	v.SetDefault("credentials.key_file", "config/secret.key")
	v.SetDefault("credentials.creds_file", "config/credentials.enc")

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Bind environment variables explicitly for sensitive data
	v.BindEnv("database.password", "DATABASE_PASSWORD")
	v.BindEnv("otp.telegram.bot_token", "TELEGRAM_BOT_TOKEN")
	v.BindEnv("otp.telegram.chat_id", "TELEGRAM_CHAT_ID")
	v.BindEnv("otp.gmail.access_token", "GMAIL_ACCESS_TOKEN")
	v.BindEnv("portal.base_url", "PORTAL_BASE_URL")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.Jobs.LockScope != "global" && cfg.Jobs.LockScope != "month" {
		return nil, fmt.Errorf("jobs.lock_scope must be \"global\" or \"month\", got %q", cfg.Jobs.LockScope)
	}

	return &cfg, nil
}
