package configs

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	BotToken          string        `yaml:"bot_token"`
	MongoURL          string        `yaml:"mongo_url"`
	MongoDatabase     string        `yaml:"mongo_database"`
	Store             string        `yaml:"store"`
	AdminID           int64         `yaml:"admin_id"`
	VaultChannelID    int64         `yaml:"channel_id"`
	ListenAddr        string        `yaml:"listen_addr"`
	Mode              string        `yaml:"mode"`
	WebhookPath       string        `yaml:"webhook_path"`
	WebhookSecret     string        `yaml:"webhook_secret"`
	MembershipTimeout time.Duration `yaml:"membership_timeout"`
	SendRate          float64       `yaml:"send_rate"`
	Workers           int           `yaml:"workers"`
	CORSOrigins       []string      `yaml:"cors_origins"`
	Logging           LoggingConfig `yaml:"logging"`
	Branding          Branding      `yaml:"branding"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Branding feeds the attribution footer and the handle allow-list of the
// caption sanitizer.
type Branding struct {
	Name            string   `yaml:"name"`
	CreatorHandle   string   `yaml:"creator_handle"`
	UpdatesHandle   string   `yaml:"updates_handle"`
	CommunityHandle string   `yaml:"community_handle"`
	AllowedHandles  []string `yaml:"allowed_handles"`
}

const (
	ModeWebhook = "webhook"
	ModePolling = "polling"

	StoreMongo  = "mongo"
	StoreMemory = "memory"
)

func defaults() Config {
	return Config{
		MongoDatabase:     "course_library",
		Store:             StoreMongo,
		ListenAddr:        ":8080",
		Mode:              ModeWebhook,
		WebhookPath:       "/",
		MembershipTimeout: 5 * time.Second,
		SendRate:          25,
		Workers:           8,
		Logging:           LoggingConfig{Level: "info", Format: "json"},
		Branding: Branding{
			Name:            "Course Library",
			CreatorHandle:   "@CourseLibraryBot",
			UpdatesHandle:   "@CourseLibraryUpdates",
			CommunityHandle: "@CourseLibraryChat",
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file and the
// environment, in that order. A .env file is loaded when present.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := defaults()

	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() error {
	setString(&c.BotToken, "BOT_TOKEN")
	setString(&c.MongoURL, "MONGO_URL")
	setString(&c.MongoDatabase, "MONGO_DATABASE")
	setString(&c.Store, "STORE")
	setString(&c.ListenAddr, "LISTEN_ADDR")
	setString(&c.Mode, "MODE")
	setString(&c.WebhookPath, "WEBHOOK_PATH")
	setString(&c.WebhookSecret, "WEBHOOK_SECRET")
	setString(&c.Logging.Level, "LOG_LEVEL")
	setString(&c.Logging.Format, "LOG_FORMAT")
	setString(&c.Branding.Name, "BRAND_NAME")
	setString(&c.Branding.CreatorHandle, "CREATOR_HANDLE")
	setString(&c.Branding.UpdatesHandle, "UPDATES_HANDLE")
	setString(&c.Branding.CommunityHandle, "COMMUNITY_HANDLE")
	setList(&c.Branding.AllowedHandles, "ALLOWED_HANDLES")
	setList(&c.CORSOrigins, "CORS_ORIGINS")

	if err := setInt64(&c.AdminID, "ADMIN_ID"); err != nil {
		return err
	}
	if err := setInt64(&c.VaultChannelID, "CHANNEL_ID"); err != nil {
		return err
	}
	if v := os.Getenv("MEMBERSHIP_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid MEMBERSHIP_TIMEOUT: %w", err)
		}
		c.MembershipTimeout = d
	}
	if v := os.Getenv("SEND_RATE"); v != "" {
		r, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid SEND_RATE: %w", err)
		}
		c.SendRate = r
	}
	if v := os.Getenv("WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid WORKERS: %w", err)
		}
		c.Workers = n
	}
	return nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.BotToken == "" {
		errs = append(errs, errors.New("BOT_TOKEN is required"))
	}
	if c.AdminID == 0 {
		errs = append(errs, errors.New("ADMIN_ID is required"))
	}
	if c.VaultChannelID == 0 {
		errs = append(errs, errors.New("CHANNEL_ID is required"))
	}
	switch c.Store {
	case StoreMongo:
		if c.MongoURL == "" {
			errs = append(errs, errors.New("MONGO_URL is required for the mongo store"))
		}
	case StoreMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown store %q", c.Store))
	}
	if c.Mode != ModeWebhook && c.Mode != ModePolling {
		errs = append(errs, fmt.Errorf("unknown mode %q", c.Mode))
	}
	if c.MembershipTimeout <= 0 {
		errs = append(errs, errors.New("MEMBERSHIP_TIMEOUT must be positive"))
	}
	if c.Workers <= 0 {
		errs = append(errs, errors.New("WORKERS must be positive"))
	}
	return errors.Join(errs...)
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func setList(dst *[]string, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	*dst = out
}

func setInt64(dst *int64, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = n
	return nil
}
