package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrNoCredentials reports that neither a pre-issued token nor an
// account for token creation is configured.
var ErrNoCredentials = errors.New("config: no token and no username/password configured")

type Config struct {
	BaseURL  string `yaml:"base_url"`
	Token    string `yaml:"token"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`

	Interval       time.Duration `yaml:"interval"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	Concurrency    int           `yaml:"concurrency"`
	OutputPath     string        `yaml:"output_path"`
	LogsDir        string        `yaml:"logs_dir"`
	StatePath      string        `yaml:"state_path"`
	LogLevel       string        `yaml:"log_level"`

	NationalID       string   `yaml:"national_id"`
	CategoryMatchers []string `yaml:"category_matchers"`

	Ranking  RankingConfig  `yaml:"ranking"`
	Region   RegionConfig   `yaml:"region"`
	Photos   PhotosConfig   `yaml:"photos"`
	Telegram TelegramConfig `yaml:"telegram"`
	API      APIConfig      `yaml:"api"`
}

type RankingConfig struct {
	// Mode is "full" (every known contender, zero-share placeholders for
	// ones missing from a fetch) or "topk" (leaders only).
	Mode string `yaml:"mode"`
	TopK int    `yaml:"top_k"`
}

// RegionConfig names the featured region whose subdivisions are polled
// individually.
type RegionConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

type PhotosConfig struct {
	BasePath    string `yaml:"base_path"`
	DefaultFile string `yaml:"default_file"`
	MapPath     string `yaml:"map_path"`
}

type TelegramConfig struct {
	Enabled  bool   `yaml:"enabled"`
	BotToken string `yaml:"bot_token"`
	ChatID   string `yaml:"chat_id"`
}

type APIConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

func Default() Config {
	return Config{
		BaseURL:          "https://resultados.mininterior.gob.ar/api",
		Interval:         60 * time.Second,
		RequestTimeout:   15 * time.Second,
		Concurrency:      6,
		OutputPath:       "data/resultados.csv",
		LogsDir:          "logs",
		StatePath:        "data/state.db",
		LogLevel:         "info",
		NationalID:       "AR",
		CategoryMatchers: []string{"SENADOR", "DIPUTADO"},
		Ranking: RankingConfig{
			Mode: "full",
			TopK: 5,
		},
		Region: RegionConfig{
			ID:   "02",
			Name: "Provincia de Buenos Aires",
		},
		Photos: PhotosConfig{
			DefaultFile: "default.png",
		},
		API: APIConfig{
			Addr: ":8080",
		},
	}
}

func LoadFile(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) ApplyEnv() {
	if v := os.Getenv("ELECTIONS_BASE_URL"); v != "" {
		c.BaseURL = v
	}
	if v := os.Getenv("ELECTIONS_TOKEN"); v != "" {
		c.Token = v
	}
	if v := os.Getenv("ELECTIONS_USERNAME"); v != "" {
		c.Username = v
	}
	if v := os.Getenv("ELECTIONS_PASSWORD"); v != "" {
		c.Password = v
	}
	if v := strings.TrimSpace(os.Getenv("ELECTIONS_INTERVAL")); v != "" {
		if d, err := parseInterval(v); err == nil {
			c.Interval = d
		}
	}
	if v := os.Getenv("PHOTOS_BASE_PATH"); v != "" {
		c.Photos.BasePath = v
	}
	if v := os.Getenv("PHOTOS_DEFAULT_FILE"); v != "" {
		c.Photos.DefaultFile = v
	}
	if v := os.Getenv("PHOTOS_MAP_PATH"); v != "" {
		c.Photos.MapPath = v
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		c.Telegram.BotToken = v
		c.Telegram.Enabled = true
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		c.Telegram.ChatID = v
	}
}

// parseInterval accepts a Go duration or a bare number of seconds.
func parseInterval(v string) (time.Duration, error) {
	if d, err := time.ParseDuration(v); err == nil {
		return d, nil
	}
	secs, err := strconv.Atoi(v)
	if err != nil {
		return 0, err
	}
	return time.Duration(secs) * time.Second, nil
}
