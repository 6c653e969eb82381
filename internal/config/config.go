package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Video   VideoConfig   `yaml:"video"`
	Sources SourcesConfig `yaml:"sources"`
	Publish PublishConfig `yaml:"publish"`
	Paths   PathsConfig   `yaml:"paths"`
}

type ServerConfig struct {
	Port int `yaml:"port"`
}

type VideoConfig struct {
	Width             int     `yaml:"width"`
	Height            int     `yaml:"height"`
	FPS               int     `yaml:"fps"`
	WordsPerSec       float64 `yaml:"words_per_sec"`
	MinBodySec        float64 `yaml:"min_body_sec"`
	MaxBodySec        float64 `yaml:"max_body_sec"`
	FadeSec           float64 `yaml:"fade_sec"`
	FontFile          string  `yaml:"font_file"`
	Preset            string  `yaml:"preset"`
	CRF               int     `yaml:"crf"`
	ComposeTimeoutSec int     `yaml:"compose_timeout_sec"`
	BackgroundAudio   string  `yaml:"background_audio"`
	RenderWorkers     int     `yaml:"render_workers"`
}

type SourcesConfig struct {
	Subreddits   []string `yaml:"subreddits"`
	NewsKeywords []string `yaml:"news_keywords"`
	MaxArticles  int      `yaml:"max_articles"`
}

type PublishConfig struct {
	Enabled           bool   `yaml:"enabled"`
	Visibility        string `yaml:"visibility"`
	CategoryID        string `yaml:"category_id"`
	DefaultLanguage   string `yaml:"default_language"`
	NotifySubscribers bool   `yaml:"notify_subscribers"`
}

type PathsConfig struct {
	Output string `yaml:"output"`
	Data   string `yaml:"data"`
}

// Default returns the production defaults; Load overlays a YAML file on top
// of them, so a partial config file is fine.
func Default() *Config {
	return &Config{
		Server: ServerConfig{Port: 8080},
		Video: VideoConfig{
			Width:             1920,
			Height:            1080,
			FPS:               30,
			WordsPerSec:       2.5,
			MinBodySec:        8,
			MaxBodySec:        20,
			FadeSec:           0.4,
			Preset:            "fast",
			CRF:               23,
			ComposeTimeoutSec: 600,
			RenderWorkers:     4,
		},
		Sources: SourcesConfig{
			Subreddits:   []string{"news", "worldnews"},
			NewsKeywords: []string{"technology"},
			MaxArticles:  25,
		},
		Publish: PublishConfig{
			Visibility:      "private",
			CategoryID:      "25", // News & Politics
			DefaultLanguage: "en",
		},
		Paths: PathsConfig{
			Output: "output/videos",
			Data:   "data/newsreel.db",
		},
	}
}

// Load reads a YAML config file over the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("config: port %d out of range", c.Server.Port)
	}
	if c.Video.Width <= 0 || c.Video.Height <= 0 {
		return fmt.Errorf("config: invalid frame size %dx%d", c.Video.Width, c.Video.Height)
	}
	if c.Video.MinBodySec <= 0 || c.Video.MaxBodySec < c.Video.MinBodySec {
		return fmt.Errorf("config: invalid body duration band [%f, %f]",
			c.Video.MinBodySec, c.Video.MaxBodySec)
	}
	if c.Video.WordsPerSec <= 0 {
		return fmt.Errorf("config: words_per_sec must be positive")
	}
	return nil
}
