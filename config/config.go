// Package config loads bookmaker settings from YAML, .env files and
// BOOKMAKER_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/opd-ai/bookmaker/bookcompiler"
)

// Config represents the application configuration
type Config struct {
	Log    LogConfig    `yaml:"log"`
	Layout LayoutConfig `yaml:"layout"`
	Server ServerConfig `yaml:"server"`
}

// LogConfig selects the global logger's level and output format.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "console" or "json"
}

// LayoutConfig overrides parts of the default page layout. Zero values keep
// the default.
type LayoutConfig struct {
	TopMargin     float64 `yaml:"top_margin,omitempty"`
	BodyTop       float64 `yaml:"body_top,omitempty"`
	BottomMargin  float64 `yaml:"bottom_margin,omitempty"`
	LeftMargin    float64 `yaml:"left_margin,omitempty"`
	FooterOffset  float64 `yaml:"footer_offset,omitempty"`
	LineHeight    float64 `yaml:"line_height,omitempty"`
	TOCLineHeight float64 `yaml:"toc_line_height,omitempty"`
	BodySize      float64 `yaml:"body_size,omitempty"`
	HeadingSize   float64 `yaml:"heading_size,omitempty"`
	TitleSize     float64 `yaml:"title_size,omitempty"`
	FontFamily    string  `yaml:"font_family,omitempty"`
	Wrap          *bool   `yaml:"wrap,omitempty"`
	ToCTitle      string  `yaml:"toc_title,omitempty"`
}

// ServerConfig configures the HTTP service.
type ServerConfig struct {
	Addr         string        `yaml:"addr"`
	OutputDir    string        `yaml:"output_dir"`
	ResultTTL    time.Duration `yaml:"result_ttl"`
	RateLimit    int           `yaml:"rate_limit"` // requests per minute per IP on POST /books
	MaxBodyBytes int64         `yaml:"max_body_bytes"`
	QueueSize    int           `yaml:"queue_size"`
	// TLSCert and TLSKey enable HTTPS. Missing files are replaced by a
	// self-signed pair.
	TLSCert string `yaml:"tls_cert,omitempty"`
	TLSKey  string `yaml:"tls_key,omitempty"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Log: LogConfig{Level: "info", Format: "console"},
		Server: ServerConfig{
			Addr:         ":8080",
			OutputDir:    "./output",
			ResultTTL:    time.Hour,
			RateLimit:    10,
			MaxBodyBytes: 32 << 20,
			QueueSize:    16,
		},
	}
}

// Load reads the configuration. An empty path yields the defaults with
// environment overrides applied. Variables from .env are loaded first and do
// not replace ones already set in the process environment.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), cfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config: %w", err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	var errs []error
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		if v, ok := lookup(key); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}

	str("BOOKMAKER_LOG_LEVEL", &c.Log.Level)
	str("BOOKMAKER_LOG_FORMAT", &c.Log.Format)
	str("BOOKMAKER_ADDR", &c.Server.Addr)
	str("BOOKMAKER_OUTPUT_DIR", &c.Server.OutputDir)
	str("BOOKMAKER_TLS_CERT", &c.Server.TLSCert)
	str("BOOKMAKER_TLS_KEY", &c.Server.TLSKey)
	num("BOOKMAKER_RATE_LIMIT", &c.Server.RateLimit)
	num("BOOKMAKER_QUEUE_SIZE", &c.Server.QueueSize)

	if v, ok := lookup("BOOKMAKER_RESULT_TTL"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("BOOKMAKER_RESULT_TTL: %w", err))
		} else {
			c.Server.ResultTTL = d
		}
	}
	if v, ok := lookup("BOOKMAKER_WRAP"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("BOOKMAKER_WRAP: %w", err))
		} else {
			c.Layout.Wrap = &b
		}
	}
	return errors.Join(errs...)
}

// Validate checks the settings that cannot be defaulted.
func (c *Config) Validate() error {
	var errs []error
	if _, err := zerolog.ParseLevel(strings.ToLower(c.Log.Level)); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format: unknown format %q", c.Log.Format))
	}
	if c.Server.RateLimit < 0 {
		errs = append(errs, errors.New("server.rate_limit must not be negative"))
	}
	if c.Server.MaxBodyBytes <= 0 {
		errs = append(errs, errors.New("server.max_body_bytes must be positive"))
	}
	if c.Server.QueueSize <= 0 {
		errs = append(errs, errors.New("server.queue_size must be positive"))
	}
	if (c.Server.TLSCert == "") != (c.Server.TLSKey == "") {
		errs = append(errs, errors.New("server.tls_cert and server.tls_key must be set together"))
	}
	switch strings.ToLower(c.Layout.FontFamily) {
	case "", "times", "helvetica", "arial", "courier":
	default:
		errs = append(errs, fmt.Errorf("layout.font_family: %q is not a core font", c.Layout.FontFamily))
	}
	if err := c.PageLayout().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("layout: %w", err))
	}
	return errors.Join(errs...)
}

// PageLayout applies the layout overrides to bookcompiler.DefaultLayout.
func (c *Config) PageLayout() bookcompiler.Layout {
	l := bookcompiler.DefaultLayout()
	o := c.Layout

	set := func(dst *float64, v float64) {
		if v != 0 {
			*dst = v
		}
	}
	set(&l.TopMargin, o.TopMargin)
	set(&l.BodyTop, o.BodyTop)
	set(&l.BottomMargin, o.BottomMargin)
	set(&l.LeftMargin, o.LeftMargin)
	set(&l.FooterOffset, o.FooterOffset)
	set(&l.LineHeight, o.LineHeight)
	set(&l.TOCLineHeight, o.TOCLineHeight)
	if o.Wrap != nil {
		l.Wrap = *o.Wrap
	}

	styles := make(map[bookcompiler.LineStyle]bookcompiler.TextStyle, len(l.Styles))
	for k, s := range l.Styles {
		if o.FontFamily != "" {
			s.FontFamily = o.FontFamily
		}
		switch k {
		case bookcompiler.StyleBody, bookcompiler.StyleTOC:
			set(&s.Size, o.BodySize)
		case bookcompiler.StyleHeading:
			set(&s.Size, o.HeadingSize)
		case bookcompiler.StyleTitle:
			set(&s.Size, o.TitleSize)
		}
		styles[k] = s
	}
	l.Styles = styles
	if o.FontFamily != "" {
		l.Footer.FontFamily = o.FontFamily
	}
	return l
}

// CompilerOptions returns the bookcompiler options derived from the
// configuration.
func (c *Config) CompilerOptions() []bookcompiler.Option {
	opts := []bookcompiler.Option{bookcompiler.WithLayout(c.PageLayout())}
	if c.Layout.ToCTitle != "" {
		opts = append(opts, bookcompiler.WithToCTitle(c.Layout.ToCTitle))
	}
	return opts
}
