package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/lehigh-university-libraries/scanpos/internal/models"
)

// Config holds application configuration.
type Config struct {
	Storage StorageConfig `mapstructure:"storage"`
	Catalog CatalogConfig `mapstructure:"catalog"`
	OCR     OCRConfig     `mapstructure:"ocr"`
	Scan    ScanConfig    `mapstructure:"scan"`
	Tax     TaxConfig     `mapstructure:"tax"`
	Server  ServerConfig  `mapstructure:"server"`
}

// StorageConfig selects the key-value backend.
type StorageConfig struct {
	Driver string `mapstructure:"driver"`
	Path   string `mapstructure:"path"`
	DSN    string `mapstructure:"dsn"`
}

// CatalogConfig names the base catalog, a file path or http(s) URL.
type CatalogConfig struct {
	Base string `mapstructure:"base"`
}

// OCRConfig selects the vision provider used for price tags and barcodes.
type OCRConfig struct {
	Provider  string `mapstructure:"provider"`
	Model     string `mapstructure:"model"`
	Language  string `mapstructure:"language"`
	Whitelist string `mapstructure:"whitelist"`
}

// ScanConfig holds capture device settings.
type ScanConfig struct {
	FramesDir     string        `mapstructure:"frames_dir"`
	WedgeDevice   string        `mapstructure:"wedge_device"`
	FrameInterval time.Duration `mapstructure:"frame_interval"`
	Debounce      time.Duration `mapstructure:"debounce"`
}

// TaxConfig holds the defaults used until the operator changes them.
type TaxConfig struct {
	DefaultRate     float64 `mapstructure:"default_rate"`
	DefaultRounding string  `mapstructure:"default_rounding"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
}

// Model converts the defaults to a models.TaxConfig, coercing bad values
func (t TaxConfig) Model() models.TaxConfig {
	mode, _ := models.ParseRoundingMode(t.DefaultRounding)
	return models.TaxConfig{RatePercent: models.NonNegative(t.DefaultRate), Rounding: mode}
}

// Load reads configuration from file and env. Env var overrides use prefix SCANPOS_.
func Load() (Config, error) {
	v := viper.New()

	home := os.Getenv("HOME")

	// default values
	v.SetDefault("storage.driver", "sqlite")
	v.SetDefault("storage.path", filepath.Join(home, ".local", "share", "scanpos", "scanpos.db"))
	v.SetDefault("storage.dsn", "")
	v.SetDefault("catalog.base", "")
	v.SetDefault("ocr.provider", "ollama")
	v.SetDefault("ocr.model", "")
	v.SetDefault("ocr.language", "eng")
	v.SetDefault("ocr.whitelist", "0123456789¥￥.,円")
	v.SetDefault("scan.frames_dir", "")
	v.SetDefault("scan.wedge_device", "")
	v.SetDefault("scan.frame_interval", "100ms")
	v.SetDefault("scan.debounce", "1200ms")
	v.SetDefault("tax.default_rate", models.DefaultTaxRate)
	v.SetDefault("tax.default_rounding", string(models.DefaultRounding))
	v.SetDefault("server.port", "8888")

	v.SetConfigType("yaml")

	cfgPath := os.Getenv("SCANPOS_CONFIG")
	if cfgPath != "" {
		v.SetConfigFile(cfgPath)
	} else {
		v.AddConfigPath(filepath.Join(home, ".config", "scanpos"))
		v.SetConfigName("config")
	}

	v.SetEnvPrefix("SCANPOS")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// read config file if present
	if err := v.ReadInConfig(); err != nil && cfgPath != "" {
		return Config{}, fmt.Errorf("read config %s: %w", cfgPath, err)
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	c.Storage.Driver = strings.ToLower(strings.TrimSpace(c.Storage.Driver))
	return c, nil
}
