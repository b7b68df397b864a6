package store

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/samber/lo"
	"gopkg.in/yaml.v3"
)

// ErrMissingCredential is returned when a credential the process cannot run
// without is absent.
var ErrMissingCredential = errors.New("missing required credential")

// Instrument holds per-symbol pricing conventions.
type Instrument struct {
	Symbol        string  `yaml:"symbol"`
	Name          string  `yaml:"name"`
	PipSize       float64 `yaml:"pip_size"`
	StopLossPips  float64 `yaml:"stop_loss_pips"`
	PriceDecimals int32   `yaml:"price_decimals"`
	MockBasePrice float64 `yaml:"mock_base_price"`
}

// UnmarshalYAML fills defaults before decoding so an explicit zero in the
// file is kept.
func (in *Instrument) UnmarshalYAML(value *yaml.Node) error {
	type plain Instrument
	p := plain{PriceDecimals: 3}
	if err := value.Decode(&p); err != nil {
		return err
	}
	*in = Instrument(p)
	return nil
}

type Config struct {
	MarketData struct {
		BaseURL         string `yaml:"base_url"`
		Interval        string `yaml:"interval"`
		OutputSize      int    `yaml:"output_size"`
		RateLimit       int    `yaml:"rate_limit"`
		RateWindowSecs  int    `yaml:"rate_window_seconds"`
		PriceTTLSecs    int    `yaml:"price_ttl_seconds"`
		HTTPTimeoutSecs int    `yaml:"http_timeout_seconds"`
		APIKey          string `yaml:"-"`
	} `yaml:"market_data"`
	Instruments []Instrument `yaml:"instruments"`
	Signals     struct {
		RiskReward    float64 `yaml:"risk_reward"`
		ExpiryMinutes int     `yaml:"expiry_minutes"`
		MinConfidence int     `yaml:"min_confidence"`
	} `yaml:"signals"`
	Cache struct {
		Path           string `yaml:"path"`
		MaxHistory     int    `yaml:"max_history"`
		SaveDebounceMS int    `yaml:"save_debounce_ms"`
	} `yaml:"cache"`
	Intervals struct {
		GenerationMinutes int `yaml:"generation_minutes"`
		TrackerMinutes    int `yaml:"tracker_minutes"`
		ReviewMinutes     int `yaml:"review_minutes"`
		RecapMinutes      int `yaml:"recap_minutes"`
	} `yaml:"intervals"`
	Scheduler struct {
		RunOnStart bool `yaml:"run_on_start"`
	} `yaml:"scheduler"`
	Delivery struct {
		DryRun    bool   `yaml:"dry_run"`
		BotToken  string `yaml:"-"`
		ChannelID string `yaml:"channel_id"`
	} `yaml:"delivery"`
	Metrics struct {
		Addr string `yaml:"addr"`
	} `yaml:"metrics"`
	Journal struct {
		Dir           string `yaml:"dir"`
		RetentionDays int    `yaml:"retention_days"`
	} `yaml:"journal"`
}

// Instrument looks up the conventions for symbol. Unknown symbols get a
// 1-unit pip, which keeps pip math defined.
func (c *Config) Instrument(symbol string) Instrument {
	for _, in := range c.Instruments {
		if in.Symbol == symbol {
			return in
		}
	}
	return Instrument{Symbol: symbol, Name: symbol, PipSize: 1, StopLossPips: 50, PriceDecimals: 2, MockBasePrice: 100}
}

func (c *Config) Symbols() []string {
	return lo.Map(c.Instruments, func(in Instrument, _ int) string { return in.Symbol })
}

func (c *Config) Expiry() time.Duration {
	return time.Duration(c.Signals.ExpiryMinutes) * time.Minute
}

func (c *Config) SaveDebounce() time.Duration {
	return time.Duration(c.Cache.SaveDebounceMS) * time.Millisecond
}

func (c *Config) PriceTTL() time.Duration {
	return time.Duration(c.MarketData.PriceTTLSecs) * time.Second
}

func (c *Config) RateWindow() time.Duration {
	return time.Duration(c.MarketData.RateWindowSecs) * time.Second
}

// MetricsEnabled is false when metrics.addr is "off".
func (c *Config) MetricsEnabled() bool {
	return c.Metrics.Addr != "off"
}

func (c *Config) HTTPTimeout() time.Duration {
	return time.Duration(c.MarketData.HTTPTimeoutSecs) * time.Second
}

// MockMode reports whether market data runs without an upstream key.
func (c *Config) MockMode() bool {
	return c.MarketData.APIKey == ""
}

func (c *Config) Validate() error {
	if len(c.Instruments) == 0 {
		return errors.New("instruments cannot be empty")
	}
	for _, in := range c.Instruments {
		if in.Symbol == "" {
			return errors.New("instrument symbol cannot be empty")
		}
		if in.PipSize <= 0 {
			return fmt.Errorf("instrument %s: pip_size must be > 0, got %g", in.Symbol, in.PipSize)
		}
		if in.StopLossPips <= 0 {
			return fmt.Errorf("instrument %s: stop_loss_pips must be > 0, got %g", in.Symbol, in.StopLossPips)
		}
		if in.PriceDecimals < 0 || in.PriceDecimals > 8 {
			return fmt.Errorf("instrument %s: price_decimals must be 0-8, got %d", in.Symbol, in.PriceDecimals)
		}
	}
	if c.Signals.RiskReward <= 0 {
		return fmt.Errorf("signals.risk_reward must be > 0, got %.2f", c.Signals.RiskReward)
	}
	if c.Signals.ExpiryMinutes <= 0 {
		return fmt.Errorf("signals.expiry_minutes must be > 0, got %d", c.Signals.ExpiryMinutes)
	}
	if c.Signals.MinConfidence < 0 || c.Signals.MinConfidence > 100 {
		return fmt.Errorf("signals.min_confidence must be between 0-100, got %d", c.Signals.MinConfidence)
	}
	if c.Cache.MaxHistory <= 0 {
		return fmt.Errorf("cache.max_history must be > 0, got %d", c.Cache.MaxHistory)
	}
	if c.MarketData.RateLimit <= 0 {
		return fmt.Errorf("market_data.rate_limit must be > 0, got %d", c.MarketData.RateLimit)
	}
	if c.MarketData.RateWindowSecs <= 0 {
		return fmt.Errorf("market_data.rate_window_seconds must be > 0, got %d", c.MarketData.RateWindowSecs)
	}
	if c.MarketData.PriceTTLSecs <= 0 {
		return fmt.Errorf("market_data.price_ttl_seconds must be > 0, got %d", c.MarketData.PriceTTLSecs)
	}
	if c.MarketData.HTTPTimeoutSecs <= 0 {
		return fmt.Errorf("market_data.http_timeout_seconds must be > 0, got %d", c.MarketData.HTTPTimeoutSecs)
	}
	if c.Cache.SaveDebounceMS <= 0 {
		return fmt.Errorf("cache.save_debounce_ms must be > 0, got %d", c.Cache.SaveDebounceMS)
	}
	if c.Intervals.GenerationMinutes <= 0 || c.Intervals.TrackerMinutes <= 0 || c.Intervals.ReviewMinutes <= 0 {
		return errors.New("intervals.generation_minutes, tracker_minutes and review_minutes must be > 0")
	}
	if !c.Delivery.DryRun && (c.Delivery.BotToken == "" || c.Delivery.ChannelID == "") {
		return fmt.Errorf("%w: TELEGRAM_BOT_TOKEN and TELEGRAM_CHANNEL_ID are required unless delivery.dry_run is set", ErrMissingCredential)
	}
	return nil
}

// LoadConfig reads path, overlays secrets from the environment, applies
// defaults and validates. A missing file yields the defaults.
func LoadConfig(path string) (*Config, error) {
	return LoadConfigWith(path, nil)
}

// LoadConfigWith is LoadConfig with override applied after the environment
// overlay and before validation.
func LoadConfigWith(path string, override func(*Config)) (*Config, error) {
	var c Config
	// zero is a valid threshold, so it cannot be defaulted after decoding
	c.Signals.MinConfidence = 50

	b, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, err
	}

	c.MarketData.APIKey = os.Getenv("TWELVE_DATA_API_KEY")
	c.Delivery.BotToken = os.Getenv("TELEGRAM_BOT_TOKEN")
	if v := os.Getenv("TELEGRAM_CHANNEL_ID"); v != "" {
		c.Delivery.ChannelID = v
	}
	if v := os.Getenv("SIGNAL_JOURNAL_DIR"); v != "" {
		c.Journal.Dir = v
	}
	if override != nil {
		override(&c)
	}

	applyDefaults(&c)

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &c, nil
}

func applyDefaults(c *Config) {
	if c.MarketData.BaseURL == "" {
		c.MarketData.BaseURL = "https://api.twelvedata.com"
	}
	if c.MarketData.Interval == "" {
		c.MarketData.Interval = "1h"
	}
	if c.MarketData.OutputSize == 0 {
		c.MarketData.OutputSize = 100
	}
	if c.MarketData.RateLimit == 0 {
		c.MarketData.RateLimit = 8
	}
	if c.MarketData.RateWindowSecs == 0 {
		c.MarketData.RateWindowSecs = 60
	}
	if c.MarketData.PriceTTLSecs == 0 {
		c.MarketData.PriceTTLSecs = 30
	}
	if c.MarketData.HTTPTimeoutSecs == 0 {
		c.MarketData.HTTPTimeoutSecs = 15
	}

	if len(c.Instruments) == 0 {
		c.Instruments = []Instrument{{
			Symbol:        "XAU/USD",
			Name:          "GOLD (XAUUSD)",
			PipSize:       0.01,
			StopLossPips:  150,
			PriceDecimals: 3,
			MockBasePrice: 2650.50,
		}}
	}
	for i := range c.Instruments {
		in := &c.Instruments[i]
		if in.Name == "" {
			in.Name = in.Symbol
		}
		if in.MockBasePrice == 0 {
			in.MockBasePrice = 100
		}
	}

	if c.Signals.RiskReward == 0 {
		c.Signals.RiskReward = 2.5
	}
	if c.Signals.ExpiryMinutes == 0 {
		c.Signals.ExpiryMinutes = 240
	}

	if c.Cache.Path == "" {
		c.Cache.Path = "data/signals.json"
	}
	if c.Cache.MaxHistory == 0 {
		c.Cache.MaxHistory = 100
	}
	if c.Cache.SaveDebounceMS == 0 {
		c.Cache.SaveDebounceMS = 100
	}

	if c.Intervals.GenerationMinutes == 0 {
		c.Intervals.GenerationMinutes = 240
	}
	if c.Intervals.TrackerMinutes == 0 {
		c.Intervals.TrackerMinutes = 15
	}
	if c.Intervals.ReviewMinutes == 0 {
		c.Intervals.ReviewMinutes = 240
	}
	// negative disables the recap
	if c.Intervals.RecapMinutes == 0 {
		c.Intervals.RecapMinutes = 1440
	}

	if c.Metrics.Addr == "" {
		c.Metrics.Addr = ":9108"
	}

	if c.Journal.Dir == "" {
		c.Journal.Dir = "logs"
	}
}
