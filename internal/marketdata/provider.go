package marketdata

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/tidwall/gjson"

	"gold-signal-bot/internal/logger"
	"gold-signal-bot/internal/metrics"
	"gold-signal-bot/internal/types"
)

// ErrUpstream marks a failed or unusable response from the quote API. It
// never escapes the Provider; callers see mock data instead.
var ErrUpstream = errors.New("market data upstream error")

type Config struct {
	BaseURL     string
	APIKey      string
	Interval    string
	OutputSize  int
	PriceTTL    time.Duration
	HTTPTimeout time.Duration
	MockBases   map[string]float64
}

// Provider serves candles and prices from Twelve Data, degrading to
// MockSource on any failure. A Provider without an API key is permanently
// in mock mode.
type Provider struct {
	cfg     Config
	client  *http.Client
	limiter *RateLimiter
	prices  *PriceCache
	mock    *MockSource
	metrics *metrics.Metrics
}

func NewProvider(cfg Config, limiter *RateLimiter, m *metrics.Metrics) *Provider {
	if cfg.Interval == "" {
		cfg.Interval = "1h"
	}
	if cfg.OutputSize <= 0 {
		cfg.OutputSize = 100
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 15 * time.Second
	}
	if limiter == nil {
		limiter = NewRateLimiter(8, time.Minute)
	}
	if m != nil {
		limiter.OnWait(m.RateLimited)
	}
	return &Provider{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.HTTPTimeout},
		limiter: limiter,
		prices:  NewPriceCache(cfg.PriceTTL),
		mock:    NewMockSource(cfg.MockBases),
		metrics: m,
	}
}

func (p *Provider) MockMode() bool {
	return p.cfg.APIKey == ""
}

// Usage reports calls in the current rate window and the limit.
func (p *Provider) Usage() (calls, limit int) {
	return p.limiter.InWindow()
}

// Candles returns count bars oldest first. interval and count fall back to
// the configured defaults when empty or zero.
func (p *Provider) Candles(ctx context.Context, symbol, interval string, count int) (types.Series, error) {
	if interval == "" {
		interval = p.cfg.Interval
	}
	if count <= 0 {
		count = p.cfg.OutputSize
	}

	if p.MockMode() {
		return p.mockSeries(symbol, interval, count), nil
	}

	if err := p.limiter.Wait(ctx); err != nil {
		return types.Series{}, err
	}

	candles, err := p.fetchTimeSeries(ctx, symbol, interval, count)
	if err != nil {
		if ctx.Err() != nil {
			return types.Series{}, ctx.Err()
		}
		logger.Warn(ctx, "Candle fetch failed, using mock data", "symbol", symbol, "error", err)
		return p.mockSeries(symbol, interval, count), nil
	}

	p.metrics.Upstream("time_series", string(types.SourceLive))
	return types.Series{Symbol: symbol, Candles: candles, Source: types.SourceLive}, nil
}

// CurrentPrice returns the latest price. Fresh cached prices bypass the
// rate limiter; mock prices are never cached.
func (p *Provider) CurrentPrice(ctx context.Context, symbol string) (types.Quote, error) {
	if p.MockMode() {
		return p.mockQuote(symbol), nil
	}

	if price, at, ok := p.prices.Get(symbol); ok {
		p.metrics.Upstream("price", string(types.SourceCache))
		return types.Quote{Symbol: symbol, Price: price, Source: types.SourceCache, At: at}, nil
	}

	if err := p.limiter.Wait(ctx); err != nil {
		return types.Quote{}, err
	}

	price, err := p.fetchPrice(ctx, symbol)
	if err != nil {
		if ctx.Err() != nil {
			return types.Quote{}, ctx.Err()
		}
		logger.Warn(ctx, "Price fetch failed, using mock price", "symbol", symbol, "error", err)
		return p.mockQuote(symbol), nil
	}

	p.prices.Set(symbol, price)
	p.metrics.Upstream("price", string(types.SourceLive))
	return types.Quote{Symbol: symbol, Price: price, Source: types.SourceLive, At: time.Now()}, nil
}

// GetMarketData fetches candles then the current price, one after the other
// so both calls queue on the limiter in order.
func (p *Provider) GetMarketData(ctx context.Context, symbol string) (types.MarketData, error) {
	series, err := p.Candles(ctx, symbol, "", 0)
	if err != nil {
		return types.MarketData{}, err
	}
	quote, err := p.CurrentPrice(ctx, symbol)
	if err != nil {
		return types.MarketData{}, err
	}
	return types.MarketData{
		Symbol:       symbol,
		Candles:      series.Candles,
		CurrentPrice: quote.Price,
		CandleSource: series.Source,
		PriceSource:  quote.Source,
		Timestamp:    time.Now(),
	}, nil
}

func (p *Provider) mockSeries(symbol, interval string, count int) types.Series {
	p.metrics.Upstream("time_series", string(types.SourceMock))
	return types.Series{
		Symbol:  symbol,
		Candles: p.mock.Candles(symbol, count, intervalStep(interval)),
		Source:  types.SourceMock,
	}
}

func (p *Provider) mockQuote(symbol string) types.Quote {
	p.metrics.Upstream("price", string(types.SourceMock))
	return types.Quote{Symbol: symbol, Price: p.mock.Price(symbol), Source: types.SourceMock, At: time.Now()}
}

func (p *Provider) get(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	u := strings.TrimRight(p.cfg.BaseURL, "/") + "/" + endpoint + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "apikey "+p.cfg.APIKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUpstream, endpoint, stripURL(err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrUpstream, endpoint, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s returned status %d", ErrUpstream, endpoint, resp.StatusCode)
	}
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("%w: %s returned invalid JSON", ErrUpstream, endpoint)
	}
	if gjson.GetBytes(body, "status").String() == "error" {
		return nil, fmt.Errorf("%w: %s: %s", ErrUpstream, endpoint, gjson.GetBytes(body, "message").String())
	}
	return body, nil
}

// stripURL drops the request URL from transport errors so query values
// never reach the logs.
func stripURL(err error) error {
	var ue *url.Error
	if errors.As(err, &ue) {
		return fmt.Errorf("%s: %w", ue.Op, ue.Err)
	}
	return err
}

func (p *Provider) fetchTimeSeries(ctx context.Context, symbol, interval string, count int) ([]types.Candle, error) {
	body, err := p.get(ctx, "time_series", url.Values{
		"symbol":     {symbol},
		"interval":   {interval},
		"outputsize": {strconv.Itoa(count)},
	})
	if err != nil {
		return nil, err
	}

	values := gjson.GetBytes(body, "values").Array()
	if len(values) == 0 {
		return nil, fmt.Errorf("%w: no candles for %s", ErrUpstream, symbol)
	}

	candles := make([]types.Candle, 0, len(values))
	for _, v := range values {
		c, err := parseCandle(v)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
		}
		candles = append(candles, c)
	}
	// upstream is newest first
	return lo.Reverse(candles), nil
}

func (p *Provider) fetchPrice(ctx context.Context, symbol string) (float64, error) {
	body, err := p.get(ctx, "price", url.Values{"symbol": {symbol}})
	if err != nil {
		return 0, err
	}
	raw := gjson.GetBytes(body, "price").String()
	if raw == "" {
		return 0, fmt.Errorf("%w: no price for %s", ErrUpstream, symbol)
	}
	price, err := strconv.ParseFloat(raw, 64)
	if err != nil || price <= 0 {
		return 0, fmt.Errorf("%w: invalid price %q for %s", ErrUpstream, raw, symbol)
	}
	return price, nil
}

var datetimeLayouts = []string{"2006-01-02 15:04:05", "2006-01-02"}

func parseCandle(v gjson.Result) (types.Candle, error) {
	dt := v.Get("datetime").String()
	var ts time.Time
	var err error
	for _, layout := range datetimeLayouts {
		if ts, err = time.Parse(layout, dt); err == nil {
			break
		}
	}
	if err != nil {
		return types.Candle{}, fmt.Errorf("bad datetime %q", dt)
	}

	fields := [4]float64{}
	for i, key := range []string{"open", "high", "low", "close"} {
		f, err := strconv.ParseFloat(v.Get(key).String(), 64)
		if err != nil {
			return types.Candle{}, fmt.Errorf("bad %s at %s", key, dt)
		}
		fields[i] = f
	}

	c := types.Candle{Ts: ts.Unix(), Open: fields[0], High: fields[1], Low: fields[2], Close: fields[3]}
	if vol := v.Get("volume"); vol.Exists() && vol.String() != "" {
		if f, err := strconv.ParseFloat(vol.String(), 64); err == nil {
			c.Vol = &f
		}
	}
	return c, nil
}

// intervalStep maps a Twelve Data interval name to a bar width.
func intervalStep(interval string) time.Duration {
	switch interval {
	case "1min":
		return time.Minute
	case "5min":
		return 5 * time.Minute
	case "15min":
		return 15 * time.Minute
	case "30min":
		return 30 * time.Minute
	case "45min":
		return 45 * time.Minute
	case "2h":
		return 2 * time.Hour
	case "4h":
		return 4 * time.Hour
	case "1day":
		return 24 * time.Hour
	case "1week":
		return 7 * 24 * time.Hour
	default:
		return time.Hour
	}
}
