package types

import "time"

// Candle is one OHLC bar. Volume is optional upstream.
type Candle struct {
	Ts    int64    `json:"ts"`
	Open  float64  `json:"open"`
	High  float64  `json:"high"`
	Low   float64  `json:"low"`
	Close float64  `json:"close"`
	Vol   *float64 `json:"volume,omitempty"`
}

// Closes extracts the close series from candles.
func Closes(cs []Candle) []float64 {
	out := make([]float64, len(cs))
	for i, c := range cs {
		out[i] = c.Close
	}
	return out
}

// Source records which path produced market data.
type Source string

const (
	SourceLive  Source = "live"
	SourceMock  Source = "mock"
	SourceCache Source = "cache"
)

type Series struct {
	Symbol  string
	Candles []Candle
	Source  Source
}

type Quote struct {
	Symbol string
	Price  float64
	Source Source
	At     time.Time
}

type MarketData struct {
	Symbol       string
	Candles      []Candle
	CurrentPrice float64
	CandleSource Source
	PriceSource  Source
	Timestamp    time.Time
}

type RSIResult struct {
	Value      float64 `json:"value"`
	Overbought bool    `json:"overbought"`
	Oversold   bool    `json:"oversold"`
}

type MACDResult struct {
	MACD      float64 `json:"macd"`
	Signal    float64 `json:"signal"`
	Histogram float64 `json:"histogram"`
	Bullish   bool    `json:"bullish"`
}

type Crossover string

const (
	CrossBullish Crossover = "BULLISH"
	CrossBearish Crossover = "BEARISH"
	CrossNone    Crossover = "NONE"
)

type EMAResult struct {
	Fast      float64   `json:"fast"`
	Slow      float64   `json:"slow"`
	Crossover Crossover `json:"crossover"`
}

type IndicatorSet struct {
	RSI  RSIResult  `json:"rsi"`
	MACD MACDResult `json:"macd"`
	EMA  EMAResult  `json:"ema"`
}

type Direction string

const (
	Buy  Direction = "BUY"
	Sell Direction = "SELL"
)

type Status string

const (
	StatusActive  Status = "ACTIVE"
	StatusWinTP1  Status = "WIN_TP1"
	StatusWinTP2  Status = "WIN_TP2"
	StatusWinTP3  Status = "WIN_TP3"
	StatusLossSL  Status = "LOSS_SL"
	StatusExpired Status = "EXPIRED"
)

// IsWin reports whether s is one of the take-profit outcomes.
func (s Status) IsWin() bool {
	return s == StatusWinTP1 || s == StatusWinTP2 || s == StatusWinTP3
}

// Closed reports whether s is terminal.
func (s Status) Closed() bool {
	return s != StatusActive
}

// CachedSignal is the persisted signal record. Optional tiers and the
// close fields are pointers so absence is explicit in both Go and JSON.
type CachedSignal struct {
	ID          string    `json:"id"`
	Symbol      string    `json:"symbol"`
	Direction   Direction `json:"direction"`
	EntryPrice  float64   `json:"entryPrice"`
	StopLoss    float64   `json:"stopLoss"`
	TakeProfit1 float64   `json:"takeProfit1"`
	TakeProfit2 *float64  `json:"takeProfit2,omitempty"`
	TakeProfit3 *float64  `json:"takeProfit3,omitempty"`
	Confidence  int       `json:"confidence"`
	CreatedAt   time.Time `json:"createdAt"`
	ExpiresAt   time.Time `json:"expiresAt"`

	Status      Status     `json:"status"`
	ClosedAt    *time.Time `json:"closedAt,omitempty"`
	ClosedPrice *float64   `json:"closedPrice,omitempty"`
	PnLPips     *float64   `json:"pnlPips,omitempty"`
}

// Clone returns a deep copy so callers never share pointers with the cache.
func (s CachedSignal) Clone() CachedSignal {
	c := s
	c.TakeProfit2 = cloneFloat(s.TakeProfit2)
	c.TakeProfit3 = cloneFloat(s.TakeProfit3)
	c.ClosedPrice = cloneFloat(s.ClosedPrice)
	c.PnLPips = cloneFloat(s.PnLPips)
	if s.ClosedAt != nil {
		t := *s.ClosedAt
		c.ClosedAt = &t
	}
	return c
}

// SignalUpdate is a partial update; nil fields are left untouched.
type SignalUpdate struct {
	Status      *Status
	ClosedAt    *time.Time
	ClosedPrice *float64
	PnLPips     *float64
}

// SignalStats is derived from the full signal set and never stored.
type SignalStats struct {
	Wins      int     `json:"wins"`
	Losses    int     `json:"losses"`
	Expired   int     `json:"expired"`
	Active    int     `json:"active"`
	Total     int     `json:"total"`
	WinRate   float64 `json:"winRate"`
	TotalPips float64 `json:"totalPips"`
}

func cloneFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}

// Float returns a pointer to v.
func Float(v float64) *float64 { return &v }

// StatusPtr returns a pointer to s.
func StatusPtr(s Status) *Status { return &s }

// Analysis is the generator's reading of one symbol, whether or not it
// produced a signal.
type Analysis struct {
	Symbol       string       `json:"symbol"`
	Price        float64      `json:"price"`
	Indicators   IndicatorSet `json:"indicators"`
	BullScore    int          `json:"bullScore"`
	BearScore    int          `json:"bearScore"`
	Confidence   int          `json:"confidence"`
	Reasons      []string     `json:"reasons"`
	CandleSource Source       `json:"candleSource"`
	PriceSource  Source       `json:"priceSource"`
}

// GeneratedSignal pairs an emitted signal with the analysis behind it.
type GeneratedSignal struct {
	Signal   CachedSignal
	Analysis Analysis
}

// TrackResult describes one signal leaving ACTIVE.
type TrackResult struct {
	Signal   CachedSignal // state after the update
	Previous Status
	Status   Status
	Price    float64
	Pips     float64
	Level    string // SL, TP1, TP2, TP3 or EXPIRY
	Held     time.Duration
}
