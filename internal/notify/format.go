package notify

import (
	"fmt"
	"strings"
	"time"

	"gold-signal-bot/internal/store"
	"gold-signal-bot/internal/types"
)

const rule = "--------------------"

func price(v float64, in store.Instrument) string {
	return fmt.Sprintf("%.*f", int(in.PriceDecimals), v)
}

func signedPips(p float64) string {
	return fmt.Sprintf("%+.1f", p)
}

// FormatSignal renders a new signal announcement.
func FormatSignal(sig types.CachedSignal, in store.Instrument) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s SIGNAL: %s\n%s\n", sig.Direction, in.Name, rule)
	fmt.Fprintf(&b, "Entry: %s\n", price(sig.EntryPrice, in))
	fmt.Fprintf(&b, "Stop Loss: %s\n", price(sig.StopLoss, in))
	fmt.Fprintf(&b, "Take Profit 1: %s\n", price(sig.TakeProfit1, in))
	if sig.TakeProfit2 != nil {
		fmt.Fprintf(&b, "Take Profit 2: %s\n", price(*sig.TakeProfit2, in))
	}
	if sig.TakeProfit3 != nil {
		fmt.Fprintf(&b, "Take Profit 3: %s\n", price(*sig.TakeProfit3, in))
	}
	fmt.Fprintf(&b, "Confidence: %d%%\n", sig.Confidence)
	fmt.Fprintf(&b, "Valid until: %s UTC", sig.ExpiresAt.UTC().Format("2006-01-02 15:04"))
	return b.String()
}

// FormatOutcome renders a take-profit or stop-loss close.
func FormatOutcome(res types.TrackResult, in store.Instrument) string {
	sig := res.Signal
	var b strings.Builder
	if res.Status.IsWin() {
		fmt.Fprintf(&b, "%s HIT: %s %s\n%s\n", res.Level, in.Name, sig.Direction, rule)
	} else {
		fmt.Fprintf(&b, "STOP LOSS HIT: %s %s\n%s\n", in.Name, sig.Direction, rule)
	}
	fmt.Fprintf(&b, "Entry: %s\n", price(sig.EntryPrice, in))
	fmt.Fprintf(&b, "Closed: %s\n", price(res.Price, in))
	fmt.Fprintf(&b, "Result: %s pips\n", signedPips(res.Pips))
	fmt.Fprintf(&b, "Duration: %s\n", FormatDuration(res.Held))
	fmt.Fprintf(&b, "Confidence was: %d%%", sig.Confidence)
	return b.String()
}

// FormatExpired renders an expiry with its unrealized result.
func FormatExpired(res types.TrackResult, in store.Instrument) string {
	sig := res.Signal
	var b strings.Builder
	fmt.Fprintf(&b, "SIGNAL EXPIRED: %s %s\n%s\n", in.Name, sig.Direction, rule)
	fmt.Fprintf(&b, "Entry: %s\n", price(sig.EntryPrice, in))
	fmt.Fprintf(&b, "Current: %s\n", price(res.Price, in))
	fmt.Fprintf(&b, "Unrealized: %s pips\n", signedPips(res.Pips))
	fmt.Fprintf(&b, "Neither take profit nor stop loss was hit within %s.", FormatDuration(sig.ExpiresAt.Sub(sig.CreatedAt)))
	return b.String()
}

// FormatRecap renders the running statistics.
func FormatRecap(st types.SignalStats, title string) string {
	if title == "" {
		title = "SIGNAL RECAP"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n%s\n", title, rule)
	if st.Wins+st.Losses+st.Expired == 0 {
		fmt.Fprintf(&b, "No closed signals yet. Active: %d", st.Active)
		return b.String()
	}
	fmt.Fprintf(&b, "Wins: %d\nLosses: %d\nExpired: %d\nActive: %d\n", st.Wins, st.Losses, st.Expired, st.Active)
	fmt.Fprintf(&b, "Win rate: %.1f%%\n", st.WinRate)
	fmt.Fprintf(&b, "Net: %s pips", signedPips(st.TotalPips))
	return b.String()
}

// FormatDuration renders d as "Xh Ym", or "Ym" under an hour.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	if h > 0 {
		return fmt.Sprintf("%dh %dm", h, m)
	}
	return fmt.Sprintf("%dm", m)
}
