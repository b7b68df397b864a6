package interfaces

import (
	"context"

	"gold-signal-bot/internal/types"
)

type SignalStore interface {
	Add(sig types.CachedSignal)
	Get(id string) (types.CachedSignal, bool)
	GetAll() []types.CachedSignal
	GetActive() []types.CachedSignal
	GetExpired() []types.CachedSignal
	Update(id string, upd types.SignalUpdate) bool
	Remove(id string) bool
	GetStats() types.SignalStats
	Prune() int
	Flush() error
}

type SignalGenerator interface {
	Generate(ctx context.Context, symbol string) (*types.GeneratedSignal, types.Analysis, error)
	GenerateAll(ctx context.Context) ([]types.GeneratedSignal, error)
}

type Tracker interface {
	CheckSignal(ctx context.Context, sig types.CachedSignal) (*types.TrackResult, error)
	CheckAll(ctx context.Context) []types.TrackResult
	ReviewExpired(ctx context.Context) []types.TrackResult
}

// Notifier delivers formatted text or an image with caption to the
// channel. It does no retrying.
type Notifier interface {
	Send(ctx context.Context, text string) error
	SendPhoto(ctx context.Context, image []byte, caption string) error
}
