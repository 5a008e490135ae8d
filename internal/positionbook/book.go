// Package positionbook tracks the bot's own open mirrored positions,
// keyed by (wallet, token). It replaces the teacher's SQLite-backed
// PositionTracker (internal/trading) with an in-memory, decimal-accurate
// book: positions never survive a restart, matching the spec's explicit
// non-goal of cross-restart persistence.
package positionbook

import (
	"errors"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mirrorbot/mirrorbot/internal/model"
)

var (
	// ErrPositionExists is returned by Open when a position already exists
	// for the given key; callers should route to Update instead.
	ErrPositionExists = errors.New("positionbook: position already open for key")
	// ErrPositionNotFound is returned by Update/Close when no position is
	// open for the given key.
	ErrPositionNotFound = errors.New("positionbook: no open position for key")
)

// Book is a concurrency-safe store of open positions.
type Book struct {
	mu   sync.RWMutex
	byID map[model.PositionKey]*model.Position
}

// New creates an empty Book.
func New() *Book {
	return &Book{byID: make(map[model.PositionKey]*model.Position)}
}

// Open creates a new position for key. Opening a second position against
// an already-open key is an error; the caller is expected to use Update.
// originTx and quoteToken record, respectively, spec.md §3's `origin_tx`
// field and the asset a later risk exit sells the position back into.
func (b *Book) Open(key model.PositionKey, chain model.Chain, size, price decimal.Decimal, originTx, quoteToken string, at time.Time) (model.Position, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.byID[key]; exists {
		return model.Position{}, ErrPositionExists
	}

	p := &model.Position{
		Key:        key,
		Chain:      chain,
		Size:       size,
		AvgPrice:   price,
		OpenedAt:   at,
		UpdatedAt:  at,
		OriginTx:   originTx,
		QuoteToken: quoteToken,
	}
	b.byID[key] = p
	return *p, nil
}

// Update folds an additional fill into an existing position, recomputing
// the volume-weighted average price:
//
//	newAvg = (oldSize*oldAvg + addSize*addPrice) / (oldSize + addSize)
//
// addSize may be negative to represent a partial reduction; the average
// price is unaffected by reductions (only size and UpdatedAt change).
func (b *Book) Update(key model.PositionKey, addSize, fillPrice decimal.Decimal, at time.Time) (model.Position, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	p, ok := b.byID[key]
	if !ok {
		return model.Position{}, ErrPositionNotFound
	}

	if addSize.IsPositive() {
		numerator := p.Size.Mul(p.AvgPrice).Add(addSize.Mul(fillPrice))
		newSize := p.Size.Add(addSize)
		if !newSize.IsZero() {
			p.AvgPrice = numerator.Div(newSize)
		}
		p.Size = newSize
	} else {
		p.Size = p.Size.Add(addSize)
	}
	p.UpdatedAt = at

	return *p, nil
}

// Close removes and returns the position for key.
func (b *Book) Close(key model.PositionKey) (model.Position, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	p, ok := b.byID[key]
	if !ok {
		return model.Position{}, ErrPositionNotFound
	}
	delete(b.byID, key)
	return *p, nil
}

// Get returns a snapshot of the position for key, if any.
func (b *Book) Get(key model.PositionKey) (model.Position, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	p, ok := b.byID[key]
	if !ok {
		return model.Position{}, false
	}
	return *p, true
}

// Snapshot returns a copy of every currently open position.
func (b *Book) Snapshot() []model.Position {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]model.Position, 0, len(b.byID))
	for _, p := range b.byID {
		out = append(out, *p)
	}
	return out
}

// Len returns the number of open positions.
func (b *Book) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.byID)
}
