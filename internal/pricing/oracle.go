package pricing

import (
	"context"
	"sync"
	"time"

	"minetrade/internal/models"

	"github.com/shopspring/decimal"
)

// Source supplies the active price rows, typically store.PriceStore.
type Source interface {
	Active(ctx context.Context) ([]models.AssetPrice, error)
}

// Snapshot is a point-in-time view of per-asset prices in the reference
// unit. An asset missing from Prices has no usable price. The reference
// asset always maps to 1.
type Snapshot struct {
	Prices map[models.Asset]decimal.Decimal
	Stale  bool
	AsOf   time.Time
}

func (s Snapshot) Price(asset models.Asset) (decimal.Decimal, bool) {
	price, ok := s.Prices[asset]
	return price, ok
}

// Oracle reads prices from a Source and serves the last good snapshot when
// the source fails, flagging it stale. Get never blocks beyond the context
// deadline of the underlying read.
type Oracle struct {
	source     Source
	staleAfter time.Duration
	now        func() time.Time

	mu     sync.Mutex
	cached Snapshot
	hasAny bool
}

func NewOracle(source Source, staleAfter time.Duration) *Oracle {
	return &Oracle{
		source:     source,
		staleAfter: staleAfter,
		now:        time.Now,
	}
}

func (o *Oracle) Get(ctx context.Context) Snapshot {
	now := o.now()
	rows, err := o.source.Active(ctx)
	if err != nil {
		o.mu.Lock()
		defer o.mu.Unlock()
		if o.hasAny {
			cached := o.cached
			cached.Stale = true
			return cached
		}
		return Snapshot{
			Prices: map[models.Asset]decimal.Decimal{models.ReferenceAsset: decimal.NewFromInt(1)},
			Stale:  true,
			AsOf:   now,
		}
	}

	snapshot := Snapshot{
		Prices: make(map[models.Asset]decimal.Decimal, len(rows)+1),
		AsOf:   now,
	}
	snapshot.Prices[models.ReferenceAsset] = decimal.NewFromInt(1)
	for _, row := range rows {
		if !row.Price.IsPositive() {
			continue
		}
		if row.Asset == models.ReferenceAsset {
			continue
		}
		snapshot.Prices[row.Asset] = row.Price
		if o.staleAfter > 0 && now.Sub(row.CreatedAt) > o.staleAfter {
			snapshot.Stale = true
		}
	}

	o.mu.Lock()
	o.cached = snapshot
	o.hasAny = true
	o.mu.Unlock()
	return snapshot
}
