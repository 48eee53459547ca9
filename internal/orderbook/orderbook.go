// Package orderbook keeps the bid and ask levels of one market outcome in
// price order.
package orderbook

import (
	"fmt"

	"github.com/google/btree"
	"github.com/shopspring/decimal"

	"github.com/daszybak/omniverse_markets/internal/price"
	"github.com/daszybak/omniverse_markets/internal/schema"
)

type Side string

const (
	Bids Side = "bids"
	Asks Side = "asks"
)

// Level represents a price level in the order book.
type Level struct {
	Price price.Price
	Size  price.Size
}

// lessAsc compares levels by price ascending (for asks: lowest first).
func lessAsc(a, b Level) bool {
	return a.Price < b.Price
}

// lessDesc compares levels by price descending (for bids: highest first).
func lessDesc(a, b Level) bool {
	return a.Price > b.Price
}

// Orderbook maintains sorted bid and ask levels using btrees.
// Bids are sorted descending (highest price first).
// Asks are sorted ascending (lowest price first).
type Orderbook struct {
	bids *btree.BTreeG[Level]
	asks *btree.BTreeG[Level]
}

// New creates a new empty order book.
func New() *Orderbook {
	return &Orderbook{
		bids: btree.NewG(32, lessDesc),
		asks: btree.NewG(32, lessAsc),
	}
}

// FromEntries builds a book from provider levels. Repeated prices on a side
// are summed.
func FromEntries(bids, asks []schema.OrderBookEntry) *Orderbook {
	ob := New()
	for _, e := range bids {
		_ = ob.Add(Bids, price.FromFloat(e.Price), sizeFromFloat(e.Size))
	}
	for _, e := range asks {
		_ = ob.Add(Asks, price.FromFloat(e.Price), sizeFromFloat(e.Size))
	}
	return ob
}

// Set sets an absolute size at a price level.
// If size <= 0, the level is removed.
func (ob *Orderbook) Set(side Side, p price.Price, size price.Size) error {
	tree, err := ob.getTree(side)
	if err != nil {
		return err
	}

	if size <= 0 {
		tree.Delete(Level{Price: p})
		return nil
	}

	tree.ReplaceOrInsert(Level{Price: p, Size: size})
	return nil
}

// Add applies a delta to a price level.
// If the resulting size <= 0, the level is removed.
func (ob *Orderbook) Add(side Side, p price.Price, delta price.Size) error {
	tree, err := ob.getTree(side)
	if err != nil {
		return err
	}

	existing, found := tree.Get(Level{Price: p})
	newSize := delta
	if found {
		newSize = existing.Size + delta
	}

	if newSize <= 0 {
		tree.Delete(Level{Price: p})
		return nil
	}

	tree.ReplaceOrInsert(Level{Price: p, Size: newSize})
	return nil
}

// TopN returns the best n price levels for a side.
// Bids: highest prices first. Asks: lowest prices first.
func (ob *Orderbook) TopN(side Side, n int) ([]Level, error) {
	tree, err := ob.getTree(side)
	if err != nil {
		return nil, err
	}
	if n <= 0 {
		return []Level{}, nil
	}

	levels := make([]Level, 0, min(n, tree.Len()))
	tree.Ascend(func(lvl Level) bool {
		levels = append(levels, lvl)
		return len(levels) < n
	})

	return levels, nil
}

// Len returns the number of levels on a side.
func (ob *Orderbook) Len(side Side) int {
	tree, _ := ob.getTree(side)
	if tree == nil {
		return 0
	}
	return tree.Len()
}

// Spread is best ask minus best bid. ok is false when either side is empty.
func (ob *Orderbook) Spread() (spread decimal.Decimal, ok bool) {
	bid, hasBid := ob.bids.Min()
	ask, hasAsk := ob.asks.Min()
	if !hasBid || !hasAsk {
		return decimal.Zero, false
	}
	return toDecimal(int64(ask.Price)).Sub(toDecimal(int64(bid.Price))), true
}

// Entries returns the top depth levels of each side as schema entries, plus
// the spread when both sides are present.
func (ob *Orderbook) Entries(depth int) (bids, asks []schema.OrderBookEntry, spread *float64) {
	b, _ := ob.TopN(Bids, depth)
	a, _ := ob.TopN(Asks, depth)
	bids = toEntries(b)
	asks = toEntries(a)
	if s, ok := ob.Spread(); ok {
		spread = schema.Float(s.InexactFloat64())
	}
	return bids, asks, spread
}

func (ob *Orderbook) getTree(side Side) (*btree.BTreeG[Level], error) {
	switch side {
	case Bids:
		return ob.bids, nil
	case Asks:
		return ob.asks, nil
	default:
		return nil, fmt.Errorf("invalid side: %s", side)
	}
}

func toEntries(levels []Level) []schema.OrderBookEntry {
	out := make([]schema.OrderBookEntry, len(levels))
	for i, l := range levels {
		out[i] = schema.OrderBookEntry{
			Price: toDecimal(int64(l.Price)).InexactFloat64(),
			Size:  toDecimal(int64(l.Size)).InexactFloat64(),
		}
	}
	return out
}

func toDecimal(scaled int64) decimal.Decimal {
	return decimal.New(scaled, -6)
}

func sizeFromFloat(f float64) price.Size {
	return price.Size(price.FromFloat(f))
}
