// Package sample serves deterministic market data for providers running
// without credentials.
package sample

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/daszybak/omniverse_markets/internal/normalize"
	"github.com/daszybak/omniverse_markets/internal/schema"
)

// DefaultPath is where the sample dataset is looked up when none is configured.
const DefaultPath = "data/sample_timeseries.json"

// Dataset is the on-disk sample file: raw markets plus hourly prices per market.
type Dataset struct {
	Markets     []normalize.RawMarket          `json:"markets"`
	TimeSeries  map[string][]schema.PricePoint `json:"timeseries"`
	GeneratedAt string                         `json:"generated_at,omitempty"`
	Version     string                         `json:"version,omitempty"`
}

// Load reads the dataset at path. A missing file yields the inline fallback
// dataset; a file that exists but can't be decoded is an error.
func Load(path string) (*Dataset, bool, error) {
	if path == "" {
		path = DefaultPath
	}
	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Fallback(), false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("couldn't read sample data %s: %w", path, err)
	}

	ds := &Dataset{}
	if err := json.Unmarshal(raw, ds); err != nil {
		return nil, false, fmt.Errorf("couldn't parse sample data %s: %w", path, err)
	}
	return ds, true, nil
}

// MarketsFor returns the raw markets tagged for provider p. Records without a
// provider tag are attributed by their ID prefix.
func (d *Dataset) MarketsFor(p schema.Provider) []normalize.RawMarket {
	var out []normalize.RawMarket
	for _, m := range d.Markets {
		tag, err := schema.ParseProvider(m.Provider)
		if err != nil {
			tag = providerFromID(m.ID)
		}
		if tag == p {
			out = append(out, m)
		}
	}
	return out
}

func providerFromID(id string) schema.Provider {
	switch {
	case len(id) >= 7 && id[:7] == "KALSHI-":
		return schema.Kalshi
	case len(id) >= 5 && id[:5] == "POLY-":
		return schema.Polymarket
	}
	return ""
}

// Fallback is the built-in dataset: one market per provider.
func Fallback() *Dataset {
	return &Dataset{
		Markets: []normalize.RawMarket{
			{
				ID:          "KALSHI-PRES2024",
				Title:       "Will Joe Biden win the 2024 US Presidential Election?",
				Description: "Market resolves to Yes if Joe Biden wins",
				Provider:    "kalshi",
				Status:      "active",
				Category:    "politics",
				CreatedAt:   "2024-01-01T00:00:00Z",
				CloseDate:   "2024-11-05T23:59:59Z",
				Outcomes: []schema.Outcome{
					{ID: "yes", Name: "Yes", Price: schema.Float(0.65), Volume: schema.Float(15420.50)},
					{ID: "no", Name: "No", Price: schema.Float(0.35), Volume: schema.Float(8930.25)},
				},
				TotalVolume: schema.Float(24350.75),
			},
			{
				ID:          "POLY-CRYPTO2024",
				Title:       "Will Bitcoin reach $100,000 by end of 2024?",
				Description: "Market resolves to Yes if Bitcoin reaches $100k",
				Provider:    "polymarket",
				Status:      "active",
				Category:    "crypto",
				CreatedAt:   "2024-01-01T00:00:00Z",
				CloseDate:   "2024-12-31T23:59:59Z",
				Outcomes: []schema.Outcome{
					{ID: "yes", Name: "Yes", Price: schema.Float(0.42), Volume: schema.Float(28750.80)},
					{ID: "no", Name: "No", Price: schema.Float(0.58), Volume: schema.Float(19240.60)},
				},
				TotalVolume: schema.Float(47991.40),
			},
		},
	}
}
