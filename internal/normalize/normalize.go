// Package normalize maps provider market records onto schema.Market.
//
// Providers disagree on field names (Polymarket asks a "question" where Kalshi
// has a "title", ends on "end_date" rather than "close_date", and so on).
// RawMarket carries every alias; Market resolves each schema field from the
// first alias that is set:
//
//	id           id, ticker, condition_id
//	title        title, question
//	description  description, rules_primary
//	status       status, closed flag, active flag   (default "active")
//	category     category, tags[0]
//	created_at   created_at, created_time           (default now)
//	close_date   close_date, end_date, close_time
//	settle_date  settle_date, expiration_time
//	total_volume total_volume, volume               (default 0)
//	liquidity    liquidity                          (default 0)
package normalize

import (
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/daszybak/omniverse_markets/internal/schema"
)

// RawMarket is a provider market before normalization.
type RawMarket struct {
	ID          string `json:"id"`
	Ticker      string `json:"ticker"`
	ConditionID string `json:"condition_id"`

	Title        string `json:"title"`
	Question     string `json:"question"`
	Description  string `json:"description"`
	RulesPrimary string `json:"rules_primary"`

	Status string `json:"status"`
	Active *bool  `json:"active"`
	Closed *bool  `json:"closed"`

	Category string   `json:"category"`
	Tags     []string `json:"tags"`

	CreatedAt      string `json:"created_at"`
	CreatedTime    string `json:"created_time"`
	CloseDate      string `json:"close_date"`
	EndDate        string `json:"end_date"`
	CloseTime      string `json:"close_time"`
	SettleDate     string `json:"settle_date"`
	ExpirationTime string `json:"expiration_time"`

	// Provider is the tag found in the raw record. Normalization always
	// overrides it with the normalizing provider.
	Provider string           `json:"provider"`
	Outcomes []schema.Outcome `json:"outcomes"`

	TotalVolume *float64 `json:"total_volume"`
	Volume      *float64 `json:"volume"`
	Liquidity   *float64 `json:"liquidity"`

	// Source is carried through to schema.Market.Source.
	Source any `json:"-"`
}

type Normalizer struct {
	provider schema.Provider
	now      func() time.Time
	log      *slog.Logger
}

func New(provider schema.Provider, now func() time.Time, log *slog.Logger) *Normalizer {
	if now == nil {
		now = time.Now
	}
	return &Normalizer{
		provider: provider,
		now:      now,
		log:      log.With("component", "normalize", "provider", string(provider)),
	}
}

func (n *Normalizer) Markets(raws []RawMarket) []schema.Market {
	out := make([]schema.Market, 0, len(raws))
	for _, raw := range raws {
		out = append(out, n.Market(raw))
	}
	return out
}

func (n *Normalizer) Market(raw RawMarket) schema.Market {
	m := schema.Market{
		ID:          firstNonEmpty(raw.ID, raw.Ticker, raw.ConditionID),
		Title:       firstNonEmpty(raw.Title, raw.Question),
		Description: firstNonEmpty(raw.Description, raw.RulesPrimary),
		Provider:    n.provider,
		Status:      status(raw),
		Category:    raw.Category,
		Outcomes:    raw.Outcomes,
		TotalVolume: firstFloat(raw.TotalVolume, raw.Volume),
		Liquidity:   firstFloat(raw.Liquidity),
		Source:      raw.Source,
	}
	if m.Category == "" && len(raw.Tags) > 0 {
		m.Category = raw.Tags[0]
	}
	if m.Outcomes == nil {
		m.Outcomes = []schema.Outcome{}
	}

	if t := n.timestamp(m.ID, "created_at", raw.CreatedAt, raw.CreatedTime); t != nil {
		m.CreatedAt = *t
	} else {
		m.CreatedAt = n.now().UTC()
	}
	m.CloseDate = n.timestamp(m.ID, "close_date", raw.CloseDate, raw.EndDate, raw.CloseTime)
	m.SettleDate = n.timestamp(m.ID, "settle_date", raw.SettleDate, raw.ExpirationTime)

	return m
}

// timestamp parses the first non-empty candidate. An unparseable value is
// logged and treated as absent.
func (n *Normalizer) timestamp(marketID, field string, candidates ...string) *time.Time {
	s := firstNonEmpty(candidates...)
	if s == "" {
		return nil
	}
	t, err := schema.ParseTime(s)
	if err != nil {
		n.log.Warn("invalid timestamp", "market_id", marketID, "field", field, "value", s)
		return nil
	}
	return &t
}

// CanonicalStatus folds provider status vocabularies onto active, closed and settled.
func CanonicalStatus(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "open", "initialized", "active":
		return schema.StatusActive
	case "closed", "inactive", "paused":
		return schema.StatusClosed
	case "settled", "finalized", "determined", "resolved":
		return schema.StatusSettled
	}
	return s
}

func status(raw RawMarket) string {
	if raw.Status != "" {
		return CanonicalStatus(raw.Status)
	}
	if raw.Closed != nil && *raw.Closed {
		return schema.StatusClosed
	}
	if raw.Active != nil && !*raw.Active {
		return schema.StatusClosed
	}
	return schema.StatusActive
}

// CentsToProbability converts a Kalshi cent price (0-100) to a 0-1 probability.
func CentsToProbability(cents int) float64 {
	return decimal.New(int64(cents), -2).InexactFloat64()
}

// Complement returns 1-p, rounded to the provider's price precision.
func Complement(p float64) float64 {
	return decimal.NewFromInt(1).Sub(decimal.NewFromFloat(p)).Round(6).InexactFloat64()
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func firstFloat(vals ...*float64) float64 {
	for _, v := range vals {
		if v != nil {
			return *v
		}
	}
	return 0
}
