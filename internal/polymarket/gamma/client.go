// Package gamma consume Polymarket gamma endpoints.
package gamma

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/daszybak/omniverse_markets/pkg/httpclient"
)

const DefaultBaseURL = "https://gamma-api.polymarket.com"

// pageSize is the largest page gamma serves.
const pageSize = 500

type Client struct {
	http *httpclient.Client
}

func New(baseURL string, opts ...httpclient.Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{http: httpclient.New(baseURL, opts...)}
}

// StringList handles the double-encoded JSON arrays from the API, such as
// "[\"Yes\", \"No\"]". A plain array is accepted too.
type StringList []string

func (l *StringList) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return json.Unmarshal(data, (*[]string)(l))
	}
	if s == "" {
		*l = nil
		return nil
	}
	return json.Unmarshal([]byte(s), (*[]string)(l))
}

type Tag struct {
	Label string `json:"label"`
	Slug  string `json:"slug"`
}

type Market struct {
	ID            string     `json:"id"`
	ConditionID   string     `json:"conditionId"`
	Question      string     `json:"question"`
	Description   string     `json:"description"`
	Slug          string     `json:"slug"`
	Category      string     `json:"category"`
	Tags          []Tag      `json:"tags"`
	Outcomes      StringList `json:"outcomes"`
	OutcomePrices StringList `json:"outcomePrices"`
	ClobTokenIDs  StringList `json:"clobTokenIds"`
	VolumeNum     *float64   `json:"volumeNum"`
	LiquidityNum  *float64   `json:"liquidityNum"`
	Active        *bool      `json:"active"`
	Closed        *bool      `json:"closed"`
	CreatedAt     string     `json:"createdAt"`
	EndDate       string     `json:"endDate"`
	UMAEndDate    string     `json:"umaEndDate"`
}

func (c *Client) GetMarketsPage(ctx context.Context, offset, limit int, closed bool) ([]*Market, error) {
	q := url.Values{
		"offset": {strconv.Itoa(offset)},
		"limit":  {strconv.Itoa(limit)},
		"closed": {strconv.FormatBool(closed)},
	}
	markets, err := httpclient.GetResource[[]*Market](ctx, c.http, "/markets", q, []int{http.StatusOK})
	if err != nil {
		return nil, fmt.Errorf("couldn't get markets at offset %d: %w", offset, err)
	}
	return markets, nil
}

// GetMarkets pages through open markets until a short page. Markets fetched
// before a failing page are returned alongside the error.
func (c *Client) GetMarkets(ctx context.Context) ([]*Market, error) {
	markets := []*Market{}
	for offset := 0; ; offset += pageSize {
		page, err := c.GetMarketsPage(ctx, offset, pageSize, false)
		if err != nil {
			return markets, err
		}
		markets = append(markets, page...)
		if len(page) < pageSize {
			return markets, nil
		}
	}
}

func (c *Client) GetMarket(ctx context.Context, id string) (*Market, error) {
	market, err := httpclient.GetResource[*Market](ctx, c.http, "/markets/"+url.PathEscape(id), nil, []int{http.StatusOK})
	if err != nil {
		return nil, fmt.Errorf("couldn't get market %s: %w", id, err)
	}
	return market, nil
}
