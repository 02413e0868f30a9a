// Package rates fetches daily exchange rates for the home currency and
// caches them, falling back to a fixed table when the provider is down.
package rates

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"

	"jangbu/internal/core"
)

const ratesCacheKey = "daily_rates"

// fallbackRates is served whenever fetching or parsing fails. Values are
// home minor units per one unit of the foreign currency, KRW home.
var fallbackRates = core.CurrencyTable{
	"KRW": 1,
	"USD": 1350,
	"EUR": 1450,
	"JPY": 9.2,
	"GBP": 1700,
	"CNY": 190,
}

// Provider fetches and caches the daily rate table.
type Provider struct {
	url          string
	homeCurrency string
	httpClient   *http.Client
	cache        *cache.Cache
}

// NewProvider creates a rate provider. url is an exchangerate-style
// endpoint returning {"base": home, "rates": {code: quote}} where quote is
// units of code per one home unit.
func NewProvider(url, homeCurrency string, ttl time.Duration) *Provider {
	return &Provider{
		url:          url,
		homeCurrency: strings.ToUpper(homeCurrency),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		cache: cache.New(ttl, ttl),
	}
}

// Table returns the current rate table, home units per one foreign unit.
// The result is a copy; callers may not observe later refreshes through it.
func (p *Provider) Table(ctx context.Context) core.CurrencyTable {
	if cached, found := p.cache.Get(ratesCacheKey); found {
		return copyTable(cached.(core.CurrencyTable))
	}

	table, err := p.fetch(ctx)
	if err != nil {
		slog.WarnContext(ctx, "Rate fetch failed, using fallback table", "error", err)
		return copyTable(fallbackRates)
	}

	p.cache.Set(ratesCacheKey, table, cache.DefaultExpiration)
	slog.InfoContext(ctx, "Refreshed exchange rates", "currencies", len(table))
	return copyTable(table)
}

// Fallback returns the fixed fallback table.
func Fallback() core.CurrencyTable {
	return copyTable(fallbackRates)
}

func (p *Provider) fetch(ctx context.Context) (core.CurrencyTable, error) {
	if p.url == "" {
		return nil, fmt.Errorf("rate URL not configured")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch rates: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("rate provider returned %d: %s", resp.StatusCode, string(body))
	}

	var payload struct {
		Base  string             `json:"base"`
		Rates map[string]float64 `json:"rates"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode rates: %w", err)
	}
	if strings.ToUpper(payload.Base) != p.homeCurrency {
		return nil, fmt.Errorf("unexpected base currency %q, want %s", payload.Base, p.homeCurrency)
	}
	if len(payload.Rates) == 0 {
		return nil, fmt.Errorf("empty rate table")
	}

	// The provider quotes foreign units per home unit; the pipeline wants
	// home units per foreign unit, so invert.
	table := core.CurrencyTable{p.homeCurrency: 1}
	for code, quote := range payload.Rates {
		if quote <= 0 {
			continue
		}
		table[strings.ToUpper(code)] = 1 / quote
	}

	return table, nil
}

func copyTable(t core.CurrencyTable) core.CurrencyTable {
	out := make(core.CurrencyTable, len(t))
	for k, v := range t {
		out[k] = v
	}
	return out
}
