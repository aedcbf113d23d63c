// Package yahoo provides a stock quote source backed by the Yahoo Finance quote API.
package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/MrAsimZahid/zakat-calculator/internal/clientdata"
	"github.com/MrAsimZahid/zakat-calculator/internal/domain"
	"github.com/PaesslerAG/jsonpath"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// DefaultBaseURL is the public quote API host.
const DefaultBaseURL = "https://query1.finance.yahoo.com"

// DefaultRequestsPerSecond caps outbound quote requests.
const DefaultRequestsPerSecond = 5

const (
	resultsPath  = "$.quoteResponse.result[*]"
	symbolPath   = "$.symbol"
	pricePath    = "$.regularMarketPrice"
	currencyPath = "$.currency"
	timePath     = "$.regularMarketTime"
)

// Client quotes stocks and converts them to a target currency with FX pairs
// from the same API.
type Client struct {
	baseURL   string
	client    *http.Client
	limiter   *rate.Limiter
	cacheRepo *clientdata.Repository
	now       func() time.Time
	log       zerolog.Logger
}

// Config configures a Client.
type Config struct {
	BaseURL           string
	RequestsPerSecond float64
}

// NewClient creates a quote client. cacheRepo is optional.
func NewClient(cfg Config, cacheRepo *clientdata.Repository, log zerolog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = DefaultRequestsPerSecond
	}
	burst := int(math.Ceil(cfg.RequestsPerSecond))
	return &Client{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		client:    &http.Client{Timeout: 15 * time.Second},
		limiter:   rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst),
		cacheRepo: cacheRepo,
		now:       time.Now,
		log:       log.With().Str("client", "yahoo").Logger(),
	}
}

var (
	_ domain.PriceSource  = (*Client)(nil)
	_ domain.QuoteEvicter = (*Client)(nil)
)

// Evict drops the cached quote for symbol.
func (c *Client) Evict(symbol string) error {
	if c.cacheRepo == nil {
		return nil
	}
	return c.cacheRepo.Delete(clientdata.TableCurrentPrices, strings.ToUpper(strings.TrimSpace(symbol)))
}

// GetPrice returns the latest quote for symbol, converted to currency when one is given.
func (c *Client) GetPrice(ctx context.Context, symbol, currency string) (*domain.Price, error) {
	quotes, err := c.GetBatchPrices(ctx, []string{symbol}, currency)
	if err != nil {
		return nil, err
	}
	if len(quotes) == 0 {
		return nil, fmt.Errorf("no quote for %s", symbol)
	}
	q := quotes[0]
	return &domain.Price{Price: q.Price, Currency: q.Currency, LastUpdated: q.LastUpdated}, nil
}

// GetBatchPrices quotes symbols in their native currency and converts them to
// currency where an FX quote is available. Symbols without a quote are absent
// from the result. Entries whose conversion could not be made keep their
// native currency with ConversionApplied false.
func (c *Client) GetBatchPrices(ctx context.Context, symbols []string, currency string) ([]domain.BatchPrice, error) {
	native, err := c.nativeQuotes(ctx, symbols)
	if err != nil {
		return nil, err
	}

	target := strings.ToUpper(currency)
	if target == "" {
		return native, nil
	}

	rates := map[string]float64{}
	for i := range native {
		q := &native[i]
		if q.Currency == "" || q.Currency == target {
			continue
		}
		fx, ok := rates[q.Currency]
		if !ok {
			fx, err = c.fxRate(ctx, q.Currency, target)
			if err != nil {
				c.log.Warn().Err(err).Str("from", q.Currency).Str("to", target).Msg("FX quote unavailable")
				fx = 0
			}
			rates[q.Currency] = fx
		}
		if fx <= 0 {
			continue
		}
		q.SourceCurrency = q.Currency
		q.Currency = target
		q.Price *= fx
		q.ConversionApplied = true
	}
	return native, nil
}

// nativeQuotes serves fresh cached quotes and fetches the rest. When the fetch
// fails, stale cached quotes are used for the symbols that have one.
func (c *Client) nativeQuotes(ctx context.Context, symbols []string) ([]domain.BatchPrice, error) {
	out := make([]domain.BatchPrice, 0, len(symbols))
	var misses []string
	for _, s := range symbols {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" {
			continue
		}
		if q, ok := c.cached(s, true); ok {
			out = append(out, q)
			continue
		}
		misses = append(misses, s)
	}
	if len(misses) == 0 {
		return out, nil
	}

	fetched, err := c.fetchQuotes(ctx, misses)
	if err != nil {
		stale := 0
		for _, s := range misses {
			if q, ok := c.cached(s, false); ok {
				out = append(out, q)
				stale++
			}
		}
		if stale == 0 {
			return nil, err
		}
		c.log.Warn().Err(err).Int("stale", stale).Msg("Quote API failed, using stale cached quotes")
		return out, nil
	}

	for _, q := range fetched {
		if c.cacheRepo != nil {
			if err := c.cacheRepo.Store(clientdata.TableCurrentPrices, q.Symbol, q, clientdata.TTLCurrentPrice); err != nil {
				c.log.Warn().Err(err).Str("symbol", q.Symbol).Msg("Failed to cache quote")
			}
		}
		out = append(out, q)
	}
	return out, nil
}

func (c *Client) cached(symbol string, freshOnly bool) (domain.BatchPrice, bool) {
	if c.cacheRepo == nil {
		return domain.BatchPrice{}, false
	}
	var (
		data []byte
		err  error
	)
	if freshOnly {
		data, err = c.cacheRepo.GetIfFresh(clientdata.TableCurrentPrices, symbol)
	} else {
		data, err = c.cacheRepo.Get(clientdata.TableCurrentPrices, symbol)
	}
	if err != nil || data == nil {
		return domain.BatchPrice{}, false
	}
	var q domain.BatchPrice
	if err := json.Unmarshal(data, &q); err != nil {
		return domain.BatchPrice{}, false
	}
	return q, true
}

func (c *Client) fxRate(ctx context.Context, from, to string) (float64, error) {
	pair := from + to + "=X"
	quotes, err := c.fetchQuotes(ctx, []string{pair})
	if err != nil {
		return 0, err
	}
	for _, q := range quotes {
		if q.Symbol == pair && q.Price > 0 {
			return q.Price, nil
		}
	}
	return 0, fmt.Errorf("no FX quote for %s", pair)
}

func (c *Client) fetchQuotes(ctx context.Context, symbols []string) ([]domain.BatchPrice, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	addr := fmt.Sprintf("%s/v7/finance/quote?symbols=%s", c.baseURL, url.QueryEscape(strings.Join(symbols, ",")))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, addr, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	c.log.Debug().Strs("symbols", symbols).Msg("Fetching quotes")
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("quote request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("quote API returned status %d", resp.StatusCode)
	}

	var doc interface{}
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to parse quote response: %w", err)
	}
	return c.parseQuotes(doc)
}

func (c *Client) parseQuotes(doc interface{}) ([]domain.BatchPrice, error) {
	results, err := jsonpath.Get(resultsPath, doc)
	if err != nil {
		return nil, fmt.Errorf("unexpected quote response: %w", err)
	}
	items, _ := results.([]interface{})

	out := make([]domain.BatchPrice, 0, len(items))
	for _, item := range items {
		symbol, _ := get(symbolPath, item).(string)
		price, ok := get(pricePath, item).(float64)
		if symbol == "" || !ok || math.IsNaN(price) || math.IsInf(price, 0) || price < 0 {
			c.log.Debug().Str("symbol", symbol).Msg("Skipping quote without a usable price")
			continue
		}
		currency, _ := get(currencyPath, item).(string)
		price, currency = majorUnits(price, currency)

		updated := c.now().UTC()
		if ts, ok := get(timePath, item).(float64); ok && ts > 0 {
			updated = time.Unix(int64(ts), 0).UTC()
		}

		out = append(out, domain.BatchPrice{
			Symbol:      strings.ToUpper(symbol),
			Price:       price,
			Currency:    currency,
			LastUpdated: updated,
		})
	}
	return out, nil
}

// minorUnits maps quote currencies reported in subunits to their ISO code.
var minorUnits = map[string]string{
	"GBp": "GBP",
	"GBX": "GBP",
	"ZAc": "ZAR",
	"ZAC": "ZAR",
	"ILA": "ILS",
}

// majorUnits converts a subunit quote such as London pence to its major
// currency and upper-cases the code.
func majorUnits(price float64, currency string) (float64, string) {
	if code, ok := minorUnits[currency]; ok {
		return price / 100, code
	}
	return price, strings.ToUpper(currency)
}

// get returns the value at path, or nil when the path does not resolve.
func get(path string, v interface{}) interface{} {
	out, err := jsonpath.Get(path, v)
	if err != nil {
		return nil
	}
	return out
}
