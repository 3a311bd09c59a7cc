package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/mwadsworth/palaver/internal/httpkit"
)

// Default endpoints for the web-backed builtins. Tests point these at local
// servers.
const (
	defaultCoinGeckoURL   = "https://api.coingecko.com/api/v3/simple/price"
	defaultWikiAPIURL     = "https://en.wikipedia.org/w/api.php"
	defaultWikiSummaryURL = "https://en.wikipedia.org/api/rest_v1/page/summary/"
)

// getJSON issues a GET and decodes the JSON body into out.
func (r *Registry) getJSON(ctx context.Context, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer httpkit.DrainAndClose(resp.Body, 1<<20)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (r *Registry) handleCoinPrice(ctx context.Context, args map[string]any) (string, error) {
	coin, err := stringArg(args, "coin")
	if err != nil {
		return "", err
	}
	coin = strings.ToLower(strings.TrimSpace(coin))

	query := url.Values{}
	query.Set("ids", coin)
	query.Set("vs_currencies", "usd")

	// CoinGecko answers 200 with an empty object for unknown coins.
	var prices map[string]struct {
		USD float64 `json:"usd"`
	}
	if err := r.getJSON(ctx, r.coinGeckoURL+"?"+query.Encode(), &prices); err != nil {
		return "", fmt.Errorf("coingecko: %w", err)
	}
	price, ok := prices[coin]
	if !ok {
		return "", fmt.Errorf("no such coin %q", coin)
	}

	data, err := json.Marshal(map[string]any{coin: map[string]any{"usd": price.USD}})
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (r *Registry) handleWikipediaSearch(ctx context.Context, args map[string]any) (string, error) {
	queryText, err := stringArg(args, "query")
	if err != nil {
		return "", err
	}

	query := url.Values{}
	query.Set("action", "opensearch")
	query.Set("search", queryText)
	query.Set("limit", "10")
	query.Set("format", "json")

	// opensearch responds with [query, titles, descriptions, urls].
	var raw []json.RawMessage
	if err := r.getJSON(ctx, r.wikiAPIURL+"?"+query.Encode(), &raw); err != nil {
		return "", fmt.Errorf("wikipedia search: %w", err)
	}
	if len(raw) < 2 {
		return "", fmt.Errorf("wikipedia search: malformed response")
	}
	var titles []string
	if err := json.Unmarshal(raw[1], &titles); err != nil {
		return "", fmt.Errorf("wikipedia search: %w", err)
	}
	if len(titles) == 0 {
		return "", fmt.Errorf("no results for %q", queryText)
	}
	return strings.Join(titles, ", "), nil
}

func (r *Registry) handleWikipediaSummary(ctx context.Context, args map[string]any) (string, error) {
	queryText, err := stringArg(args, "query")
	if err != nil {
		return "", err
	}

	var page struct {
		Extract string `json:"extract"`
	}
	target := r.wikiSummaryURL + url.PathEscape(queryText)
	if err := r.getJSON(ctx, target, &page); err != nil {
		return "", fmt.Errorf("wikipedia summary: %w", err)
	}
	if page.Extract == "" {
		return "", fmt.Errorf("no summary for %q", queryText)
	}
	return page.Extract, nil
}
