// Package wiki fetches encyclopedia articles from a MediaWiki API.
package wiki

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cloo-solutions/tutorai/internal/domain"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	// DefaultAPIURL is the Spanish Wikipedia API endpoint
	DefaultAPIURL = "https://es.wikipedia.org/w/api.php"

	defaultRequestsPerSecond = 2.0
	defaultBurst             = 1
	userAgent                = "tutorai/1.0 (history tutor enrichment)"
)

// Config configures a Client. Zero values fall back to the Spanish Wikipedia
// endpoint, two requests per second and three attempts with LinearBackoff.
type Config struct {
	APIURL            string
	RequestsPerSecond float64
	Attempts          int
	Backoff           Backoff
	HTTPClient        *http.Client
	Logger            *zap.Logger
}

// Client talks to the MediaWiki search and extracts APIs. Every request
// waits on a token bucket and is retried with linear backoff.
type Client struct {
	apiURL     string
	httpClient *http.Client
	limiter    *rate.Limiter
	attempts   int
	backoff    Backoff
	logger     *zap.Logger
}

// NewClient creates a Client from cfg, filling in defaults.
func NewClient(cfg Config) *Client {
	if cfg.APIURL == "" {
		cfg.APIURL = DefaultAPIURL
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = defaultRequestsPerSecond
	}
	if cfg.Attempts <= 0 {
		cfg.Attempts = defaultAttempts
	}
	if cfg.Backoff == nil {
		cfg.Backoff = LinearBackoff
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return &Client{
		apiURL:     cfg.APIURL,
		httpClient: cfg.HTTPClient,
		limiter:    rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), defaultBurst),
		attempts:   cfg.Attempts,
		backoff:    cfg.Backoff,
		logger:     cfg.Logger,
	}
}

type searchResponse struct {
	Query struct {
		Search []struct {
			Title string `json:"title"`
		} `json:"search"`
	} `json:"query"`
}

type extractResponse struct {
	Query struct {
		Pages map[string]struct {
			Title   string  `json:"title"`
			Extract string  `json:"extract"`
			Missing *string `json:"missing"`
		} `json:"pages"`
	} `json:"query"`
}

// Search returns the title of the best matching article, or "" when there is none.
func (c *Client) Search(ctx context.Context, query string) (string, error) {
	params := url.Values{
		"action":   {"query"},
		"list":     {"search"},
		"srsearch": {query},
		"srlimit":  {"1"},
		"format":   {"json"},
		"utf8":     {"1"},
	}

	var resp searchResponse
	if err := c.get(ctx, params, &resp); err != nil {
		return "", fmt.Errorf("failed to search %q: %w", query, err)
	}
	if len(resp.Query.Search) == 0 {
		return "", nil
	}
	return resp.Query.Search[0].Title, nil
}

// Fetch returns the plaintext extract of the article, or "" when it is missing.
func (c *Client) Fetch(ctx context.Context, title string) (string, error) {
	params := url.Values{
		"action":      {"query"},
		"prop":        {"extracts"},
		"explaintext": {"1"},
		"titles":      {title},
		"format":      {"json"},
		"utf8":        {"1"},
	}

	var resp extractResponse
	if err := c.get(ctx, params, &resp); err != nil {
		return "", fmt.Errorf("failed to fetch %q: %w", title, err)
	}
	for _, page := range resp.Query.Pages {
		if page.Missing != nil {
			continue
		}
		return page.Extract, nil
	}
	return "", nil
}

// FetchDocument searches for query and returns the article split into
// sections. It returns (nil, nil) when nothing matches or the article is
// empty, and an error wrapping domain.ErrFetchUnavailable once retries run out.
func (c *Client) FetchDocument(ctx context.Context, query string) (*domain.Document, error) {
	title, err := c.Search(ctx, query)
	if err != nil {
		return nil, domain.Wrap(domain.ErrFetchUnavailable, err)
	}
	if title == "" {
		c.logger.Info("no article found", zap.String("query", query))
		return nil, nil
	}

	extract, err := c.Fetch(ctx, title)
	if err != nil {
		return nil, domain.Wrap(domain.ErrFetchUnavailable, err)
	}
	if strings.TrimSpace(extract) == "" {
		c.logger.Info("article is empty", zap.String("query", query), zap.String("title", title))
		return nil, nil
	}

	doc := &domain.Document{Title: title, Sections: ParseSections(extract)}
	c.logger.Info("article fetched",
		zap.String("query", query),
		zap.String("title", title),
		zap.Int("sections", len(doc.Sections)))
	return doc, nil
}

func (c *Client) get(ctx context.Context, params url.Values, out any) error {
	target := c.apiURL + "?" + params.Encode()

	return retry(ctx, c.attempts, c.backoff, func(ctx context.Context) error {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return permanent(fmt.Errorf("failed to create request: %w", err))
		}
		req.Header.Set("User-Agent", userAgent)
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			c.logger.Warn("wiki request failed", zap.Error(err))
			return fmt.Errorf("request failed: %w", err)
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			c.logger.Warn("wiki request failed", zap.Int("status", resp.StatusCode))
			return fmt.Errorf("unexpected status %d", resp.StatusCode)
		case resp.StatusCode != http.StatusOK:
			return permanent(fmt.Errorf("unexpected status %d", resp.StatusCode))
		}

		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
		return nil
	})
}
