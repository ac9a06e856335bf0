// Package eumetsat is a minimal EUMETSAT Data Store client: OAuth2
// client-credentials token handling, OpenSearch product discovery, and
// product archive download.
package eumetsat

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fbattini/meteosat-europe-bot/internal/domain"
)

const (
	defaultTokenURL  = "https://api.eumetsat.int/token"
	defaultSearchURL = "https://api.eumetsat.int/data/search-products/os"
	defaultDataURL   = "https://api.eumetsat.int/data/download/1.0.0"

	// searchPageSize bounds one search response. A full day of SEVIRI full
	// disc scans is 96 products, so one page always suffices.
	searchPageSize = 500

	// tokenSlack renews the access token this long before its expiry.
	tokenSlack = time.Minute
)

// Client talks to the EUMETSAT Data Store for one collection.
type Client struct {
	key        string
	secret     string
	collection string
	httpClient *http.Client
	logger     *slog.Logger

	tokenURL  string
	searchURL string
	dataURL   string

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

// NewClient creates a Data Store client for the given collection.
func NewClient(key, secret, collection string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		key:        key,
		secret:     secret,
		collection: collection,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger:    logger,
		tokenURL:  defaultTokenURL,
		searchURL: defaultSearchURL,
		dataURL:   defaultDataURL,
	}
}

// Search queries the catalog for products in the window, sorted by sensing
// start time ascending. An empty result is not an error.
func (c *Client) Search(ctx context.Context, window domain.SearchWindow) ([]domain.ProductRef, error) {
	token, err := c.token(ctx)
	if err != nil {
		return nil, err
	}

	params := url.Values{
		"format":  {"json"},
		"pi":      {c.collection},
		"dtstart": {window.Start.UTC().Format(time.RFC3339)},
		"dtend":   {window.End.UTC().Format(time.RFC3339)},
		"bbox":    {window.BBox.String()},
		"sort":    {"start,time,1"},
		"c":       {fmt.Sprint(searchPageSize)},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.searchURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create search request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("data store search: status %d: %s", resp.StatusCode, body)
	}

	var sr searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	products := make([]domain.ProductRef, 0, len(sr.Features))
	for _, f := range sr.Features {
		products = append(products, domain.ProductRef{
			ID:         f.Properties.Identifier,
			Collection: c.collection,
			SensedAt:   parseSensingStart(f.Properties.Date),
			SizeBytes:  f.Properties.ProductInformation.Size,
			Quality:    f.Properties.ProductInformation.Quality,
		})
	}
	return products, nil
}

// Download streams the product archive to destPath.
func (c *Client) Download(ctx context.Context, product domain.ProductRef, destPath string) error {
	token, err := c.token(ctx)
	if err != nil {
		return err
	}

	u := fmt.Sprintf("%s/collections/%s/products/%s",
		c.dataURL, url.PathEscape(product.Collection), url.PathEscape(product.ID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("create download request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("download %s: %w", product.ID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("download %s: status %d: %s", product.ID, resp.StatusCode, body)
	}

	f, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("create archive file: %w", err)
	}
	n, err := io.Copy(f, resp.Body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("write archive %s: %w", product.ID, err)
	}

	c.logger.Debug("downloaded product archive", "product", product.ID, "bytes", n)
	return nil
}

// token returns a valid access token, fetching a fresh one when the cached
// token is missing or about to expire.
func (c *Client) token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != "" && time.Now().Before(c.tokenExpiry.Add(-tokenSlack)) {
		return c.accessToken, nil
	}

	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("create token request: %w", err)
	}
	req.SetBasicAuth(c.key, c.secret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", fmt.Errorf("data store auth: status %d: %s", resp.StatusCode, body)
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}
	if tr.AccessToken == "" {
		return "", fmt.Errorf("data store auth: empty access token")
	}

	c.accessToken = tr.AccessToken
	c.tokenExpiry = time.Now().Add(time.Duration(tr.ExpiresIn) * time.Second)
	return c.accessToken, nil
}

// parseSensingStart extracts the start of an ISO "start/end" interval.
// A zero time is returned when the field is absent or malformed.
func parseSensingStart(interval string) time.Time {
	start, _, _ := strings.Cut(interval, "/")
	t, err := time.Parse(time.RFC3339, start)
	if err != nil {
		return time.Time{}
	}
	return t
}

// Data Store API response types.

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

type searchResponse struct {
	Properties struct {
		TotalResults int `json:"totalResults"`
	} `json:"properties"`
	Features []searchFeature `json:"features"`
}

type searchFeature struct {
	Properties struct {
		Identifier         string `json:"identifier"`
		Date               string `json:"date"` // "start/end" ISO interval
		ProductInformation struct {
			Size    int64  `json:"size"`
			Quality string `json:"quality"`
		} `json:"productInformation"`
	} `json:"properties"`
}
