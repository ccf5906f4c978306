package v1

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	dataEndpoint         = "rest-1.v1/Data"
	localizationEndpoint = "loc-2.v1"
	searchCollection     = "BaseAsset"

	// Lookup fields recognized by LookupByField.
	FieldNumber = "Number"
	FieldID     = "ID"

	selFields = "AssetType,Name,AssetState,Number"
)

// Record is the canonical shape of a resolved asset, flattened from the
// remote system's attribute envelope.
type Record struct {
	ID        string
	Number    string
	Title     string
	AssetType string
	State     int
}

// SearchRequest describes a free-text multi-type search.
type SearchRequest struct {
	Query        string
	PageSize     int
	OpenOnly     bool
	ClosedOnly   bool
	NumberFields []string
}

// Client talks to the work-tracking REST API with a static bearer token.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewClient(baseURL, token string, logger *slog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		token:   strings.TrimSpace(token),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
	}
}

// BaseURL returns the configured remote base URL, used to build asset links.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// LookupByField fetches the first asset of the given type whose field equals
// value, including soft-deleted assets. Returns nil without error when
// nothing matches.
func (c *Client) LookupByField(ctx context.Context, assetType, field, value string) (*Record, error) {
	query := url.Values{}
	query.Set("sel", selFields)
	query.Set("where", fmt.Sprintf("%s='%s'", field, escapeFilterValue(value)))
	query.Set("deleted", "true")

	endpoint := fmt.Sprintf("%s/%s/%s?%s", c.baseURL, dataEndpoint, url.PathEscape(assetType), query.Encode())
	var payload assetsResponse
	if err := c.get(ctx, endpoint, &payload); err != nil {
		return nil, fmt.Errorf("lookup %s by %s: %w", assetType, field, err)
	}
	if len(payload.Assets) == 0 {
		return nil, nil
	}
	record := payload.Assets[0].record()
	return &record, nil
}

// Search runs a free-text search across all asset types. Returns the page of
// matches and the total match count reported by the remote system.
func (c *Client) Search(ctx context.Context, req SearchRequest) ([]Record, int, error) {
	pageSize := req.PageSize
	if pageSize < 1 {
		pageSize = 10
	}

	findin := append([]string{}, req.NumberFields...)
	findin = append(findin, "Name")

	query := url.Values{}
	query.Set("sel", selFields)
	query.Set("findin", strings.Join(findin, ","))
	query.Set("find", req.Query)
	query.Set("page", fmt.Sprintf("%d,0", pageSize))
	query.Set("sort", "-ChangeDate")
	query.Set("deleted", "true")
	switch {
	case req.OpenOnly:
		query.Set("where", "AssetState<'128'")
	case req.ClosedOnly:
		query.Set("where", "AssetState>='128'")
	}

	endpoint := fmt.Sprintf("%s/%s/%s?%s", c.baseURL, dataEndpoint, searchCollection, query.Encode())
	var payload assetsResponse
	if err := c.get(ctx, endpoint, &payload); err != nil {
		return nil, 0, fmt.Errorf("search: %w", err)
	}
	records := make([]Record, 0, len(payload.Assets))
	for _, asset := range payload.Assets {
		records = append(records, asset.record())
	}
	return records, payload.Total, nil
}

// Localizations fetches display names for a batch of asset type tokens.
func (c *Client) Localizations(ctx context.Context, tokens []string) (map[string]string, error) {
	batch, err := json.Marshal(tokens)
	if err != nil {
		return nil, fmt.Errorf("encode localization batch: %w", err)
	}
	endpoint := fmt.Sprintf("%s/%s?%s", c.baseURL, localizationEndpoint, url.QueryEscape(string(batch)))
	names := make(map[string]string)
	if err := c.get(ctx, endpoint, &names); err != nil {
		return nil, fmt.Errorf("%s: %w", localizationEndpoint, err)
	}
	return names, nil
}

func (c *Client) get(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", "slaug")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	res, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return fmt.Errorf("remote returned status %d", res.StatusCode)
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// escapeFilterValue doubles single quotes so a value cannot terminate the
// filter expression early.
func escapeFilterValue(value string) string {
	return strings.ReplaceAll(value, "'", "''")
}
