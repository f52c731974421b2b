// Package meta is the Meta Marketing (Graph) API adapter. It implements the
// ad.Platform interface consumed by the monitor service.
package meta

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"ad_kill_switch/internal/domain/ad"

	"github.com/sirupsen/logrus"
)

const (
	defaultBaseURL    = "https://graph.facebook.com"
	defaultAPIVersion = "v21.0"

	defaultTimeout     = 15 * time.Second
	defaultReadRetries = 2
	defaultRetryDelay  = 2 * time.Second

	adsPageLimit = 100
)

// Config configures the Graph API client.
type Config struct {
	AccessToken string
	AdAccountID string // with or without the act_ prefix
	APIVersion  string
	BaseURL     string // overridable for tests
	Timeout     time.Duration
	ReadRetries int           // bounded retries, idempotent reads only
	RetryDelay  time.Duration // linear backoff between read retries
}

// APIError is a structured error returned by the Graph API.
type APIError struct {
	HTTPStatus int
	Code       int    `json:"code"`
	Subcode    int    `json:"error_subcode"`
	Type       string `json:"type"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("graph api error (http %d, code %d): %s", e.HTTPStatus, e.Code, e.Message)
}

// Client talks to the Graph API over HTTP. Writes are never retried; reads
// are retried a bounded number of times on transport errors and 5xx.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	apiVersion  string
	accessToken string
	accountID   string
	readRetries int
	retryDelay  time.Duration
	log         *logrus.Logger
}

func NewClient(cfg Config, log *logrus.Logger) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	apiVersion := cfg.APIVersion
	if apiVersion == "" {
		apiVersion = defaultAPIVersion
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	retries := cfg.ReadRetries
	if retries <= 0 {
		retries = defaultReadRetries
	}
	delay := cfg.RetryDelay
	if delay <= 0 {
		delay = defaultRetryDelay
	}
	accountID := cfg.AdAccountID
	if !strings.HasPrefix(accountID, "act_") {
		accountID = "act_" + accountID
	}

	return &Client{
		httpClient:  &http.Client{Timeout: timeout},
		baseURL:     strings.TrimRight(baseURL, "/"),
		apiVersion:  apiVersion,
		accessToken: cfg.AccessToken,
		accountID:   accountID,
		readRetries: retries,
		retryDelay:  delay,
		log:         log,
	}
}

// --- read side ---

type adRow struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	AdsetID         string `json:"adset_id"`
	CampaignID      string `json:"campaign_id"`
	Status          string `json:"status"`
	EffectiveStatus string `json:"effective_status"`
}

type adsPage struct {
	Data   []adRow `json:"data"`
	Paging struct {
		Next string `json:"next"`
	} `json:"paging"`
}

// ListActiveAds fetches every ad in the account whose effective status is
// ACTIVE, following pagination.
func (c *Client) ListActiveAds(ctx context.Context) ([]*ad.Ad, error) {
	params := url.Values{}
	params.Set("fields", "id,name,adset_id,campaign_id,status,effective_status")
	params.Set("effective_status", `["ACTIVE"]`)
	params.Set("limit", strconv.Itoa(adsPageLimit))

	next := c.objectURL(c.accountID+"/ads", params)
	var ads []*ad.Ad
	for next != "" {
		var page adsPage
		if err := c.getJSON(ctx, next, &page); err != nil {
			return nil, fmt.Errorf("listing active ads: %w", err)
		}
		for _, row := range page.Data {
			ads = append(ads, &ad.Ad{
				ID:              row.ID,
				Name:            row.Name,
				AdSetID:         row.AdsetID,
				CampaignID:      row.CampaignID,
				Status:          ad.Status(row.Status),
				EffectiveStatus: ad.Status(row.EffectiveStatus),
			})
		}
		next = page.Paging.Next
	}
	return ads, nil
}

type actionEntry struct {
	ActionType string `json:"action_type"`
	Value      string `json:"value"`
}

type insightRow struct {
	Impressions  string        `json:"impressions"`
	Clicks       string        `json:"clicks"`
	Spend        string        `json:"spend"`
	CTR          string        `json:"ctr"`
	CPC          string        `json:"cpc"`
	Actions      []actionEntry `json:"actions"`
	ActionValues []actionEntry `json:"action_values"`
}

type insightsResponse struct {
	Data []insightRow `json:"data"`
}

// conversionActionTypes are the purchase-like action types counted as
// conversions; revenueActionTypes are the ones whose values sum to revenue.
var conversionActionTypes = map[string]bool{
	"purchase":              true,
	"lead":                  true,
	"complete_registration": true,
	"omni_purchase":         true,
}

var revenueActionTypes = map[string]bool{
	"purchase":      true,
	"omni_purchase": true,
}

// GetInsights returns a performance snapshot for one ad over the chosen
// window, or ad.ErrMetricsUnavailable when the platform has no data rows.
// CTR and CPC are passed through exactly as reported.
func (c *Client) GetInsights(ctx context.Context, adID string, window ad.Window) (*ad.PerformanceSnapshot, error) {
	params := url.Values{}
	params.Set("fields", "impressions,clicks,spend,ctr,cpc,actions,action_values")

	switch window {
	case ad.WindowTrailing7Days:
		until := time.Now()
		since := until.AddDate(0, 0, -7)
		timeRange := fmt.Sprintf(`{"since":"%s","until":"%s"}`,
			since.Format("2006-01-02"), until.Format("2006-01-02"))
		params.Set("time_range", timeRange)
	default:
		params.Set("date_preset", "today")
	}

	var resp insightsResponse
	if err := c.getJSON(ctx, c.objectURL(adID+"/insights", params), &resp); err != nil {
		return nil, fmt.Errorf("fetching insights for ad %s: %w", adID, err)
	}
	if len(resp.Data) == 0 {
		return nil, ad.ErrMetricsUnavailable
	}
	row := resp.Data[0]

	snap := &ad.PerformanceSnapshot{
		Impressions: parseCount(row.Impressions),
		Clicks:      parseCount(row.Clicks),
		Spend:       parseAmount(row.Spend),
		CTR:         parseAmount(row.CTR),
		CPC:         parseAmount(row.CPC),
	}
	for _, a := range row.Actions {
		if conversionActionTypes[a.ActionType] {
			snap.Conversions += parseCount(a.Value)
		}
	}
	for _, av := range row.ActionValues {
		if revenueActionTypes[av.ActionType] {
			snap.Revenue += parseAmount(av.Value)
		}
	}
	if snap.Spend > 0 {
		snap.ROAS = snap.Revenue / snap.Spend
	}
	return snap, nil
}

type adSetRow struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	DailyBudget    string `json:"daily_budget"`
	LifetimeBudget string `json:"lifetime_budget"`
}

// GetBudgetGroup reads the ad set's budget fields.
func (c *Client) GetBudgetGroup(ctx context.Context, adSetID string) (*ad.BudgetGroup, error) {
	params := url.Values{}
	params.Set("fields", "id,name,daily_budget,lifetime_budget")

	var row adSetRow
	if err := c.getJSON(ctx, c.objectURL(adSetID, params), &row); err != nil {
		return nil, fmt.Errorf("fetching ad set %s: %w", adSetID, err)
	}
	return &ad.BudgetGroup{
		ID:             row.ID,
		Name:           row.Name,
		DailyBudget:    parseCount(row.DailyBudget),
		LifetimeBudget: parseCount(row.LifetimeBudget),
	}, nil
}

// --- write side ---

// SetAdStatus updates the ad's status. Not retried: status writes are not
// idempotent against an unknown current state.
func (c *Client) SetAdStatus(ctx context.Context, adID string, status ad.Status) error {
	params := url.Values{}
	params.Set("status", string(status))
	if err := c.postForm(ctx, adID, params); err != nil {
		return fmt.Errorf("setting status of ad %s: %w", adID, err)
	}
	return nil
}

// SetBudget writes a new amount to the given budget field of the ad set.
// Never retried for the same reason as SetAdStatus.
func (c *Client) SetBudget(ctx context.Context, adSetID string, field ad.BudgetField, amount int64) error {
	params := url.Values{}
	params.Set(string(field), strconv.FormatInt(amount, 10))
	if err := c.postForm(ctx, adSetID, params); err != nil {
		return fmt.Errorf("setting %s of ad set %s: %w", field, adSetID, err)
	}
	return nil
}

// --- transport ---

func (c *Client) objectURL(path string, params url.Values) string {
	return fmt.Sprintf("%s/%s/%s?%s", c.baseURL, c.apiVersion, path, params.Encode())
}

// getJSON performs a GET with bounded retry. Only transport failures and
// 5xx responses are retried; Graph business errors (4xx) are final.
func (c *Client) getJSON(ctx context.Context, rawURL string, out interface{}) error {
	var lastErr error
	for attempt := 0; attempt <= c.readRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * c.retryDelay):
			}
			c.log.Warnf("retrying graph read (attempt %d/%d): %v", attempt, c.readRetries, lastErr)
		}

		err := c.do(ctx, http.MethodGet, rawURL, "", out)
		if err == nil {
			return nil
		}
		lastErr = err
		if !retryable(err) {
			return err
		}
	}
	return lastErr
}

func (c *Client) postForm(ctx context.Context, path string, params url.Values) error {
	rawURL := fmt.Sprintf("%s/%s/%s", c.baseURL, c.apiVersion, path)
	return c.do(ctx, http.MethodPost, rawURL, params.Encode(), nil)
}

func (c *Client) do(ctx context.Context, method, rawURL, form string, out interface{}) error {
	var body io.Reader
	if form != "" {
		body = strings.NewReader(form + "&access_token=" + url.QueryEscape(c.accessToken))
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return fmt.Errorf("building graph request: %w", err)
	}
	if method == http.MethodGet {
		q := req.URL.Query()
		q.Set("access_token", c.accessToken)
		req.URL.RawQuery = q.Encode()
	} else {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("graph request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading graph response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{HTTPStatus: resp.StatusCode}
		var wrapper struct {
			Error *APIError `json:"error"`
		}
		if jsonErr := json.Unmarshal(raw, &wrapper); jsonErr == nil && wrapper.Error != nil {
			apiErr.Code = wrapper.Error.Code
			apiErr.Subcode = wrapper.Error.Subcode
			apiErr.Type = wrapper.Error.Type
			apiErr.Message = wrapper.Error.Message
		} else {
			apiErr.Message = strings.TrimSpace(string(raw))
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decoding graph response: %w", err)
	}
	return nil
}

func retryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatus >= 500
	}
	// Transport-level failure (timeout, connection reset).
	return true
}

// parseCount parses integer counters the Graph API delivers as strings.
// Missing or blank values are zero.
func parseCount(s string) int64 {
	if s == "" {
		return 0
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return v
}

// parseAmount parses currency/ratio values delivered as strings.
func parseAmount(s string) float64 {
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}
