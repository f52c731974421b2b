package meta

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"ad_kill_switch/internal/domain/ad"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func newTestClient(baseURL string) *Client {
	return NewClient(Config{
		AccessToken: "test-token",
		AdAccountID: "123",
		BaseURL:     baseURL,
		ReadRetries: 2,
		RetryDelay:  time.Millisecond,
	}, testLogger())
}

func TestListActiveAdsPaging(t *testing.T) {
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-token", r.URL.Query().Get("access_token"))

		if r.URL.Query().Get("page") == "2" {
			fmt.Fprint(w, `{"data":[{"id":"a3","name":"three","adset_id":"s3"}]}`)
			return
		}
		assert.Contains(t, r.URL.Path, "act_123/ads")
		assert.Equal(t, `["ACTIVE"]`, r.URL.Query().Get("effective_status"))
		fmt.Fprintf(w, `{
			"data":[
				{"id":"a1","name":"one","adset_id":"s1","campaign_id":"c1","status":"ACTIVE","effective_status":"ACTIVE"},
				{"id":"a2","name":"two","adset_id":"s2","campaign_id":"c1","status":"ACTIVE","effective_status":"ACTIVE"}
			],
			"paging":{"next":"%s/v21.0/act_123/ads?page=2"}
		}`, server.URL)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	ads, err := client.ListActiveAds(context.Background())
	require.NoError(t, err)

	require.Len(t, ads, 3)
	assert.Equal(t, "a1", ads[0].ID)
	assert.Equal(t, "s1", ads[0].AdSetID)
	assert.Equal(t, ad.StatusActive, ads[0].EffectiveStatus)
	assert.Equal(t, "a3", ads[2].ID)
}

func TestGetInsightsParsing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "today", r.URL.Query().Get("date_preset"))
		fmt.Fprint(w, `{"data":[{
			"impressions":"2000",
			"clicks":"40",
			"spend":"8000.50",
			"ctr":"2.0",
			"cpc":"200.01",
			"actions":[
				{"action_type":"purchase","value":"3"},
				{"action_type":"lead","value":"2"},
				{"action_type":"link_click","value":"40"}
			],
			"action_values":[
				{"action_type":"purchase","value":"30000"},
				{"action_type":"omni_purchase","value":"10002"},
				{"action_type":"link_click","value":"999"}
			]
		}]}`)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	snap, err := client.GetInsights(context.Background(), "a1", ad.WindowToday)
	require.NoError(t, err)

	assert.Equal(t, int64(2000), snap.Impressions)
	assert.Equal(t, int64(40), snap.Clicks)
	assert.Equal(t, 8000.50, snap.Spend)
	assert.Equal(t, 2.0, snap.CTR)
	assert.Equal(t, 200.01, snap.CPC)
	// purchase + lead only; link_click is not a conversion.
	assert.Equal(t, int64(5), snap.Conversions)
	// purchase + omni_purchase values.
	assert.Equal(t, 40002.0, snap.Revenue)
	assert.InDelta(t, 40002.0/8000.50, snap.ROAS, 1e-9)
}

func TestGetInsightsNoData(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":[]}`)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.GetInsights(context.Background(), "fresh", ad.WindowToday)
	assert.ErrorIs(t, err, ad.ErrMetricsUnavailable)
}

func TestGetInsightsTrailingWindow(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.URL.Query().Get("date_preset"))
		assert.Contains(t, r.URL.Query().Get("time_range"), `"since"`)
		fmt.Fprint(w, `{"data":[{"impressions":"10","clicks":"1","spend":"1"}]}`)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	snap, err := client.GetInsights(context.Background(), "a1", ad.WindowTrailing7Days)
	require.NoError(t, err)
	assert.Equal(t, int64(10), snap.Impressions)
}

func TestGetBudgetGroup(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"id":"s1","name":"set one","daily_budget":"10000","lifetime_budget":""}`)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	group, err := client.GetBudgetGroup(context.Background(), "s1")
	require.NoError(t, err)

	assert.Equal(t, "s1", group.ID)
	assert.Equal(t, int64(10000), group.DailyBudget)
	assert.Equal(t, int64(0), group.LifetimeBudget)
}

func TestGetRetriesServerErrors(t *testing.T) {
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			fmt.Fprint(w, `{"error":{"code":1,"message":"transient"}}`)
			return
		}
		fmt.Fprint(w, `{"id":"s1","daily_budget":"500"}`)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	group, err := client.GetBudgetGroup(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, int64(500), group.DailyBudget)
	assert.Equal(t, int64(3), calls.Load())
}

func TestGetDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":{"code":100,"error_subcode":33,"type":"GraphMethodException","message":"unknown object"}}`)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.GetBudgetGroup(context.Background(), "nope")
	require.Error(t, err)
	assert.Equal(t, int64(1), calls.Load())

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.HTTPStatus)
	assert.Equal(t, 100, apiErr.Code)
	assert.Equal(t, 33, apiErr.Subcode)
	assert.Equal(t, "unknown object", apiErr.Message)
}

func TestSetAdStatusPostsForm(t *testing.T) {
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Contains(t, r.URL.Path, "/v21.0/a1")

		body, _ := io.ReadAll(r.Body)
		assert.Contains(t, string(body), "status=PAUSED")
		assert.Contains(t, string(body), "access_token=test-token")
		fmt.Fprint(w, `{"success":true}`)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	require.NoError(t, client.SetAdStatus(context.Background(), "a1", ad.StatusPaused))
	assert.Equal(t, int64(1), calls.Load())
}

// Write failures surface immediately: no retry even on 5xx.
func TestSetBudgetNotRetried(t *testing.T) {
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `{"error":{"code":2,"message":"service unavailable"}}`)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	err := client.SetBudget(context.Background(), "s1", ad.BudgetFieldDaily, 15000)
	require.Error(t, err)
	assert.Equal(t, int64(1), calls.Load())
}

func TestSetBudgetWritesChosenField(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.Contains(t, string(body), "lifetime_budget=60000")
		fmt.Fprint(w, `{"success":true}`)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	require.NoError(t, client.SetBudget(context.Background(), "s1", ad.BudgetFieldLifetime, 60000))
}

func TestAccountIDPrefixNormalized(t *testing.T) {
	c := NewClient(Config{AdAccountID: "act_999"}, testLogger())
	assert.Equal(t, "act_999", c.accountID)

	c = NewClient(Config{AdAccountID: "999"}, testLogger())
	assert.Equal(t, "act_999", c.accountID)
}
