package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"brandviz.io/studio/internal/domain"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	c, err := New(Config{BaseURL: server.URL, BypassHeader: "ngrok-skip-browser-warning"}, zap.NewNop())
	require.NoError(t, err)
	return c
}

func TestNew_RejectsRelativeURL(t *testing.T) {
	_, err := New(Config{BaseURL: "api/v1"}, nil)
	assert.Error(t, err)
}

func TestGetGroups_Success(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/feedback-groups/Acme Corp", r.URL.Path)
		assert.Equal(t, "0.8", r.URL.Query().Get("similarity_threshold"))
		assert.Equal(t, "true", r.URL.Query().Get("include_summary"))
		assert.Empty(t, r.URL.Query().Get("max_clusters"))
		assert.Equal(t, "true", r.Header.Get("ngrok-skip-browser-warning"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"groups": [
				{"group_id": 1, "relevance": 0.91, "item_count": 2, "summary": "bold", "key_themes": "sport", "items": [{"feedback_text": "a"}, {"feedback_text": "b"}]},
				{"group_id": 2, "relevance": 0.74, "summary": "calm"}
			],
			"group_count": 2,
			"total_feedback": 5
		}`))
	})

	resp, err := c.GetGroups(context.Background(), "Acme Corp", GroupOptions{SimilarityThreshold: 0.8, IncludeSummary: true})
	require.NoError(t, err)
	require.Len(t, resp.Groups, 2)
	assert.Equal(t, 5, resp.TotalFeedback)
	assert.Equal(t, 91, resp.Groups[0].RelevancePercent())
	assert.NotNil(t, resp.Groups[1].Items, "missing items decode to an empty list")
}

func TestGetGroups_MissingGroupsDefaultsToEmpty(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"total_feedback": 0}`))
	})

	resp, err := c.GetGroups(context.Background(), "Acme", GroupOptions{})
	require.NoError(t, err)
	assert.NotNil(t, resp.Groups)
	assert.Empty(t, resp.Groups)
}

func TestGetGroups_RejectsInvalidRelevance(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"groups": [{"group_id": 1, "relevance": 1.4}]}`))
	})

	_, err := c.GetGroups(context.Background(), "Acme", GroupOptions{})
	assert.ErrorIs(t, err, ErrInvalidResponse)
}

func TestGetGroups_ErrorDetail(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"detail": "Vector store unavailable"}`))
	})

	_, err := c.GetGroups(context.Background(), "Acme", GroupOptions{})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusServiceUnavailable, apiErr.StatusCode)
	assert.Equal(t, "Vector store unavailable", err.Error())
}

func TestGetGroups_ErrorWithoutDetailUsesStatusText(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte(`<html>bad gateway</html>`))
	})

	_, err := c.GetGroups(context.Background(), "Acme", GroupOptions{})
	require.Error(t, err)
	assert.Equal(t, "HTTP 502: Bad Gateway", err.Error())
}

func TestDo_StructuredDetail(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"detail": [{"loc": ["body", "brand_name"], "msg": "field required"}]}`))
	})

	_, err := c.StoreFeedback(context.Background(), StoreRequest{FeedbackText: "x", BrandName: "y"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "field required")
}

func TestDo_TransportFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	c, err := New(Config{BaseURL: server.URL}, nil)
	require.NoError(t, err)
	server.Close()

	_, err = c.HealthCheck(context.Background())
	assert.ErrorIs(t, err, ErrTransport)
}

func TestGenerateImages_RequestBodyAndDefaults(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/generate-images", r.URL.Path)

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Acme", body["brand_name"])
		assert.EqualValues(t, 3, body["group_id"])
		assert.EqualValues(t, 2, body["n_variations"])
		assert.Equal(t, "summary", body["group_summary"])
		assert.Nil(t, body["original_input"])
		items := body["feedback_items"].([]any)
		require.Len(t, items, 1)
		assert.Equal(t, "extra", items[0].(map[string]any)["vector_id"])

		w.Write([]byte(`{"images": [
			{"url": "https://cdn/1.png", "variation_number": 1, "created_at": "2025-01-01T00:00:00"},
			{"base64": "aGk=", "revised_prompt": "a bolder logo"}
		]}`))
	})

	var item domain.FeedbackItem
	require.NoError(t, json.Unmarshal([]byte(`{"feedback_text":"x","vector_id":"extra"}`), &item))

	resp, err := c.GenerateImages(context.Background(), GenerateRequest{
		BrandName:     "Acme",
		GroupID:       3,
		FeedbackItems: []domain.FeedbackItem{item},
		GroupSummary:  "summary",
	})
	require.NoError(t, err)
	require.Len(t, resp.Images, 2)
	assert.Equal(t, 2, resp.Images[1].VariationNumber, "missing variation numbers are filled by position")
	assert.True(t, resp.Images[1].Inline())
}

func TestGenerateImages_RejectsEmptyImage(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"images": [{"variation_number": 1}]}`))
	})

	_, err := c.GenerateImages(context.Background(), GenerateRequest{BrandName: "Acme", GroupID: 1})
	assert.ErrorIs(t, err, ErrInvalidResponse)
}

func TestStoreFeedback(t *testing.T) {
	calls := 0
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, "/api/feedback/store", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"feedback_text":"Brand: Acme.","brand_name":"Acme","moodboard_id":"preference_collection","metadata":{"tone":"bold"}}`, string(body))
		w.Write([]byte(`{"stored": true, "id": "abc"}`))
	})

	resp, err := c.StoreFeedback(context.Background(), StoreRequest{
		FeedbackText: "Brand: Acme.",
		BrandName:    "Acme",
		MoodboardID:  domain.PreferenceMoodboardID,
		Metadata:     map[string]any{"tone": "bold"},
	})
	require.NoError(t, err)
	assert.True(t, resp.Stored)
	assert.Equal(t, 1, calls)

	_, err = c.StoreFeedback(context.Background(), StoreRequest{BrandName: "Acme"})
	assert.Error(t, err)
	assert.Equal(t, 1, calls, "invalid requests are not sent")
}

func TestSearchFeedback_Defaults(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"query_text":"minimal","brand_name":null,"limit":5}`, string(body))
		w.Write([]byte(`{"count": 0}`))
	})

	resp, err := c.SearchFeedback(context.Background(), SearchRequest{QueryText: "minimal"})
	require.NoError(t, err)
	assert.NotNil(t, resp.Results)
}

func TestGetFeedbackStats(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Acme", r.URL.Query().Get("brand_name"))
		w.Write([]byte(`{"total_feedback": 12, "brands": {"Acme": 12}, "collection": "feedback"}`))
	})

	stats, err := c.GetFeedbackStats(context.Background(), "Acme")
	require.NoError(t, err)
	assert.Equal(t, 12, stats.TotalFeedback)
	assert.Equal(t, 12, stats.Brands["Acme"])
	assert.Equal(t, "feedback", stats.Extra["collection"])
}

func TestGetBrandFeedbackAndGenerations(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "50", r.URL.Query().Get("limit"))
		switch r.URL.Path {
		case "/api/feedback/brand/Acme":
			w.Write([]byte(`{"feedback": [{"feedback_text": "x"}], "count": 1}`))
		case "/api/generations/Acme":
			w.Write([]byte(`{"generations": [{"id": "g1", "group_id": 2, "images": [{"url": "u"}]}], "count": 1}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	fb, err := c.GetBrandFeedback(context.Background(), "Acme", 0)
	require.NoError(t, err)
	assert.Len(t, fb.Feedback, 1)

	gens, err := c.GetBrandGenerations(context.Background(), "Acme", 0)
	require.NoError(t, err)
	require.Len(t, gens.Generations, 1)
	assert.Equal(t, "g1", gens.Generations[0].ID)
}

func TestGetGeneration_NotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := c.GetGeneration(context.Background(), "507f1f77bcf86cd799439011")
	assert.ErrorIs(t, err, ErrGenerationNotFound)
}

func TestHealthCheck(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/health/grouping", r.URL.Path)
		w.Write([]byte(`{"status": "healthy", "vector_store": true, "openai": false}`))
	})

	health, err := c.HealthCheck(context.Background())
	require.NoError(t, err)
	assert.True(t, health.VectorStore)
	assert.False(t, health.OpenAI)
}

func TestOutcome(t *testing.T) {
	assert.Equal(t, "ok", outcome(nil))
	assert.Equal(t, "http_error", outcome(&APIError{StatusCode: 500}))
	assert.Equal(t, "invalid_response", outcome(ErrInvalidResponse))
	assert.Equal(t, "transport_error", outcome(ErrTransport))
}

func TestGetGroups_InvalidResponseCountedAsInvalid(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"groups": [{"group_id": 1, "relevance": 0.9}, {"group_id": 1, "relevance": 0.8}]}`))
	})
	invalid := apiRequestsTotal.WithLabelValues("get_groups", "invalid_response")
	ok := apiRequestsTotal.WithLabelValues("get_groups", "ok")
	invalidBefore, okBefore := testutil.ToFloat64(invalid), testutil.ToFloat64(ok)

	_, err := c.GetGroups(context.Background(), "Acme", GroupOptions{})
	require.ErrorIs(t, err, ErrInvalidResponse)
	assert.Equal(t, invalidBefore+1, testutil.ToFloat64(invalid))
	assert.Equal(t, okBefore, testutil.ToFloat64(ok))
}

func TestGenerateImages_ToleratesUnknownTimestamps(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"generation_id": "g1", "images": [
			{"url": "https://cdn/1.png", "variation_number": 1, "created_at": "2024-01-15T10:30:00.123456+0000"},
			{"url": "https://cdn/2.png", "variation_number": 2, "created_at": "sometime last week"}
		]}`))
	})

	resp, err := c.GenerateImages(context.Background(), GenerateRequest{BrandName: "Acme", GroupID: 1})
	require.NoError(t, err)
	require.Len(t, resp.Images, 2)
	assert.Equal(t, 2024, resp.Images[0].CreatedAt.Year())
	assert.True(t, resp.Images[1].CreatedAt.IsZero())
	assert.Equal(t, "https://cdn/2.png", resp.Images[1].URL)
}

func TestGetGroups_ToleratesUnknownTimestamps(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"groups": [{"group_id": 1, "relevance": 0.9, "items": [
			{"feedback_text": "bold", "created_at": 1705314600},
			{"feedback_text": "loud", "created_at": "n/a"}
		]}]}`))
	})

	resp, err := c.GetGroups(context.Background(), "Acme", GroupOptions{})
	require.NoError(t, err)
	require.Len(t, resp.Groups[0].Items, 2)
	assert.Equal(t, 2024, resp.Groups[0].Items[0].CreatedAt.Year())
	assert.True(t, resp.Groups[0].Items[1].CreatedAt.Unparsed())
}
