package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"brandviz.io/studio/internal/domain"
)

func (c *Client) StoreFeedback(ctx context.Context, req StoreRequest) (*StoreResponse, error) {
	if strings.TrimSpace(req.FeedbackText) == "" || strings.TrimSpace(req.BrandName) == "" {
		return nil, fmt.Errorf("feedback text and brand name are required")
	}

	var resp StoreResponse
	if err := c.do(ctx, "store_feedback", http.MethodPost, c.endpoint("/api/feedback/store", nil), req, &resp); err != nil {
		return nil, err
	}
	c.logger.Info("Feedback stored", zap.String("brand", req.BrandName), zap.Bool("stored", resp.Stored))
	return &resp, nil
}

// SearchFeedback runs a semantic search over stored feedback. A nil
// BrandName searches across brands.
func (c *Client) SearchFeedback(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	if req.Limit <= 0 {
		req.Limit = 5
	}

	var resp SearchResponse
	if err := c.do(ctx, "search_feedback", http.MethodPost, c.endpoint("/api/feedback/search", nil), req, &resp); err != nil {
		return nil, err
	}
	if resp.Results == nil {
		resp.Results = []domain.FeedbackItem{}
	}
	return &resp, nil
}

func (c *Client) GetBrandFeedback(ctx context.Context, brand string, limit int) (*BrandFeedbackResponse, error) {
	if limit <= 0 {
		limit = 50
	}
	query := url.Values{"limit": {strconv.Itoa(limit)}}

	var resp BrandFeedbackResponse
	target := c.endpoint("/api/feedback/brand/"+url.PathEscape(brand), query)
	if err := c.do(ctx, "get_brand_feedback", http.MethodGet, target, nil, &resp); err != nil {
		return nil, err
	}
	if resp.Feedback == nil {
		resp.Feedback = []domain.FeedbackItem{}
	}
	return &resp, nil
}

// GetFeedbackStats returns global statistics, or per-brand ones when brand is set.
func (c *Client) GetFeedbackStats(ctx context.Context, brand string) (*StatsResponse, error) {
	var query url.Values
	if brand != "" {
		query = url.Values{"brand_name": {brand}}
	}

	var resp StatsResponse
	if err := c.do(ctx, "get_feedback_stats", http.MethodGet, c.endpoint("/api/feedback/stats", query), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
