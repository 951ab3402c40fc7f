package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"brandviz.io/studio/internal/domain"
)

const DefaultVariations = 2

// GetGroups fetches the feedback for brand grouped at the given similarity threshold.
func (c *Client) GetGroups(ctx context.Context, brand string, opts GroupOptions) (*GroupsResponse, error) {
	if strings.TrimSpace(brand) == "" {
		return nil, fmt.Errorf("brand name is required")
	}
	threshold := opts.SimilarityThreshold
	if threshold == 0 {
		threshold = domain.DefaultThreshold
	}

	query := url.Values{}
	query.Set("similarity_threshold", strconv.FormatFloat(threshold, 'f', -1, 64))
	query.Set("include_summary", strconv.FormatBool(opts.IncludeSummary))
	if opts.MaxClusters > 0 {
		query.Set("max_clusters", strconv.Itoa(opts.MaxClusters))
	}

	var resp GroupsResponse
	target := c.endpoint("/api/feedback-groups/"+url.PathEscape(brand), query)
	if err := c.do(ctx, "get_groups", http.MethodGet, target, nil, &resp); err != nil {
		return nil, err
	}
	for _, g := range resp.Groups {
		for _, item := range g.Items {
			c.logUnparsed("get_groups", item.CreatedAt)
		}
	}

	c.logger.Info("Groups received", zap.String("brand", brand), zap.Int("group_count", resp.GroupCount))
	return &resp, nil
}

// GenerateImages asks the service for NVariations images from one group.
func (c *Client) GenerateImages(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	if req.NVariations <= 0 {
		req.NVariations = DefaultVariations
	}
	if req.FeedbackItems == nil {
		req.FeedbackItems = []domain.FeedbackItem{}
	}

	var resp GenerateResponse
	if err := c.do(ctx, "generate_images", http.MethodPost, c.endpoint("/api/generate-images", nil), req, &resp); err != nil {
		return nil, err
	}
	for _, img := range resp.Images {
		c.logUnparsed("generate_images", img.CreatedAt)
	}

	c.logger.Info("Images generated", zap.Int("group_id", req.GroupID), zap.Int("count", len(resp.Images)))
	return &resp, nil
}

// GetBrandGenerations lists past generations for brand, newest first.
func (c *Client) GetBrandGenerations(ctx context.Context, brand string, limit int) (*GenerationsResponse, error) {
	if limit <= 0 {
		limit = 50
	}
	query := url.Values{"limit": {strconv.Itoa(limit)}}

	var resp GenerationsResponse
	target := c.endpoint("/api/generations/"+url.PathEscape(brand), query)
	if err := c.do(ctx, "get_brand_generations", http.MethodGet, target, nil, &resp); err != nil {
		return nil, err
	}
	if resp.Generations == nil {
		resp.Generations = []Generation{}
	}
	return &resp, nil
}

func (c *Client) GetGeneration(ctx context.Context, id string) (*Generation, error) {
	var gen Generation
	err := c.do(ctx, "get_generation", http.MethodGet, c.endpoint("/api/generation/"+url.PathEscape(id), nil), nil, &gen)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", ErrGenerationNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	if gen.Images == nil {
		gen.Images = []domain.GeneratedImage{}
	}
	return &gen, nil
}

// HealthCheck reports whether the grouping backend and its dependencies are up.
func (c *Client) HealthCheck(ctx context.Context) (*HealthResponse, error) {
	var resp HealthResponse
	if err := c.do(ctx, "health_grouping", http.MethodGet, c.endpoint("/api/health/grouping", nil), nil, &resp); err != nil {
		return nil, fmt.Errorf("health check failed: %w", err)
	}
	return &resp, nil
}
