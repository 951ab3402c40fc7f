package client

import (
	"encoding/json"
	"fmt"

	"brandviz.io/studio/internal/domain"
)

type GroupOptions struct {
	SimilarityThreshold float64
	IncludeSummary      bool
	// MaxClusters of zero leaves the limit to the service.
	MaxClusters int
}

type GroupsResponse struct {
	BrandName     string                 `json:"brand_name"`
	Groups        []domain.FeedbackGroup `json:"groups"`
	GroupCount    int                    `json:"group_count"`
	TotalFeedback int                    `json:"total_feedback"`
}

type GenerateRequest struct {
	BrandName     string                `json:"brand_name"`
	GroupID       int                   `json:"group_id"`
	FeedbackItems []domain.FeedbackItem `json:"feedback_items"`
	GroupSummary  string                `json:"group_summary"`
	OriginalInput json.RawMessage       `json:"original_input"`
	NVariations   int                   `json:"n_variations"`
}

type GenerateResponse struct {
	GenerationID string                  `json:"generation_id"`
	Prompt       string                  `json:"prompt"`
	Images       []domain.GeneratedImage `json:"images"`
}

// validate fills missing lists and checks relevance and group ids.
func (r *GroupsResponse) validate() error {
	if r.Groups == nil {
		r.Groups = []domain.FeedbackGroup{}
	}
	for i := range r.Groups {
		if r.Groups[i].Items == nil {
			r.Groups[i].Items = []domain.FeedbackItem{}
		}
	}
	if err := domain.ValidateGroups(r.Groups); err != nil {
		return err
	}
	if r.GroupCount == 0 {
		r.GroupCount = len(r.Groups)
	}
	return nil
}

// validate requires a source for every image and numbers them by position
// when the service leaves variation numbers out.
func (r *GenerateResponse) validate() error {
	if r.Images == nil {
		r.Images = []domain.GeneratedImage{}
	}
	for i, img := range r.Images {
		if img.URL == "" && img.Base64 == "" {
			return fmt.Errorf("image %d has neither url nor base64 data", i)
		}
		if img.VariationNumber == 0 {
			r.Images[i].VariationNumber = i + 1
		}
	}
	return nil
}

type StoreRequest struct {
	FeedbackText string         `json:"feedback_text"`
	BrandName    string         `json:"brand_name"`
	MoodboardID  string         `json:"moodboard_id"`
	UserID       *string        `json:"user_id,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

type StoreResponse struct {
	Stored bool   `json:"stored"`
	ID     string `json:"id"`
}

type SearchRequest struct {
	QueryText string  `json:"query_text"`
	BrandName *string `json:"brand_name"`
	Limit     int     `json:"limit"`
}

type SearchResponse struct {
	Results []domain.FeedbackItem `json:"results"`
	Count   int                   `json:"count"`
}

type BrandFeedbackResponse struct {
	BrandName string                `json:"brand_name"`
	Feedback  []domain.FeedbackItem `json:"feedback"`
	Count     int                   `json:"count"`
}

// StatsResponse is kept loose: the service reports per-brand counters
// whose keys vary with deployment.
type StatsResponse struct {
	TotalFeedback int            `json:"total_feedback"`
	Brands        map[string]int `json:"brands"`
	Extra         map[string]any `json:"-"`
}

func (s *StatsResponse) UnmarshalJSON(data []byte) error {
	type alias StatsResponse
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	var extra map[string]any
	if err := json.Unmarshal(data, &extra); err != nil {
		return err
	}
	delete(extra, "total_feedback")
	delete(extra, "brands")
	*s = StatsResponse(a)
	s.Extra = extra
	return nil
}

type Generation struct {
	ID           string                  `json:"id"`
	BrandName    string                  `json:"brand_name"`
	GroupID      int                     `json:"group_id"`
	GroupSummary string                  `json:"group_summary"`
	Prompt       string                  `json:"prompt"`
	Images       []domain.GeneratedImage `json:"images"`
	CreatedAt    domain.Timestamp        `json:"created_at"`
}

type GenerationsResponse struct {
	BrandName   string       `json:"brand_name"`
	Generations []Generation `json:"generations"`
	Count       int          `json:"count"`
}

type HealthResponse struct {
	Status      string `json:"status"`
	VectorStore bool   `json:"vector_store"`
	OpenAI      bool   `json:"openai"`
}
