package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

var ErrInvalidThreshold = errors.New("similarity threshold must be between 0.60 and 0.95 in steps of 0.05")

const (
	MinThreshold     = 0.60
	MaxThreshold     = 0.95
	ThresholdStep    = 0.05
	DefaultThreshold = 0.85
)

// ThresholdSteps lists every selectable similarity threshold.
func ThresholdSteps() []float64 {
	var steps []float64
	for i := 12; i <= 19; i++ {
		steps = append(steps, float64(i)/20)
	}
	return steps
}

func ValidateThreshold(v float64) error {
	if v < MinThreshold-1e-9 || v > MaxThreshold+1e-9 {
		return ErrInvalidThreshold
	}
	scaled := v / ThresholdStep
	if math.Abs(scaled-math.Round(scaled)) > 1e-6 {
		return ErrInvalidThreshold
	}
	return nil
}

// FeedbackItem is one stored feedback record as returned inside a group.
// The raw payload is kept so the item can be sent back to the generation
// endpoint exactly as received.
type FeedbackItem struct {
	FeedbackText string          `json:"feedback_text"`
	BrandName    string          `json:"brand_name,omitempty"`
	MoodboardID  string          `json:"moodboard_id,omitempty"`
	UserID       string          `json:"user_id,omitempty"`
	Similarity   float64         `json:"similarity,omitempty"`
	Metadata     json.RawMessage `json:"metadata,omitempty"`
	CreatedAt    Timestamp       `json:"created_at"`

	raw json.RawMessage
}

type feedbackItemAlias FeedbackItem

func (f *FeedbackItem) UnmarshalJSON(data []byte) error {
	var a feedbackItemAlias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*f = FeedbackItem(a)
	f.raw = append(json.RawMessage(nil), data...)
	return nil
}

func (f FeedbackItem) MarshalJSON() ([]byte, error) {
	if len(f.raw) > 0 {
		return f.raw, nil
	}
	return json.Marshal(feedbackItemAlias(f))
}

// FeedbackGroup is a server-computed cluster of similar feedback for a brand.
type FeedbackGroup struct {
	GroupID   int            `json:"group_id"`
	Relevance float64        `json:"relevance"`
	ItemCount int            `json:"item_count"`
	Summary   string         `json:"summary"`
	KeyThemes string         `json:"key_themes"`
	Items     []FeedbackItem `json:"items"`
}

// RelevancePercent is the relevance rounded to a whole percentage.
func (g FeedbackGroup) RelevancePercent() int {
	return int(math.Round(g.Relevance * 100))
}

// RelevanceTier buckets relevance the way the dashboard colours its badges.
func (g FeedbackGroup) RelevanceTier() string {
	switch {
	case g.Relevance >= 0.9:
		return "excellent"
	case g.Relevance >= 0.8:
		return "strong"
	case g.Relevance >= 0.7:
		return "moderate"
	default:
		return "weak"
	}
}

// Count returns ItemCount, falling back to len(Items) when the server omits it.
func (g FeedbackGroup) Count() int {
	if g.ItemCount > 0 {
		return g.ItemCount
	}
	return len(g.Items)
}

// ValidateGroups checks the invariants of one grouping response.
func ValidateGroups(groups []FeedbackGroup) error {
	seen := make(map[int]struct{}, len(groups))
	for _, g := range groups {
		if g.Relevance < 0 || g.Relevance > 1 || math.IsNaN(g.Relevance) {
			return fmt.Errorf("group %d has relevance %v outside [0,1]", g.GroupID, g.Relevance)
		}
		if _, dup := seen[g.GroupID]; dup {
			return fmt.Errorf("duplicate group id %d", g.GroupID)
		}
		seen[g.GroupID] = struct{}{}
	}
	return nil
}
