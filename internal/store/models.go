package store

import "time"

// Submission is a preference form submission as recorded locally.
type Submission struct {
	ID           string    `json:"id"` // Using UUID for external ID
	BrandName    string    `json:"brand_name"`
	FeedbackText string    `json:"feedback_text"`
	MetadataJSON string    `json:"-"`
	Stored       bool      `json:"stored"`
	CreatedAt    time.Time `json:"created_at"`
}

type Generation struct {
	ID           string    `json:"id"`
	RemoteID     *string   `json:"remote_id"` // Nullable, set when the service returns one
	BrandName    string    `json:"brand_name"`
	GroupID      int       `json:"group_id"`
	GroupSummary string    `json:"group_summary"`
	CreatedAt    time.Time `json:"created_at"`
	Images       []Image   `json:"images,omitempty"`
}

type Image struct {
	ID              string    `json:"id"`
	GenerationID    string    `json:"generation_id"`
	VariationNumber int       `json:"variation_number"`
	URL             string    `json:"url"`
	Inline          bool      `json:"inline"` // base64 payloads are not persisted
	RevisedPrompt   string    `json:"revised_prompt"`
	CreatedAt       time.Time `json:"created_at"`
}
