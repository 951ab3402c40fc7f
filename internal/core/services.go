package core

import (
	"context"

	"brandviz.io/studio/internal/client"
	"brandviz.io/studio/internal/domain"
	"brandviz.io/studio/internal/store"
)

// StudioAPI is the part of the remote service the group → generate flow needs.
type StudioAPI interface {
	GetGroups(ctx context.Context, brand string, opts client.GroupOptions) (*client.GroupsResponse, error)
	GenerateImages(ctx context.Context, req client.GenerateRequest) (*client.GenerateResponse, error)
}

type FeedbackAPI interface {
	StoreFeedback(ctx context.Context, req client.StoreRequest) (*client.StoreResponse, error)
}

// History records what this client submitted and generated.
type History interface {
	CreateSubmission(sub *store.Submission) error
	CreateGeneration(gen *store.Generation) error
}

// Summarizer writes a brief for groups that arrive without a summary.
type Summarizer interface {
	SummarizeGroup(ctx context.Context, brand string, group domain.FeedbackGroup) (string, error)
}
