package core

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"brandviz.io/studio/internal/client"
	"brandviz.io/studio/internal/domain"
	"brandviz.io/studio/internal/logging"
	"brandviz.io/studio/internal/store"
	"brandviz.io/studio/internal/workflow"
)

const summaryConcurrency = 4

// StudioService drives the group → generate flow against the remote
// service, keeping the outcome in a workflow.Studio.
type StudioService struct {
	api        StudioAPI
	state      *workflow.Studio
	history    History
	summarizer Summarizer
	variations int
	// maxClusters caps the groups the service returns; zero leaves it to the service.
	maxClusters int
	logger      *zap.Logger
}

// NewStudioService wires the flow. history and summarizer may be nil.
func NewStudioService(api StudioAPI, state *workflow.Studio, history History, summarizer Summarizer, variations int, logger *zap.Logger) *StudioService {
	if variations <= 0 {
		variations = client.DefaultVariations
	}
	return &StudioService{
		api:        api,
		state:      state,
		history:    history,
		summarizer: summarizer,
		variations: variations,
		logger:     logging.OrNop(logger).Named("studio"),
	}
}

// SetMaxClusters caps how many groups later fetches ask for. Call it
// before the service is shared.
func (s *StudioService) SetMaxClusters(n int) {
	if n < 0 {
		n = 0
	}
	s.maxClusters = n
}

func (s *StudioService) State() *workflow.Studio {
	return s.state
}

// FetchGroups loads the groups for brand at the current threshold. A
// response that arrives after a newer fetch started returns workflow.ErrStale
// and leaves the state alone.
func (s *StudioService) FetchGroups(ctx context.Context, brand string) error {
	ticket, err := s.state.BeginGrouping(brand)
	if err != nil {
		return err
	}
	threshold := s.state.Threshold()
	log := s.logger.With(zap.String("brand", ticket.Brand), zap.Float64("threshold", threshold))
	log.Info("Fetching groups")

	resp, err := s.api.GetGroups(ctx, ticket.Brand, client.GroupOptions{
		SimilarityThreshold: threshold,
		IncludeSummary:      true,
		MaxClusters:         s.maxClusters,
	})
	if err != nil {
		log.Warn("Error fetching groups", zap.Error(err))
		if ferr := s.state.FailGrouping(ticket, err); ferr != nil {
			return ferr
		}
		return err
	}

	groups := s.fillSummaries(ctx, ticket.Brand, resp.Groups)
	if err := s.state.CompleteGrouping(ticket, groups, resp.TotalFeedback); err != nil {
		log.Debug("Discarding grouping response", zap.Error(err))
		return err
	}
	log.Info("Groups received", zap.Int("count", len(groups)))
	return nil
}

// fillSummaries asks the summarizer for briefs of groups without one.
// Failures keep the group as received.
func (s *StudioService) fillSummaries(ctx context.Context, brand string, groups []domain.FeedbackGroup) []domain.FeedbackGroup {
	if s.summarizer == nil {
		return groups
	}
	out := append([]domain.FeedbackGroup(nil), groups...)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(summaryConcurrency)
	for i := range out {
		if strings.TrimSpace(out[i].Summary) != "" || len(out[i].Items) == 0 {
			continue
		}
		i := i
		g.Go(func() error {
			summary, err := s.summarizer.SummarizeGroup(gctx, brand, out[i])
			if err != nil {
				s.logger.Warn("Failed to summarize group", zap.Int("group_id", out[i].GroupID), zap.Error(err))
				return nil
			}
			out[i].Summary = summary
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// Generate requests n variations (the configured default when n <= 0) for
// groupID and shows them when they arrive.
func (s *StudioService) Generate(ctx context.Context, groupID, n int) error {
	ticket, group, err := s.state.BeginGeneration(groupID)
	if err != nil {
		return err
	}
	return s.generate(ctx, ticket, group, n)
}

// Regenerate requests more variations for the selected group.
func (s *StudioService) Regenerate(ctx context.Context, n int) error {
	ticket, group, err := s.state.Regenerate()
	if err != nil {
		return err
	}
	return s.generate(ctx, ticket, group, n)
}

func (s *StudioService) generate(ctx context.Context, ticket workflow.Ticket, group domain.FeedbackGroup, n int) error {
	if n <= 0 {
		n = s.variations
	}
	log := s.logger.With(zap.String("brand", ticket.Brand), zap.Int("group_id", group.GroupID))
	log.Info("Generating images", zap.Int("variations", n))

	resp, err := s.api.GenerateImages(ctx, client.GenerateRequest{
		BrandName:     ticket.Brand,
		GroupID:       group.GroupID,
		FeedbackItems: group.Items,
		GroupSummary:  group.Summary,
		NVariations:   n,
	})
	if err != nil {
		log.Warn("Generation failed", zap.Error(err))
		if ferr := s.state.FailGeneration(ticket, err); ferr != nil {
			return ferr
		}
		return err
	}

	s.record(ticket.Brand, group, resp)
	if err := s.state.CompleteGeneration(ticket, resp.Images); err != nil {
		log.Debug("Discarding generation response", zap.Error(err))
		return err
	}
	log.Info("Images generated", zap.Int("count", len(resp.Images)))
	return nil
}

func (s *StudioService) record(brand string, group domain.FeedbackGroup, resp *client.GenerateResponse) {
	if s.history == nil {
		return
	}
	gen := store.Generation{
		BrandName:    brand,
		GroupID:      group.GroupID,
		GroupSummary: group.Summary,
	}
	if resp.GenerationID != "" {
		id := resp.GenerationID
		gen.RemoteID = &id
	}
	for _, img := range resp.Images {
		gen.Images = append(gen.Images, store.Image{
			VariationNumber: img.VariationNumber,
			URL:             img.URL,
			Inline:          img.Inline(),
			RevisedPrompt:   img.RevisedPrompt,
			CreatedAt:       img.CreatedAt.Time,
		})
	}
	if err := s.history.CreateGeneration(&gen); err != nil {
		s.logger.Warn("Failed to record generation in history", zap.Error(err))
	}
}

// IsStale reports whether err only means a newer request superseded this one.
func IsStale(err error) bool {
	return errors.Is(err, workflow.ErrStale)
}
