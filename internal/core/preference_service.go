package core

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"brandviz.io/studio/internal/client"
	"brandviz.io/studio/internal/domain"
	"brandviz.io/studio/internal/logging"
	"brandviz.io/studio/internal/store"
)

// PreferenceService submits brand preferences collected by the form.
type PreferenceService struct {
	api     FeedbackAPI
	history History
	logger  *zap.Logger
}

func NewPreferenceService(api FeedbackAPI, history History, logger *zap.Logger) *PreferenceService {
	return &PreferenceService{
		api:     api,
		history: history,
		logger:  logging.OrNop(logger).Named("preferences"),
	}
}

// Submit validates p and stores it with exactly one call to the store endpoint.
func (s *PreferenceService) Submit(ctx context.Context, p domain.Preference) (*client.StoreResponse, error) {
	p.BrandName = strings.TrimSpace(p.BrandName)
	p.Description = strings.TrimSpace(p.Description)
	if err := p.Validate(); err != nil {
		return nil, err
	}

	text := p.FeedbackText()
	s.logger.Info("Submitting preference", zap.String("brand", p.BrandName))

	resp, err := s.api.StoreFeedback(ctx, client.StoreRequest{
		FeedbackText: text,
		BrandName:    p.BrandName,
		MoodboardID:  domain.PreferenceMoodboardID,
		Metadata:     p.Metadata(),
	})
	if err != nil {
		return nil, fmt.Errorf("error storing preference: %w", err)
	}

	s.record(p, text, resp.Stored)
	return resp, nil
}

// StoreNote stores free-form feedback, as typed in the chat front end.
func (s *PreferenceService) StoreNote(ctx context.Context, brand, text, moodboardID string) (*client.StoreResponse, error) {
	brand = strings.TrimSpace(brand)
	text = strings.TrimSpace(text)
	if brand == "" || text == "" {
		return nil, fmt.Errorf("%w: brand and feedback text are required", domain.ErrInvalidPreference)
	}
	if moodboardID == "" {
		moodboardID = domain.PreferenceMoodboardID
	}

	resp, err := s.api.StoreFeedback(ctx, client.StoreRequest{
		FeedbackText: text,
		BrandName:    brand,
		MoodboardID:  moodboardID,
	})
	if err != nil {
		return nil, fmt.Errorf("error storing feedback: %w", err)
	}
	if s.history != nil {
		sub := store.Submission{BrandName: brand, FeedbackText: text, Stored: resp.Stored}
		if err := s.history.CreateSubmission(&sub); err != nil {
			s.logger.Warn("Failed to record feedback in history", zap.Error(err))
		}
	}
	return resp, nil
}

func (s *PreferenceService) record(p domain.Preference, text string, stored bool) {
	if s.history == nil {
		return
	}
	metadata, err := json.Marshal(p.Metadata())
	if err != nil {
		s.logger.Warn("Failed to encode preference metadata", zap.Error(err))
	}
	sub := store.Submission{
		BrandName:    p.BrandName,
		FeedbackText: text,
		MetadataJSON: string(metadata),
		Stored:       stored,
	}
	// The remote store already succeeded; a local history failure is not the user's problem.
	if err := s.history.CreateSubmission(&sub); err != nil {
		s.logger.Warn("Failed to record submission in history", zap.String("brand", p.BrandName), zap.Error(err))
	}
}
