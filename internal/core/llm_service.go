package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"brandviz.io/studio/internal/domain"
	"brandviz.io/studio/internal/logging"
)

const (
	defaultSummaryModelName = "gemini-1.5-flash-latest"

	// Feedback beyond this many items adds little to a one-paragraph brief.
	maxSummaryItems = 25

	summarySystemInstruction = "You are a brand design assistant. You receive several pieces of client feedback " +
		"about one brand that were grouped together because they are similar. " +
		"Write one short paragraph that an image model can use as a design brief: the shared tone, " +
		"visual style, colours and anything the clients want to avoid. Return only the paragraph."
)

var ErrSummarizerDisabled = errors.New("summarizer disabled: GEMINI_API_KEY is not set")

// LLMService writes design briefs for groups the studio service returned without a summary.
type LLMService struct {
	client *genai.Client
	logger *zap.Logger
}

func NewLLMService(ctx context.Context, apiKey string, logger *zap.Logger) (*LLMService, error) {
	if apiKey == "" {
		return nil, ErrSummarizerDisabled
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &LLMService{
		client: client,
		logger: logging.OrNop(logger).Named("llm"),
	}, nil
}

func (s *LLMService) Close() {
	if s.client != nil {
		if err := s.client.Close(); err != nil {
			s.logger.Warn("Error closing GenAI client", zap.Error(err))
		} else {
			s.logger.Debug("GenAI client closed")
		}
	}
}

// SummarizeGroup condenses a group's feedback into a design brief.
func (s *LLMService) SummarizeGroup(ctx context.Context, brand string, group domain.FeedbackGroup) (string, error) {
	if len(group.Items) == 0 {
		return "", fmt.Errorf("group %d has no feedback to summarize", group.GroupID)
	}

	model := s.client.GenerativeModel(defaultSummaryModelName)
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(summarySystemInstruction)},
	}

	temp := float32(0.4)
	maxTokens := int32(256)
	model.GenerationConfig = genai.GenerationConfig{
		MaxOutputTokens: &maxTokens,
		Temperature:     &temp,
	}

	resp, err := model.GenerateContent(ctx, genai.Text(summaryPrompt(brand, group)))
	if err != nil {
		return "", fmt.Errorf("gemini summary request failed: %w", err)
	}

	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("LLM did not generate a summary (empty response)")
	}

	var summary strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			summary.WriteString(string(txt))
		} else {
			s.logger.Debug("Gemini response part was not text", zap.String("type", fmt.Sprintf("%T", part)))
		}
	}

	text := strings.TrimSpace(summary.String())
	if text == "" {
		return "", fmt.Errorf("LLM generated an empty summary")
	}
	return text, nil
}

func summaryPrompt(brand string, group domain.FeedbackGroup) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Brand: %s\n", brand)
	if group.KeyThemes != "" {
		fmt.Fprintf(&b, "Key themes: %s\n", group.KeyThemes)
	}
	b.WriteString("Feedback:\n")
	for i, item := range group.Items {
		if i == maxSummaryItems {
			break
		}
		fmt.Fprintf(&b, "- %s\n", strings.TrimSpace(item.FeedbackText))
	}
	return b.String()
}
