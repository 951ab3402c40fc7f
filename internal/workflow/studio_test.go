package workflow

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"brandviz.io/studio/internal/domain"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func sampleGroups() []domain.FeedbackGroup {
	return []domain.FeedbackGroup{
		{GroupID: 1, Relevance: 0.92, Summary: "bold and sporty"},
		{GroupID: 2, Relevance: 0.71, Summary: "calm pastel"},
	}
}

func browsing(t *testing.T) *Studio {
	t.Helper()
	s := New(0.85)
	tk, err := s.BeginGrouping("Nike")
	require.NoError(t, err)
	require.NoError(t, s.CompleteGrouping(tk, sampleGroups(), 7))
	return s
}

func TestNew_InvalidThresholdFallsBack(t *testing.T) {
	assert.Equal(t, domain.DefaultThreshold, New(0.3).Threshold())
	assert.Equal(t, 0.7, New(0.7).Threshold())
}

func TestSetThreshold(t *testing.T) {
	s := New(0.85)
	require.NoError(t, s.SetThreshold(0.65))
	assert.Equal(t, 0.65, s.Threshold())
	assert.ErrorIs(t, s.SetThreshold(0.67), domain.ErrInvalidThreshold)
	assert.Equal(t, 0.65, s.Threshold())
}

func TestGrouping_WithGroupsMovesToBrowsing(t *testing.T) {
	s := browsing(t)
	snap := s.Snapshot()

	assert.Equal(t, PhaseBrowsing, snap.Phase)
	assert.Equal(t, "Nike", snap.Brand)
	assert.Len(t, snap.Groups, 2)
	assert.Equal(t, 7, snap.TotalFeedback)
	assert.Empty(t, snap.Notice)
}

func TestGrouping_EmptyStaysOnCollection(t *testing.T) {
	s := New(0.85)
	tk, err := s.BeginGrouping("Nike")
	require.NoError(t, err)
	assert.Equal(t, PhaseGrouping, s.Snapshot().Phase)

	require.NoError(t, s.CompleteGrouping(tk, nil, 0))
	snap := s.Snapshot()
	assert.Equal(t, PhaseCollecting, snap.Phase)
	assert.Equal(t, EmptyGroupsNotice, snap.Notice)
	assert.Empty(t, snap.Groups)
}

func TestGrouping_BlankBrand(t *testing.T) {
	_, err := New(0.85).BeginGrouping("   ")
	assert.ErrorIs(t, err, ErrBrandRequired)
}

func TestGrouping_FailureClearsGroups(t *testing.T) {
	s := browsing(t)
	tk, err := s.BeginGrouping("Adidas")
	require.NoError(t, err)

	require.NoError(t, s.FailGrouping(tk, errors.New("HTTP 500: Internal Server Error")))
	snap := s.Snapshot()
	assert.Equal(t, PhaseCollecting, snap.Phase)
	assert.Empty(t, snap.Groups)
	assert.Contains(t, snap.Error, "HTTP 500")
	assert.Equal(t, "Adidas", snap.Brand, "the failed brand stays in the form")
}

func TestGrouping_FailureAbandonsGenerations(t *testing.T) {
	s := browsing(t)
	gen, _, err := s.BeginGeneration(1)
	require.NoError(t, err)

	tk, _ := s.BeginGrouping("Adidas")
	require.NoError(t, s.FailGrouping(tk, errors.New("offline")))
	assert.False(t, s.Snapshot().IsGenerating(1))
	assert.ErrorIs(t, s.CompleteGeneration(gen, []domain.GeneratedImage{{URL: "old"}}), ErrStale)
}

func TestGrouping_StaleResponseDiscarded(t *testing.T) {
	s := New(0.85)
	first, _ := s.BeginGrouping("Nike")
	second, _ := s.BeginGrouping("Adidas")

	require.NoError(t, s.CompleteGrouping(second, []domain.FeedbackGroup{{GroupID: 9, Relevance: 0.8}}, 1))
	assert.ErrorIs(t, s.CompleteGrouping(first, sampleGroups(), 7), ErrStale)
	assert.ErrorIs(t, s.FailGrouping(first, errors.New("late")), ErrStale)

	snap := s.Snapshot()
	assert.Equal(t, "Adidas", snap.Brand)
	require.Len(t, snap.Groups, 1)
	assert.Equal(t, 9, snap.Groups[0].GroupID)
	assert.Empty(t, snap.Error)
}

func TestGeneration_Success(t *testing.T) {
	s := browsing(t)

	tk, group, err := s.BeginGeneration(1)
	require.NoError(t, err)
	assert.Equal(t, "bold and sporty", group.Summary)
	assert.Equal(t, "Nike", tk.Brand)

	snap := s.Snapshot()
	assert.Equal(t, PhaseGenerating, snap.Phase)
	assert.True(t, snap.IsGenerating(1))
	require.NotNil(t, snap.Selected)
	assert.Equal(t, 1, snap.Selected.GroupID)

	images := []domain.GeneratedImage{{URL: "a", VariationNumber: 1}, {URL: "b", VariationNumber: 2}}
	require.NoError(t, s.CompleteGeneration(tk, images))

	snap = s.Snapshot()
	assert.Equal(t, PhaseViewing, snap.Phase)
	assert.Len(t, snap.Images, 2)
	assert.False(t, snap.IsGenerating(1))
}

func TestGeneration_OnlyOneInFlightPerGroup(t *testing.T) {
	s := browsing(t)
	_, _, err := s.BeginGeneration(1)
	require.NoError(t, err)

	_, _, err = s.BeginGeneration(1)
	assert.ErrorIs(t, err, ErrGenerationInFlight)

	_, _, err = s.BeginGeneration(2)
	assert.NoError(t, err, "other groups are not blocked")
}

func TestGeneration_UnknownGroup(t *testing.T) {
	s := browsing(t)
	_, _, err := s.BeginGeneration(42)
	assert.ErrorIs(t, err, ErrUnknownGroup)
}

func TestGeneration_NotAvailableBeforeGroups(t *testing.T) {
	_, _, err := New(0.85).BeginGeneration(1)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestGeneration_FailureKeepsGroups(t *testing.T) {
	s := browsing(t)
	tk, _, err := s.BeginGeneration(2)
	require.NoError(t, err)

	require.NoError(t, s.FailGeneration(tk, errors.New("Unknown error")))
	snap := s.Snapshot()
	assert.Equal(t, PhaseBrowsing, snap.Phase)
	assert.False(t, snap.IsGenerating(2))
	assert.Len(t, snap.Groups, 2)
	assert.Equal(t, "Nike", snap.Brand)
	assert.Contains(t, snap.Error, "Unknown error")

	_, _, err = s.BeginGeneration(2)
	assert.NoError(t, err, "the user may retry")
}

func TestGeneration_StaleAfterNavigatingAway(t *testing.T) {
	s := browsing(t)
	tk, _, err := s.BeginGeneration(1)
	require.NoError(t, err)
	require.NoError(t, s.BackToGroups())

	assert.ErrorIs(t, s.CompleteGeneration(tk, []domain.GeneratedImage{{URL: "late"}}), ErrStale)
	snap := s.Snapshot()
	assert.Equal(t, PhaseBrowsing, snap.Phase)
	assert.Empty(t, snap.Images)
	assert.False(t, snap.IsGenerating(1), "the stale response still releases the group")
}

func TestGeneration_NewerSelectionWins(t *testing.T) {
	s := browsing(t)
	first, _, _ := s.BeginGeneration(1)
	second, _, _ := s.BeginGeneration(2)

	require.NoError(t, s.CompleteGeneration(second, []domain.GeneratedImage{{URL: "two"}}))
	assert.ErrorIs(t, s.CompleteGeneration(first, []domain.GeneratedImage{{URL: "one"}}), ErrStale)

	snap := s.Snapshot()
	require.Len(t, snap.Images, 1)
	assert.Equal(t, "two", snap.Images[0].URL)
	assert.Equal(t, 2, snap.Selected.GroupID)
	assert.Empty(t, snap.Generating)
}

func TestRegenerate(t *testing.T) {
	s := browsing(t)
	_, _, err := s.Regenerate()
	assert.ErrorIs(t, err, ErrInvalidTransition)

	tk, _, _ := s.BeginGeneration(1)
	require.NoError(t, s.CompleteGeneration(tk, []domain.GeneratedImage{{URL: "a"}}))

	again, group, err := s.Regenerate()
	require.NoError(t, err)
	assert.Equal(t, 1, group.GroupID)
	assert.Equal(t, PhaseGenerating, s.Snapshot().Phase)
	assert.Empty(t, s.Snapshot().Images, "old images are cleared while generating")
	require.NoError(t, s.CompleteGeneration(again, []domain.GeneratedImage{{URL: "b"}, {URL: "c"}}))
	assert.Len(t, s.Snapshot().Images, 2)
}

func TestNewGroupingAbandonsGenerations(t *testing.T) {
	s := browsing(t)
	gen, _, _ := s.BeginGeneration(1)

	tk, _ := s.BeginGrouping("Nike")
	require.NoError(t, s.CompleteGrouping(tk, sampleGroups(), 7))

	assert.ErrorIs(t, s.CompleteGeneration(gen, []domain.GeneratedImage{{URL: "old"}}), ErrStale)
	_, _, err := s.BeginGeneration(1)
	assert.NoError(t, err)
}

func TestResetAndDismiss(t *testing.T) {
	s := browsing(t)
	s.Fail(errors.New("oops"))
	assert.Equal(t, "oops", s.Snapshot().Error)
	s.DismissError()
	assert.Empty(t, s.Snapshot().Error)

	s.Reset()
	snap := s.Snapshot()
	assert.Equal(t, PhaseCollecting, snap.Phase)
	assert.Empty(t, snap.Groups)
	assert.Empty(t, snap.Brand)
	assert.ErrorIs(t, s.BackToGroups(), ErrInvalidTransition)
}

func TestSnapshotIsACopy(t *testing.T) {
	s := browsing(t)
	snap := s.Snapshot()
	snap.Groups[0].Summary = "mutated"

	g, ok := s.Group(1)
	require.True(t, ok)
	assert.Equal(t, "bold and sporty", g.Summary)
}

func TestConcurrentGenerations(t *testing.T) {
	s := browsing(t)

	var wg sync.WaitGroup
	var mu sync.Mutex
	started := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, _, err := s.BeginGeneration(1); err == nil {
				mu.Lock()
				started++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, started)
}
