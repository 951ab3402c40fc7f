// Package workflow holds the view state of the group → generate flow as an
// explicit state container. Every request is issued a Ticket; completions
// carrying an outdated ticket are discarded instead of overwriting newer
// state.
package workflow

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"brandviz.io/studio/internal/domain"
)

type Phase string

const (
	PhaseCollecting Phase = "collecting"
	PhaseGrouping   Phase = "grouping"
	PhaseBrowsing   Phase = "browsing-groups"
	PhaseGenerating Phase = "generating"
	PhaseViewing    Phase = "viewing-results"
)

// EmptyGroupsNotice is shown when a brand has no groups yet.
const EmptyGroupsNotice = "No feedback groups found for this brand. Try collecting some preferences first!"

var (
	ErrStale              = errors.New("response superseded by a newer request")
	ErrGenerationInFlight = errors.New("images are already being generated for this group")
	ErrUnknownGroup       = errors.New("group is not in the current list")
	ErrBrandRequired      = errors.New("brand name is required")
	ErrInvalidTransition  = errors.New("action not available in the current view")
)

type ticketKind int

const (
	kindGrouping ticketKind = iota + 1
	kindGeneration
)

// Ticket identifies one outstanding request.
type Ticket struct {
	ID      uint64
	kind    ticketKind
	Brand   string
	GroupID int
}

// Snapshot is an immutable copy of the state, safe to hand to renderers.
type Snapshot struct {
	Phase         Phase
	Brand         string
	Threshold     float64
	Groups        []domain.FeedbackGroup
	TotalFeedback int
	Selected      *domain.FeedbackGroup
	Images        []domain.GeneratedImage
	Generating    map[int]bool
	Error         string
	Notice        string
}

// IsGenerating reports whether a generation for groupID is outstanding.
func (s Snapshot) IsGenerating(groupID int) bool {
	return s.Generating[groupID]
}

type Studio struct {
	mu sync.Mutex

	phase         Phase
	brand         string
	threshold     float64
	groups        []domain.FeedbackGroup
	totalFeedback int
	selected      *domain.FeedbackGroup
	images        []domain.GeneratedImage
	inFlight      map[int]uint64
	lastErr       string
	notice        string

	nextID          uint64
	currentGrouping uint64
	currentGenerate uint64
}

func New(threshold float64) *Studio {
	if domain.ValidateThreshold(threshold) != nil {
		threshold = domain.DefaultThreshold
	}
	return &Studio{
		phase:     PhaseCollecting,
		threshold: threshold,
		inFlight:  make(map[int]uint64),
	}
}

func (s *Studio) issue(kind ticketKind) Ticket {
	s.nextID++
	return Ticket{ID: s.nextID, kind: kind}
}

func (s *Studio) SetThreshold(v float64) error {
	if err := domain.ValidateThreshold(v); err != nil {
		return fmt.Errorf("%w (got %.2f)", err, v)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.threshold = v
	return nil
}

func (s *Studio) Threshold() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.threshold
}

// BeginGrouping starts a group fetch for brand. Any earlier grouping ticket
// becomes stale.
func (s *Studio) BeginGrouping(brand string) (Ticket, error) {
	brand = strings.TrimSpace(brand)
	if brand == "" {
		return Ticket{}, ErrBrandRequired
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.issue(kindGrouping)
	t.Brand = brand
	s.currentGrouping = t.ID
	s.phase = PhaseGrouping
	s.lastErr = ""
	s.notice = ""
	return t, nil
}

// CompleteGrouping applies a grouping result. Zero groups keep the user on
// the collection screen with the empty-state notice.
func (s *Studio) CompleteGrouping(t Ticket, groups []domain.FeedbackGroup, totalFeedback int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t.kind != kindGrouping || t.ID != s.currentGrouping {
		return ErrStale
	}
	s.currentGrouping = 0

	s.groups = append([]domain.FeedbackGroup(nil), groups...)
	s.totalFeedback = totalFeedback
	s.brand = t.Brand
	s.selected = nil
	s.images = nil
	s.currentGenerate = 0
	s.inFlight = make(map[int]uint64)

	if len(groups) == 0 {
		s.phase = PhaseCollecting
		s.notice = EmptyGroupsNotice
		return nil
	}
	s.phase = PhaseBrowsing
	return nil
}

// FailGrouping records a failed fetch. The previous group list is cleared
// so the page never shows groups that belong to another brand or threshold,
// and the brand becomes the one that was asked for.
func (s *Studio) FailGrouping(t Ticket, err error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t.kind != kindGrouping || t.ID != s.currentGrouping {
		return ErrStale
	}
	s.currentGrouping = 0
	s.groups = nil
	s.totalFeedback = 0
	s.brand = t.Brand
	s.selected = nil
	s.images = nil
	s.currentGenerate = 0
	s.inFlight = make(map[int]uint64)
	s.phase = PhaseCollecting
	s.lastErr = fmt.Sprintf("Error loading groups: %v", err)
	return nil
}

// BeginGeneration selects groupID and starts a generation for it. Only one
// generation per group may be outstanding.
func (s *Studio) BeginGeneration(groupID int) (Ticket, domain.FeedbackGroup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase == PhaseCollecting || s.phase == PhaseGrouping {
		return Ticket{}, domain.FeedbackGroup{}, ErrInvalidTransition
	}
	if _, busy := s.inFlight[groupID]; busy {
		return Ticket{}, domain.FeedbackGroup{}, ErrGenerationInFlight
	}
	idx := s.indexOf(groupID)
	if idx < 0 {
		return Ticket{}, domain.FeedbackGroup{}, fmt.Errorf("%w: %d", ErrUnknownGroup, groupID)
	}

	t := s.issue(kindGeneration)
	t.Brand = s.brand
	t.GroupID = groupID
	s.inFlight[groupID] = t.ID
	s.currentGenerate = t.ID

	group := s.groups[idx]
	s.selected = &group
	s.images = nil
	s.lastErr = ""
	s.notice = ""
	s.phase = PhaseGenerating
	return t, group, nil
}

// Regenerate starts another round of variations for the selected group.
func (s *Studio) Regenerate() (Ticket, domain.FeedbackGroup, error) {
	s.mu.Lock()
	if s.selected == nil {
		s.mu.Unlock()
		return Ticket{}, domain.FeedbackGroup{}, ErrInvalidTransition
	}
	groupID := s.selected.GroupID
	s.mu.Unlock()
	return s.BeginGeneration(groupID)
}

// CompleteGeneration always clears the group's in-flight flag; the images
// are only applied when t is still the latest generation.
func (s *Studio) CompleteGeneration(t Ticket, images []domain.GeneratedImage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.release(t) {
		return ErrStale
	}
	s.currentGenerate = 0
	s.images = append([]domain.GeneratedImage(nil), images...)
	s.phase = PhaseViewing
	return nil
}

// FailGeneration clears the in-flight flag and returns to the group list,
// leaving groups untouched.
func (s *Studio) FailGeneration(t Ticket, err error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.release(t) {
		return ErrStale
	}
	s.currentGenerate = 0
	s.lastErr = fmt.Sprintf("Error generating images: %v", err)
	s.phase = PhaseBrowsing
	return nil
}

// release drops the in-flight flag held by t and reports whether t is the
// current generation.
func (s *Studio) release(t Ticket) bool {
	if t.kind != kindGeneration {
		return false
	}
	if id, ok := s.inFlight[t.GroupID]; ok && id == t.ID {
		delete(s.inFlight, t.GroupID)
	}
	return t.ID == s.currentGenerate
}

// BackToGroups leaves the results view. An outstanding generation is
// abandoned: its response will be discarded when it arrives.
func (s *Studio) BackToGroups() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.groups) == 0 {
		return ErrInvalidTransition
	}
	s.currentGenerate = 0
	s.phase = PhaseBrowsing
	return nil
}

// Reset returns to the collection screen and abandons every outstanding request.
func (s *Studio) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.phase = PhaseCollecting
	s.brand = ""
	s.groups = nil
	s.totalFeedback = 0
	s.selected = nil
	s.images = nil
	s.lastErr = ""
	s.notice = ""
	s.currentGrouping = 0
	s.currentGenerate = 0
	s.inFlight = make(map[int]uint64)
}

func (s *Studio) DismissError() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastErr = ""
	s.notice = ""
}

// Fail records an error banner without changing the view.
func (s *Studio) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastErr = err.Error()
}

// Group looks up a group in the current list.
func (s *Studio) Group(groupID int) (domain.FeedbackGroup, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.indexOf(groupID)
	if idx < 0 {
		return domain.FeedbackGroup{}, false
	}
	return s.groups[idx], true
}

func (s *Studio) indexOf(groupID int) int {
	for i := range s.groups {
		if s.groups[i].GroupID == groupID {
			return i
		}
	}
	return -1
}

func (s *Studio) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		Phase:         s.phase,
		Brand:         s.brand,
		Threshold:     s.threshold,
		Groups:        append([]domain.FeedbackGroup(nil), s.groups...),
		TotalFeedback: s.totalFeedback,
		Images:        append([]domain.GeneratedImage(nil), s.images...),
		Generating:    make(map[int]bool, len(s.inFlight)),
		Error:         s.lastErr,
		Notice:        s.notice,
	}
	if s.selected != nil {
		sel := *s.selected
		snap.Selected = &sel
	}
	for id := range s.inFlight {
		snap.Generating[id] = true
	}
	return snap
}
