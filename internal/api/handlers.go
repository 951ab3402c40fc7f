package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"brandviz.io/studio/internal/client"
	"brandviz.io/studio/internal/core"
	"brandviz.io/studio/internal/domain"
	"brandviz.io/studio/internal/logging"
	"brandviz.io/studio/internal/store"
	"brandviz.io/studio/internal/workflow"
)

const historyLimit = 50

// Streamer sends an image to the browser as a download.
type Streamer interface {
	Stream(w http.ResponseWriter, r *http.Request, img domain.GeneratedImage, filename string)
}

// HistoryReader lists what this client submitted and generated.
type HistoryReader interface {
	ListSubmissions(brand string, limit int) ([]store.Submission, error)
	ListGenerations(brand string, limit int) ([]store.Generation, error)
}

type HealthChecker interface {
	HealthCheck(ctx context.Context) (*client.HealthResponse, error)
}

// Dependencies are the services the web UI drives. History and Health may be nil.
type Dependencies struct {
	Preferences *core.PreferenceService
	Studio      *core.StudioService
	Downloader  Streamer
	History     HistoryReader
	Health      HealthChecker
}

type APIHandler struct {
	preferences *core.PreferenceService
	studio      *core.StudioService
	downloader  Streamer
	history     HistoryReader
	health      HealthChecker
	renderer    *Renderer
	logger      *zap.Logger
}

func NewAPIHandler(deps Dependencies, renderer *Renderer, logger *zap.Logger) *APIHandler {
	return &APIHandler{
		preferences: deps.Preferences,
		studio:      deps.Studio,
		downloader:  deps.Downloader,
		history:     deps.History,
		health:      deps.Health,
		renderer:    renderer,
		logger:      logging.OrNop(logger).Named("web"),
	}
}

type formPage struct {
	Title      string
	Preference domain.Preference
	Error      string
}

type submittedPage struct {
	Title     string
	BrandName string
	Stored    bool
}

type studioPage struct {
	Title string
	State workflow.Snapshot
}

type historyPage struct {
	Title       string
	Brand       string
	Submissions []store.Submission
	Generations []store.Generation
	Error       string
}

// Preference form

func (h *APIHandler) FormHandler(w http.ResponseWriter, r *http.Request) {
	h.renderer.Render(w, http.StatusOK, "form.html", formPage{
		Title:      "Brand Preferences",
		Preference: domain.NewPreference("", ""),
	})
}

func (h *APIHandler) SubmitPreferenceHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form body: "+err.Error(), http.StatusBadRequest)
		return
	}
	p := preferenceFromForm(r)

	resp, err := h.preferences.Submit(r.Context(), p)
	if err != nil {
		status := http.StatusBadGateway
		msg := "Error submitting preference: " + err.Error()
		if errors.Is(err, domain.ErrInvalidPreference) {
			status = http.StatusBadRequest
			msg = strings.TrimPrefix(err.Error(), domain.ErrInvalidPreference.Error()+": ")
		} else {
			h.logger.Error("Error submitting preference", zap.String("brand", p.BrandName), zap.Error(err))
		}
		h.renderer.Render(w, status, "form.html", formPage{Title: "Brand Preferences", Preference: p, Error: msg})
		return
	}

	h.renderer.Render(w, http.StatusOK, "submitted.html", submittedPage{
		Title:     "Thank you",
		BrandName: strings.TrimSpace(p.BrandName),
		Stored:    resp.Stored,
	})
}

func preferenceFromForm(r *http.Request) domain.Preference {
	p := domain.Preference{
		BrandName:   r.PostForm.Get("brand_name"),
		Description: r.PostForm.Get("description"),
		Tone:        domain.Tone(r.PostForm.Get("tone")),
		VisualStyle: domain.VisualStyle(r.PostForm.Get("visual_style")),
		Dislikes:    strings.TrimSpace(r.PostForm.Get("dislikes")),
	}
	if p.Tone == "" {
		p.Tone = domain.ToneModern
	}
	if p.VisualStyle == "" {
		p.VisualStyle = domain.StyleMinimalist
	}
	for _, v := range r.PostForm["colors"] {
		for _, c := range strings.Split(v, ",") {
			if c = strings.TrimSpace(c); c != "" {
				p.Colors = append(p.Colors, c)
			}
		}
	}
	if len(p.Colors) == 0 {
		p.Colors = append([]string(nil), domain.DefaultColors...)
	}
	return p
}

// Studio: threshold → groups → results

// StudioHandler renders whichever view the workflow is in.
func (h *APIHandler) StudioHandler(w http.ResponseWriter, r *http.Request) {
	snap := h.studio.State().Snapshot()
	switch snap.Phase {
	case workflow.PhaseBrowsing, workflow.PhaseGenerating:
		h.renderer.Render(w, http.StatusOK, "groups.html", studioPage{Title: "Feedback Groups", State: snap})
	case workflow.PhaseViewing:
		h.renderer.Render(w, http.StatusOK, "results.html", studioPage{Title: "Generated Designs", State: snap})
	default:
		h.renderer.Render(w, http.StatusOK, "threshold.html", studioPage{Title: "Design Studio", State: snap})
	}
}

func (h *APIHandler) FetchGroupsHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form body: "+err.Error(), http.StatusBadRequest)
		return
	}
	state := h.studio.State()

	if raw := r.PostForm.Get("threshold"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err == nil {
			err = state.SetThreshold(v)
		}
		if err != nil {
			state.Fail(err)
			http.Redirect(w, r, "/admin", http.StatusSeeOther)
			return
		}
	}

	brand := r.PostForm.Get("brand_name")
	if err := h.studio.FetchGroups(r.Context(), brand); err != nil {
		h.surface(err)
	}
	http.Redirect(w, r, "/admin", http.StatusSeeOther)
}

func (h *APIHandler) GenerateHandler(w http.ResponseWriter, r *http.Request) {
	groupID, err := strconv.Atoi(chi.URLParam(r, "groupID"))
	if err != nil {
		http.Error(w, "Invalid group id", http.StatusBadRequest)
		return
	}
	n := formInt(r, "n_variations")

	if err := h.studio.Generate(r.Context(), groupID, n); err != nil {
		h.surface(err)
	}
	http.Redirect(w, r, "/admin", http.StatusSeeOther)
}

func (h *APIHandler) RegenerateHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.studio.Regenerate(r.Context(), formInt(r, "n_variations")); err != nil {
		h.surface(err)
	}
	http.Redirect(w, r, "/admin", http.StatusSeeOther)
}

func (h *APIHandler) ResultsHandler(w http.ResponseWriter, r *http.Request) {
	snap := h.studio.State().Snapshot()
	if snap.Phase != workflow.PhaseViewing {
		http.Redirect(w, r, "/admin", http.StatusSeeOther)
		return
	}
	h.renderer.Render(w, http.StatusOK, "results.html", studioPage{Title: "Generated Designs", State: snap})
}

// DownloadImageHandler serves the n-th image (1-based) of the current results.
func (h *APIHandler) DownloadImageHandler(w http.ResponseWriter, r *http.Request) {
	n, err := strconv.Atoi(chi.URLParam(r, "n"))
	if err != nil {
		http.Error(w, "Invalid image number", http.StatusBadRequest)
		return
	}
	snap := h.studio.State().Snapshot()
	if n < 1 || n > len(snap.Images) {
		http.Error(w, "Image not found", http.StatusNotFound)
		return
	}

	img := snap.Images[n-1]
	groupID := -1
	if snap.Selected != nil {
		groupID = snap.Selected.GroupID
	}
	h.downloader.Stream(w, r, img, img.Filename(snap.Brand, groupID))
}

func (h *APIHandler) BackHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.studio.State().BackToGroups(); err != nil {
		h.logger.Debug("Nothing to go back to", zap.Error(err))
	}
	http.Redirect(w, r, "/admin", http.StatusSeeOther)
}

func (h *APIHandler) ResetHandler(w http.ResponseWriter, r *http.Request) {
	h.studio.State().Reset()
	http.Redirect(w, r, "/admin", http.StatusSeeOther)
}

func (h *APIHandler) DismissHandler(w http.ResponseWriter, r *http.Request) {
	h.studio.State().DismissError()
	http.Redirect(w, r, "/admin", http.StatusSeeOther)
}

// surface puts err on the page banner. Stale responses are dropped
// silently, and errors the services already recorded are not repeated.
func (h *APIHandler) surface(err error) {
	switch {
	case core.IsStale(err):
		return
	case errors.Is(err, workflow.ErrGenerationInFlight),
		errors.Is(err, workflow.ErrUnknownGroup),
		errors.Is(err, workflow.ErrBrandRequired),
		errors.Is(err, workflow.ErrInvalidTransition):
		h.studio.State().Fail(err)
	}
}

func formInt(r *http.Request, key string) int {
	v, err := strconv.Atoi(r.FormValue(key))
	if err != nil {
		return 0
	}
	return v
}

// History

func (h *APIHandler) HistoryHandler(w http.ResponseWriter, r *http.Request) {
	page := historyPage{Title: "History", Brand: strings.TrimSpace(r.URL.Query().Get("brand"))}
	if h.history == nil {
		page.Error = "Local history is disabled."
		h.renderer.Render(w, http.StatusOK, "history.html", page)
		return
	}

	var err error
	page.Submissions, err = h.history.ListSubmissions(page.Brand, historyLimit)
	if err == nil {
		page.Generations, err = h.history.ListGenerations(page.Brand, historyLimit)
	}
	if err != nil {
		h.logger.Error("Error loading history", zap.Error(err))
		page.Error = "Failed to load history"
	}
	h.renderer.Render(w, http.StatusOK, "history.html", page)
}

// JSON

type stateResponse struct {
	Phase         workflow.Phase          `json:"phase"`
	Brand         string                  `json:"brand"`
	Threshold     float64                 `json:"threshold"`
	TotalFeedback int                     `json:"total_feedback"`
	Groups        []domain.FeedbackGroup  `json:"groups"`
	SelectedGroup *int                    `json:"selected_group,omitempty"`
	Generating    []int                   `json:"generating"`
	Images        []domain.GeneratedImage `json:"images"`
	Error         string                  `json:"error,omitempty"`
	Notice        string                  `json:"notice,omitempty"`
}

func (h *APIHandler) StateHandler(w http.ResponseWriter, r *http.Request) {
	snap := h.studio.State().Snapshot()
	resp := stateResponse{
		Phase:         snap.Phase,
		Brand:         snap.Brand,
		Threshold:     snap.Threshold,
		TotalFeedback: snap.TotalFeedback,
		Groups:        snap.Groups,
		Generating:    []int{},
		Images:        snap.Images,
		Error:         snap.Error,
		Notice:        snap.Notice,
	}
	if resp.Groups == nil {
		resp.Groups = []domain.FeedbackGroup{}
	}
	if resp.Images == nil {
		resp.Images = []domain.GeneratedImage{}
	}
	if snap.Selected != nil {
		id := snap.Selected.GroupID
		resp.SelectedGroup = &id
	}
	for _, g := range snap.Groups {
		if snap.IsGenerating(g.GroupID) {
			resp.Generating = append(resp.Generating, g.GroupID)
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *APIHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{"status": "ok"}
	if h.health != nil {
		remote, err := h.health.HealthCheck(r.Context())
		if err != nil {
			resp["remote_error"] = err.Error()
		} else {
			resp["remote"] = remote
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
