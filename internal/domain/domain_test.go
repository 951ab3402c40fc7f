package domain

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPreference_FeedbackText(t *testing.T) {
	p := Preference{
		BrandName:   "Nike",
		Description: "bold sporty",
		Tone:        ToneBold,
		VisualStyle: StyleGeometric,
		Colors:      []string{"#000000"},
	}

	require.NoError(t, p.Validate())
	assert.Equal(t, "Brand: Nike. Preference: bold sporty. Tone: bold. Style: geometric. Colors: #000000.", p.FeedbackText())

	p.Dislikes = "  pastel colours "
	assert.Equal(t, "Brand: Nike. Preference: bold sporty. Tone: bold. Style: geometric. Colors: #000000. Avoid: pastel colours", p.FeedbackText())
}

func TestPreference_Validate(t *testing.T) {
	tests := []struct {
		name string
		edit func(p *Preference)
	}{
		{"blank brand", func(p *Preference) { p.BrandName = "  " }},
		{"blank description", func(p *Preference) { p.Description = "" }},
		{"unknown tone", func(p *Preference) { p.Tone = "grumpy" }},
		{"unknown style", func(p *Preference) { p.VisualStyle = "baroque" }},
		{"bad color", func(p *Preference) { p.Colors = []string{"blue"} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPreference("Acme", "clean and calm")
			tt.edit(&p)
			err := p.Validate()
			assert.True(t, errors.Is(err, ErrInvalidPreference), "got %v", err)
		})
	}

	p := NewPreference("Acme", "clean and calm")
	assert.NoError(t, p.Validate())
	assert.Equal(t, DefaultColors, p.Colors)
}

func TestPreference_Metadata(t *testing.T) {
	p := Preference{BrandName: "Acme", Description: "calm", Tone: ToneSleek, VisualStyle: StyleDark}
	md := p.Metadata()
	assert.Equal(t, "sleek", md["tone"])
	assert.Equal(t, "dark", md["visual_style"])
	assert.Equal(t, []string{}, md["colors"])
}

func TestThreshold(t *testing.T) {
	steps := ThresholdSteps()
	require.Len(t, steps, 8)
	assert.InDelta(t, 0.60, steps[0], 1e-9)
	assert.InDelta(t, 0.95, steps[len(steps)-1], 1e-9)
	for _, s := range steps {
		assert.NoError(t, ValidateThreshold(s))
	}

	assert.ErrorIs(t, ValidateThreshold(0.55), ErrInvalidThreshold)
	assert.ErrorIs(t, ValidateThreshold(1.0), ErrInvalidThreshold)
	assert.ErrorIs(t, ValidateThreshold(0.72), ErrInvalidThreshold)
	assert.NoError(t, ValidateThreshold(0.85))
}

func TestFeedbackGroup_Relevance(t *testing.T) {
	assert.Equal(t, 87, FeedbackGroup{Relevance: 0.866}.RelevancePercent())
	assert.Equal(t, 100, FeedbackGroup{Relevance: 1}.RelevancePercent())
	assert.Equal(t, "excellent", FeedbackGroup{Relevance: 0.93}.RelevanceTier())
	assert.Equal(t, "strong", FeedbackGroup{Relevance: 0.8}.RelevanceTier())
	assert.Equal(t, "moderate", FeedbackGroup{Relevance: 0.75}.RelevanceTier())
	assert.Equal(t, "weak", FeedbackGroup{Relevance: 0.2}.RelevanceTier())
}

func TestValidateGroups(t *testing.T) {
	assert.NoError(t, ValidateGroups([]FeedbackGroup{{GroupID: 1, Relevance: 0.5}, {GroupID: 2, Relevance: 1}}))
	assert.Error(t, ValidateGroups([]FeedbackGroup{{GroupID: 1, Relevance: 1.2}}))
	assert.Error(t, ValidateGroups([]FeedbackGroup{{GroupID: 1}, {GroupID: 1}}))
}

func TestFeedbackItem_PreservesUnknownFields(t *testing.T) {
	in := `{"feedback_text":"make it pop","brand_name":"Acme","vector_id":"abc","created_at":"2025-03-01T10:00:00.123456"}`

	var item FeedbackItem
	require.NoError(t, json.Unmarshal([]byte(in), &item))
	assert.Equal(t, "make it pop", item.FeedbackText)
	assert.Equal(t, 2025, item.CreatedAt.Year())

	out, err := json.Marshal(item)
	require.NoError(t, err)
	assert.JSONEq(t, in, string(out))
}

func TestGeneratedImage(t *testing.T) {
	img := GeneratedImage{URL: "https://cdn.example.com/a.png", VariationNumber: 2}
	assert.False(t, img.Inline())
	assert.Equal(t, "https://cdn.example.com/a.png", img.Source())
	assert.Equal(t, "Acme_Corp_v2.png", img.Filename(" Acme  Corp", -1))
	assert.Equal(t, "Acme_Corp_group4_v2.png", img.Filename("Acme Corp", 4))

	inline := GeneratedImage{Base64: "aGVsbG8=", VariationNumber: 1}
	assert.True(t, inline.Inline())
	assert.Equal(t, "data:image/png;base64,aGVsbG8=", inline.Source())
}

func TestTimestamp(t *testing.T) {
	var img GeneratedImage
	require.NoError(t, json.Unmarshal([]byte(`{"url":"u","variation_number":1,"created_at":"2025-01-02T03:04:05Z"}`), &img))
	assert.Equal(t, time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC), img.CreatedAt.Time)

	require.NoError(t, json.Unmarshal([]byte(`{"created_at":null}`), &img))
	assert.True(t, img.CreatedAt.IsZero())

	require.NoError(t, json.Unmarshal([]byte(`{"url":"u","created_at":"yesterday"}`), &img))
	assert.True(t, img.CreatedAt.IsZero())
	assert.True(t, img.CreatedAt.Unparsed())
	assert.Equal(t, "yesterday", img.CreatedAt.Raw)
	assert.Equal(t, "u", img.URL, "the rest of the image still decodes")
}

func TestTimestamp_Layouts(t *testing.T) {
	want := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)
	cases := map[string]string{
		"rfc3339":              `"2024-01-15T10:30:00Z"`,
		"offset without colon": `"2024-01-15T10:30:00.000000+0000"`,
		"shifted offset":       `"2024-01-15T12:30:00+0200"`,
		"space separated":      `"2024-01-15 10:30:00+00:00"`,
		"epoch seconds":        `1705314600`,
		"epoch millis":         `1705314600000`,
		"epoch string":         `"1705314600"`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			var ts Timestamp
			require.NoError(t, json.Unmarshal([]byte(raw), &ts))
			assert.False(t, ts.Unparsed())
			assert.True(t, want.Equal(ts.Time), "got %v", ts.Time)
		})
	}

	var ts Timestamp
	require.NoError(t, json.Unmarshal([]byte(`"2024-01-15T10:30:00.123456+0000"`), &ts))
	assert.Equal(t, 123456000, ts.Nanosecond())

	require.NoError(t, json.Unmarshal([]byte(`true`), &ts))
	assert.True(t, ts.Unparsed())
	assert.True(t, ts.IsZero())
}

func TestChatMessage_Lifecycle(t *testing.T) {
	reply := NewPendingReply()
	assert.True(t, reply.Loading)
	assert.Equal(t, SenderAssistant, reply.Sender)

	reply.Resolve("2 images", []GeneratedImage{{URL: "a"}, {URL: "b"}})
	assert.False(t, reply.Loading)
	assert.Len(t, reply.Images, 2)

	reply.Fail(errors.New("boom"))
	assert.True(t, reply.Failed)
	assert.Equal(t, "boom", reply.Text)

	user := NewUserMessage("hello", "moodboard.png")
	assert.Equal(t, SenderUser, user.Sender)
	assert.NotEqual(t, user.ID, reply.ID)
}
