package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// GeneratedImage is one variation returned by the generation endpoint.
// Exactly one of URL and Base64 is expected to be set.
type GeneratedImage struct {
	URL             string    `json:"url,omitempty"`
	Base64          string    `json:"base64,omitempty"`
	VariationNumber int       `json:"variation_number"`
	CreatedAt       Timestamp `json:"created_at"`
	RevisedPrompt   string    `json:"revised_prompt,omitempty"`
}

func (img GeneratedImage) Inline() bool {
	return img.URL == "" && img.Base64 != ""
}

// Source is what an <img src> or a viewer should be pointed at.
func (img GeneratedImage) Source() string {
	if img.Inline() {
		return "data:image/png;base64," + img.Base64
	}
	return img.URL
}

var whitespace = regexp.MustCompile(`\s+`)

// Filename builds the download name, e.g. "Acme_Corp_group3_v1.png".
// groupID < 0 omits the group part.
func (img GeneratedImage) Filename(brand string, groupID int) string {
	name := whitespace.ReplaceAllString(strings.TrimSpace(brand), "_")
	if name == "" {
		name = "design"
	}
	if groupID >= 0 {
		return fmt.Sprintf("%s_group%d_v%d.png", name, groupID, img.VariationNumber)
	}
	return fmt.Sprintf("%s_v%d.png", name, img.VariationNumber)
}

// Timestamp accepts the handful of layouts the generation service emits,
// including naive ISO timestamps without a zone and epoch seconds or
// milliseconds. The field is display-only: a value no layout matches
// leaves Time zero and is kept in Raw instead of failing the decode.
type Timestamp struct {
	time.Time
	Raw string
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999-0700",
	"2006-01-02T15:04:05.999999999Z0700",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999-0700",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// epochMillisCutoff separates epoch seconds from epoch milliseconds.
const epochMillisCutoff = 1e11

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	t.Time, t.Raw = time.Time{}, ""
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	if len(data) > 0 && data[0] != '"' {
		var n float64
		if err := json.Unmarshal(data, &n); err != nil {
			t.Raw = string(data)
			return nil
		}
		t.Time = fromEpoch(n)
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("timestamp: %w", err)
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed
			return nil
		}
	}
	if n, err := strconv.ParseFloat(s, 64); err == nil {
		t.Time = fromEpoch(n)
		return nil
	}
	t.Raw = s
	return nil
}

func fromEpoch(n float64) time.Time {
	if n > epochMillisCutoff {
		return time.UnixMilli(int64(n)).UTC()
	}
	sec := int64(n)
	return time.Unix(sec, int64((n-float64(sec))*1e9)).UTC()
}

// Unparsed reports whether the wire value was present but not understood.
func (t Timestamp) Unparsed() bool {
	return t.Raw != ""
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Format(time.RFC3339Nano))
}
