// Package domain holds the brand studio data model shared by the API
// client, the workflow state and the front ends.
package domain

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var ErrInvalidPreference = errors.New("invalid preference")

// PreferenceMoodboardID is the moodboard id under which form submissions are stored.
const PreferenceMoodboardID = "preference_collection"

type Tone string

const (
	ToneModern       Tone = "modern"
	ToneLuxury       Tone = "luxury"
	TonePlayful      Tone = "playful"
	ToneProfessional Tone = "professional"
	ToneVintage      Tone = "vintage"
	ToneSleek        Tone = "sleek"
	ToneFuturistic   Tone = "futuristic"
	ToneClassic      Tone = "classic"
	ToneSporty       Tone = "sporty"
	ToneBold         Tone = "bold"
	ToneLoud         Tone = "loud"
	ToneHolistic     Tone = "holistic"
	ToneAdventurous  Tone = "adventurous"
	ToneWild         Tone = "wild"
	ToneQuirky       Tone = "quirky"
)

var Tones = []Tone{
	ToneModern, ToneLuxury, TonePlayful, ToneProfessional, ToneVintage,
	ToneSleek, ToneFuturistic, ToneClassic, ToneSporty, ToneBold,
	ToneLoud, ToneHolistic, ToneAdventurous, ToneWild, ToneQuirky,
}

type VisualStyle string

const (
	StyleMinimalist VisualStyle = "minimalist"
	StyleRetro      VisualStyle = "retro"
	StyleCorporate  VisualStyle = "corporate"
	StyleOrganic    VisualStyle = "organic"
	StyleIndustrial VisualStyle = "industrial"
	StyleRigid      VisualStyle = "rigid"
	StyleGeometric  VisualStyle = "geometric"
	StyleDark       VisualStyle = "dark"
	StyleVibrant    VisualStyle = "vibrant"
	StyleAbstract   VisualStyle = "abstract"
)

var VisualStyles = []VisualStyle{
	StyleMinimalist, StyleRetro, StyleCorporate, StyleOrganic, StyleIndustrial,
	StyleRigid, StyleGeometric, StyleDark, StyleVibrant, StyleAbstract,
}

// DefaultColors is the palette the form starts with.
var DefaultColors = []string{"#3B82F6", "#8B5CF6", "#EC4899"}

var hexColor = regexp.MustCompile(`^#([0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

// Preference is one brand preference submission collected by the form.
type Preference struct {
	BrandName   string      `json:"brand_name"`
	Description string      `json:"description"`
	Tone        Tone        `json:"tone"`
	VisualStyle VisualStyle `json:"visual_style"`
	Colors      []string    `json:"colors"`
	Dislikes    string      `json:"dislikes"`
}

// NewPreference returns a preference with the form defaults applied.
func NewPreference(brand, description string) Preference {
	return Preference{
		BrandName:   brand,
		Description: description,
		Tone:        ToneModern,
		VisualStyle: StyleMinimalist,
		Colors:      append([]string(nil), DefaultColors...),
	}
}

func (t Tone) Valid() bool {
	for _, known := range Tones {
		if t == known {
			return true
		}
	}
	return false
}

func (s VisualStyle) Valid() bool {
	for _, known := range VisualStyles {
		if s == known {
			return true
		}
	}
	return false
}

func (p Preference) Validate() error {
	if strings.TrimSpace(p.BrandName) == "" || strings.TrimSpace(p.Description) == "" {
		return fmt.Errorf("%w: please enter both brand name and preference description", ErrInvalidPreference)
	}
	if !p.Tone.Valid() {
		return fmt.Errorf("%w: unknown tone %q", ErrInvalidPreference, p.Tone)
	}
	if !p.VisualStyle.Valid() {
		return fmt.Errorf("%w: unknown visual style %q", ErrInvalidPreference, p.VisualStyle)
	}
	for _, c := range p.Colors {
		if !hexColor.MatchString(c) {
			return fmt.Errorf("%w: color %q is not a hex value", ErrInvalidPreference, c)
		}
	}
	return nil
}

// FeedbackText flattens the preference into the single text the grouping
// service embeds.
func (p Preference) FeedbackText() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Brand: %s. Preference: %s. Tone: %s. Style: %s. Colors: %s.",
		p.BrandName, p.Description, p.Tone, p.VisualStyle, strings.Join(p.Colors, ", "))
	if d := strings.TrimSpace(p.Dislikes); d != "" {
		b.WriteString(" Avoid: ")
		b.WriteString(d)
	}
	return b.String()
}

// Metadata is the structured copy of the preference stored next to the text.
func (p Preference) Metadata() map[string]any {
	colors := p.Colors
	if colors == nil {
		colors = []string{}
	}
	return map[string]any{
		"brand_name":   p.BrandName,
		"description":  p.Description,
		"tone":         string(p.Tone),
		"colors":       colors,
		"visual_style": string(p.VisualStyle),
		"dislikes":     p.Dislikes,
	}
}
