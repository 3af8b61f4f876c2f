package themes

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// Theme is a named palette applied to every slide of a deck
type Theme struct {
	ID            string
	Name          string
	Background    Color // Slide background
	Primary       Color // Title banner fill
	Text          Color // Body text
	Accent        Color // Bullets and highlights
	TextOnPrimary Color // Text drawn on the banner
	SubtleText    Color // Footer and notes
}

// Color is an 8-bit sRGB color
type Color struct {
	R8, G8, B8 uint8
}

// NewColorFromHex creates a Color from a hex string (e.g., "#0ea5e9" or "0EA5E9")
func NewColorFromHex(hex string) (Color, error) {
	hex = strings.TrimPrefix(strings.TrimSpace(hex), "#")
	if len(hex) != 6 {
		return Color{}, fmt.Errorf("invalid hex color: %s (expected 6 characters)", hex)
	}

	r, err := strconv.ParseUint(hex[0:2], 16, 8)
	if err != nil {
		return Color{}, fmt.Errorf("invalid red component in hex: %s", hex)
	}
	g, err := strconv.ParseUint(hex[2:4], 16, 8)
	if err != nil {
		return Color{}, fmt.Errorf("invalid green component in hex: %s", hex)
	}
	b, err := strconv.ParseUint(hex[4:6], 16, 8)
	if err != nil {
		return Color{}, fmt.Errorf("invalid blue component in hex: %s", hex)
	}

	return NewColorFromRGB8(uint8(r), uint8(g), uint8(b)), nil
}

// NewColorFromRGB8 creates a Color from 8-bit RGB values
func NewColorFromRGB8(r, g, b uint8) Color {
	return Color{R8: r, G8: g, B8: b}
}

func mustHex(hex string) Color {
	c, err := NewColorFromHex(hex)
	if err != nil {
		panic(err)
	}
	return c
}

// Hex returns the lowercase "#rrggbb" representation
func (c Color) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R8, c.G8, c.B8)
}

// OOXML returns the uppercase "RRGGBB" form used by srgbClr elements
func (c Color) OOXML() string {
	return fmt.Sprintf("%02X%02X%02X", c.R8, c.G8, c.B8)
}

// Built-in themes
var (
	// OceanBlue is the default light theme with a sky blue banner
	OceanBlue = Theme{
		ID:            "ocean-blue",
		Name:          "Ocean Blue",
		Background:    mustHex("F3F4F6"),
		Primary:       mustHex("0EA5E9"),
		Text:          mustHex("374151"),
		Accent:        mustHex("0284C7"),
		TextOnPrimary: mustHex("FFFFFF"),
		SubtleText:    mustHex("6B7280"),
	}

	// GraphiteGray is a dark theme
	GraphiteGray = Theme{
		ID:            "graphite-gray",
		Name:          "Graphite Gray",
		Background:    mustHex("1F2937"),
		Primary:       mustHex("4B5563"),
		Text:          mustHex("E5E7EB"),
		Accent:        mustHex("9CA3AF"),
		TextOnPrimary: mustHex("FFFFFF"),
		SubtleText:    mustHex("9CA3AF"),
	}

	// MintyFresh is a light green theme
	MintyFresh = Theme{
		ID:            "minty-fresh",
		Name:          "Minty Fresh",
		Background:    mustHex("ECFDF5"),
		Primary:       mustHex("34D399"),
		Text:          mustHex("065F46"),
		Accent:        mustHex("059669"),
		TextOnPrimary: mustHex("FFFFFF"),
		SubtleText:    mustHex("52525B"),
	}
)

// DefaultID is the id of the theme used when none is selected
const DefaultID = "ocean-blue"

var (
	mu        sync.RWMutex
	available = map[string]Theme{
		OceanBlue.ID:    OceanBlue,
		GraphiteGray.ID: GraphiteGray,
		MintyFresh.ID:   MintyFresh,
	}
)

// Get returns a theme by id, or an error if not found
func Get(id string) (Theme, error) {
	id = strings.ToLower(strings.TrimSpace(id))
	mu.RLock()
	defer mu.RUnlock()
	if theme, ok := available[id]; ok {
		return theme, nil
	}
	return Theme{}, fmt.Errorf("unknown theme: %s", id)
}

// List returns all registered themes sorted by id
func List() []Theme {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]Theme, 0, len(available))
	for _, t := range available {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// IDs returns the registered theme ids sorted
func IDs() []string {
	themes := List()
	ids := make([]string, len(themes))
	for i, t := range themes {
		ids[i] = t.ID
	}
	return ids
}

// Register adds or replaces a theme in the registry
func Register(t Theme) error {
	id := strings.ToLower(strings.TrimSpace(t.ID))
	if id == "" {
		return fmt.Errorf("theme id is required")
	}
	t.ID = id
	if t.Name == "" {
		t.Name = id
	}
	mu.Lock()
	available[id] = t
	mu.Unlock()
	return nil
}

// Default returns the default theme
func Default() Theme {
	return OceanBlue
}

// Definition is the hex form of a theme, as found in config files
type Definition struct {
	ID            string `yaml:"id" json:"id"`
	Name          string `yaml:"name" json:"name"`
	Background    string `yaml:"background" json:"background"`
	Primary       string `yaml:"primary" json:"primary"`
	Text          string `yaml:"text" json:"text"`
	Accent        string `yaml:"accent" json:"accent"`
	TextOnPrimary string `yaml:"text_on_primary" json:"textOnPrimary"`
	SubtleText    string `yaml:"subtle_text" json:"subtleText"`
}

// NewCustomTheme creates a theme from hex colors
func NewCustomTheme(s Definition) (Theme, error) {
	if strings.TrimSpace(s.ID) == "" {
		return Theme{}, fmt.Errorf("theme id is required")
	}
	t := Theme{ID: strings.ToLower(strings.TrimSpace(s.ID)), Name: s.Name}
	fields := []struct {
		name string
		hex  string
		dst  *Color
	}{
		{"background", s.Background, &t.Background},
		{"primary", s.Primary, &t.Primary},
		{"text", s.Text, &t.Text},
		{"accent", s.Accent, &t.Accent},
		{"text_on_primary", s.TextOnPrimary, &t.TextOnPrimary},
		{"subtle_text", s.SubtleText, &t.SubtleText},
	}
	for _, f := range fields {
		c, err := NewColorFromHex(f.hex)
		if err != nil {
			return Theme{}, fmt.Errorf("theme %s: invalid %s color: %w", t.ID, f.name, err)
		}
		*f.dst = c
	}
	if t.Name == "" {
		t.Name = t.ID
	}
	return t, nil
}

// ToDefinition returns the hex form of the theme
func (t Theme) ToDefinition() Definition {
	return Definition{
		ID:            t.ID,
		Name:          t.Name,
		Background:    t.Background.Hex(),
		Primary:       t.Primary.Hex(),
		Text:          t.Text.Hex(),
		Accent:        t.Accent.Hex(),
		TextOnPrimary: t.TextOnPrimary.Hex(),
		SubtleText:    t.SubtleText.Hex(),
	}
}
