package grading

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// Band maps every percentage at or above MinPercent to Label.
type Band struct {
	MinPercent float64 `json:"min_percent" yaml:"min_percent"`
	Label      string  `json:"label" yaml:"label"`
}

// GradeScale is an institution's banding of score percentages into grades.
type GradeScale struct {
	bands []Band
}

// DefaultGradeScale is the conventional A-F scale. It is only a starting value for
// configuration; the aggregator never assumes it.
var DefaultGradeScale = GradeScale{bands: []Band{
	{90, "A"},
	{80, "B"},
	{70, "C"},
	{60, "D"},
	{0, "F"},
}}

// NewGradeScale validates bands and orders them from the highest threshold down.
func NewGradeScale(bands ...Band) (GradeScale, error) {
	sorted := slices.Clone(bands)
	seen := make(map[float64]bool, len(sorted))
	for _, b := range sorted {
		if b.MinPercent < 0 || b.MinPercent > 100 {
			return GradeScale{}, fmt.Errorf("band %q: threshold %v outside 0..100", b.Label, b.MinPercent)
		}
		if strings.TrimSpace(b.Label) == "" {
			return GradeScale{}, fmt.Errorf("band at %v has an empty label", b.MinPercent)
		}
		if seen[b.MinPercent] {
			return GradeScale{}, fmt.Errorf("two bands share threshold %v", b.MinPercent)
		}
		seen[b.MinPercent] = true
	}
	slices.SortFunc(sorted, func(a, b Band) int {
		switch {
		case a.MinPercent > b.MinPercent:
			return -1
		case a.MinPercent < b.MinPercent:
			return 1
		}
		return 0
	})
	return GradeScale{bands: sorted}, nil
}

// ParseGradeScale parses "A:90,B:80,C:70,D:60,F:0".
func ParseGradeScale(s string) (GradeScale, error) {
	var bands []Band
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		label, min, ok := strings.Cut(part, ":")
		if !ok {
			return GradeScale{}, fmt.Errorf("band %q: want LABEL:MIN", part)
		}
		pct, err := strconv.ParseFloat(strings.TrimSpace(min), 64)
		if err != nil {
			return GradeScale{}, fmt.Errorf("band %q: %w", part, err)
		}
		bands = append(bands, Band{MinPercent: pct, Label: strings.TrimSpace(label)})
	}
	return NewGradeScale(bands...)
}

// Bands returns the bands from the highest threshold down.
func (g GradeScale) Bands() []Band {
	return slices.Clone(g.bands)
}

// String formats the scale the way ParseGradeScale reads it.
func (g GradeScale) String() string {
	parts := make([]string, len(g.bands))
	for i, b := range g.bands {
		parts[i] = b.Label + ":" + strconv.FormatFloat(b.MinPercent, 'f', -1, 64)
	}
	return strings.Join(parts, ",")
}

// Grade returns the label for pct, or "" when no band covers it.
func (g GradeScale) Grade(pct float64) string {
	for _, b := range g.bands {
		if pct >= b.MinPercent {
			return b.Label
		}
	}
	return ""
}
