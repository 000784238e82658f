// Package ranking deduplicates, filters and orders scored candidates.
package ranking

import (
	"sort"
	"strings"

	"github.com/FranksOps/coursefinder/internal/platform"
	"github.com/FranksOps/coursefinder/internal/scoring"
)

// MinQuality is the lowest score that survives filtering.
const MinQuality = 3

// Size buckets.
const (
	SizeUnknown = "Unknown size"
	SizeMedium  = "Medium (1-999MB)"
	SizeLarge   = "Large (1GB+)"
)

// Result is a ranked candidate ready for presentation.
type Result struct {
	scoring.Candidate
	DisplayTitle string `json:"display_title"`
	Glyph        string `json:"glyph"`
	SizeBucket   string `json:"size_bucket"`
}

// Rank drops duplicate links (first occurrence wins) and candidates scoring
// below MinQuality, then sorts the rest by score, keeping arrival order on
// ties. It returns at most limit results and the number of survivors before
// truncation. A non-positive limit returns every survivor.
func Rank(candidates []scoring.Candidate, limit int) ([]Result, int) {
	seen := make(map[string]struct{}, len(candidates))
	out := make([]Result, 0, len(candidates))
	for _, c := range candidates {
		if _, dup := seen[c.Link]; dup {
			continue
		}
		seen[c.Link] = struct{}{}
		if c.Score < MinQuality {
			continue
		}
		out = append(out, Enrich(c))
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})

	survivors := len(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, survivors
}

// Enrich derives the presentation fields of c.
func Enrich(c scoring.Candidate) Result {
	return Result{
		Candidate:    c,
		DisplayTitle: DisplayTitle(c),
		Glyph:        c.Platform.Glyph(),
		SizeBucket:   Bucket(c.Snippet),
	}
}

// DisplayTitle appends the known size and format to the title.
func DisplayTitle(c scoring.Candidate) string {
	title := strings.TrimSpace(c.Title)
	if title == "" {
		title = "Untitled"
	}
	if c.File.Size != "" {
		title += " (" + c.File.Size + ")"
	}
	if c.File.Format != "" {
		title += " [" + strings.ToUpper(c.File.Format) + "]"
	}
	return title
}

// Bucket estimates a coarse size class from the sizes mentioned in text.
// Any GB or TB size makes it large.
func Bucket(text string) string {
	bucket := SizeUnknown
	for _, m := range platform.SizePattern.FindAllStringSubmatch(text, -1) {
		if strings.EqualFold(m[2], "MB") {
			bucket = SizeMedium
			continue
		}
		return SizeLarge
	}
	return bucket
}
