// Package scoring turns raw provider hits into classified, scored
// candidates.
package scoring

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/FranksOps/coursefinder/internal/metrics"
	"github.com/FranksOps/coursefinder/internal/platform"
	"github.com/FranksOps/coursefinder/internal/serp"
)

const (
	BaseScore = 5
	MinScore  = 0
	MaxScore  = 10
)

var (
	positiveTerms = []string{"course", "tutorial", "complete", "full", "master", "class", "training"}
	negativeTerms = []string{"preview", "sample", "demo", "trailer"}
)

// FileInfo describes the file a link most likely points at.
type FileInfo struct {
	// Format is the lowercased extension, or "" when unknown.
	Format   string            `json:"format,omitempty"`
	Size     string            `json:"size,omitempty"`
	Category platform.Category `json:"category"`
}

// Candidate is an accepted hit with its classification and score.
type Candidate struct {
	serp.RawHit
	Platform platform.Platform `json:"platform"`
	File     FileInfo          `json:"file"`
	Score    int               `json:"score"`
}

// Processor scores hits. The zero value is ready to use.
type Processor struct {
	Logger *slog.Logger
}

// evaluate is swapped in tests to exercise per-item fault isolation.
var evaluate = Evaluate

// Process returns a candidate for every supported hit, in input order.
// Hits with an empty or unsupported link are dropped, as is any hit whose
// evaluation faults.
func (p Processor) Process(hits []serp.RawHit) []Candidate {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	out := make([]Candidate, 0, len(hits))
	for i, h := range hits {
		if h.Link == "" || !platform.Supported(h.Link) {
			metrics.ItemsDropped.WithLabelValues("unsupported").Inc()
			continue
		}
		c, err := safeEvaluate(h)
		if err != nil {
			metrics.ItemsDropped.WithLabelValues("fault").Inc()
			logger.Warn("dropping hit", "index", i, "link", h.Link, "err", err)
			continue
		}
		out = append(out, c)
	}
	return out
}

// Process is Processor{}.Process.
func Process(hits []serp.RawHit) []Candidate {
	return Processor{}.Process(hits)
}

func safeEvaluate(h serp.RawHit) (c Candidate, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("scoring: panic: %v", r)
		}
	}()
	return evaluate(h)
}

// Evaluate classifies and scores a single supported hit.
func Evaluate(h serp.RawHit) (Candidate, error) {
	p := platform.Identify(h.Link)
	return Candidate{
		RawHit:   h,
		Platform: p,
		File:     Extract(h),
		Score:    Score(h, p),
	}, nil
}

// Extract reads the format from the first recognized extension in
// link, title and snippet, and the size from the snippet.
func Extract(h serp.RawHit) FileInfo {
	info := FileInfo{Category: platform.CategoryUnknown}

	text := h.Link + " " + h.Title + " " + h.Snippet
	if m := platform.ExtensionPattern.FindStringSubmatch(text); m != nil {
		info.Format = strings.ToLower(m[1])
		info.Category = platform.Categorize(info.Format)
	}
	if m := platform.SizePattern.FindStringSubmatch(h.Snippet); m != nil {
		info.Size = m[1] + " " + strings.ToUpper(m[2])
	}
	return info
}

// Score computes the quality heuristic for h hosted on p, clamped to
// [MinScore, MaxScore].
func Score(h serp.RawHit, p platform.Platform) int {
	score := BaseScore

	title := strings.ToLower(h.Title)
	for _, t := range positiveTerms {
		if strings.Contains(title, t) {
			score += 2
		}
	}
	for _, t := range negativeTerms {
		if strings.Contains(title, t) {
			score -= 3
		}
	}

	snippet := strings.ToLower(h.Snippet)
	if strings.Contains(snippet, "download") {
		score++
	}
	if strings.Contains(snippet, "free") {
		score++
	}
	if platform.SizePattern.MatchString(h.Snippet) {
		score += 2
	}

	if len(h.Link) < 100 {
		score++
	}

	switch p {
	case platform.GoogleDrive:
		score += 2
	case platform.Mega:
		score++
	}

	return min(max(score, MinScore), MaxScore)
}
