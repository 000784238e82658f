// Package serp fetches one page of web search results for a built query.
package serp

import (
	"context"
	"errors"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ErrUnavailable is returned when the provider call fails for any reason.
// No partial data accompanies it.
var ErrUnavailable = errors.New("search provider unavailable")

// MaxRelated bounds how many related-question items are kept.
const MaxRelated = 3

// MaxNum is the largest page size requested from the provider.
const MaxNum = 20

// RawHit is a single result as reported by the provider.
type RawHit struct {
	Link    string `json:"link"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
}

// Response holds the two result sections the search reads.
type Response struct {
	Organic []RawHit
	Related []RawHit
}

// Hits returns organic results followed by related-question items.
func (r *Response) Hits() []RawHit {
	if r == nil {
		return nil
	}
	out := make([]RawHit, 0, len(r.Organic)+len(r.Related))
	out = append(out, r.Organic...)
	return append(out, r.Related...)
}

// Provider abstracts a search engine that returns raw hits for a query.
// The limit is the number of results the caller ultimately wants; providers
// may over-fetch.
type Provider interface {
	Search(ctx context.Context, query string, limit int) (*Response, error)
}

// RequestSize returns how many items to ask the provider for given the
// caller's cap.
func RequestSize(limit int) int {
	n := limit * 2
	if n > MaxNum {
		n = MaxNum
	}
	if n < 1 {
		n = 1
	}
	return n
}

// cleanText strips markup and decodes entities that providers sometimes
// leave in titles and snippets.
func cleanText(s string) string {
	s = strings.TrimSpace(s)
	if !strings.ContainsAny(s, "<&") {
		return s
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return s
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}
