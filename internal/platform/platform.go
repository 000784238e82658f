// Package platform holds the fixed set of file hosts the search is scoped
// to, and the ordered rule tables used to classify links and files.
package platform

import (
	"net/url"
	"strings"
)

// Platform is the display identity of a file host.
type Platform string

const (
	GoogleDrive Platform = "Google Drive"
	MediaFire   Platform = "MediaFire"
	Mega        Platform = "Mega"
	Dropbox     Platform = "Dropbox"
	OneDrive    Platform = "OneDrive"
	Unknown     Platform = "Unknown"
)

// Domains lists the supported host identifiers in query order.
var Domains = []string{
	"drive.google.com",
	"mediafire.com",
	"mega.nz",
	"dropbox.com",
	"onedrive.live.com",
}

// Rule pairs a predicate with the label it assigns. Tables of rules are
// evaluated in order and the first match wins.
type Rule[L any] struct {
	Match func(string) bool
	Label L
}

func contains(sub string) func(string) bool {
	return func(s string) bool { return strings.Contains(s, sub) }
}

// Rules classifies a lowercased host. Order is the tie-break priority.
var Rules = []Rule[Platform]{
	{Match: contains("drive.google.com"), Label: GoogleDrive},
	{Match: contains("mediafire.com"), Label: MediaFire},
	{Match: contains("mega.nz"), Label: Mega},
	{Match: contains("dropbox.com"), Label: Dropbox},
	{Match: contains("onedrive.live.com"), Label: OneDrive},
}

// Classify evaluates table against s and returns the first matching label,
// or fallback when nothing matches.
func Classify[L any](table []Rule[L], s string, fallback L) L {
	for _, r := range table {
		if r.Match(s) {
			return r.Label
		}
	}
	return fallback
}

// Host returns the lowercased host of link, or "" if link does not parse
// to an absolute URL.
func Host(link string) string {
	u, err := url.Parse(strings.TrimSpace(link))
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

// Supported reports whether link points at one of Domains.
func Supported(link string) bool {
	host := Host(link)
	if host == "" {
		return false
	}
	for _, d := range Domains {
		if strings.Contains(host, d) {
			return true
		}
	}
	return false
}

// Identify classifies the host of link.
func Identify(link string) Platform {
	return Classify(Rules, Host(link), Unknown)
}

// IsDomain reports whether name is one of Domains (exact match).
func IsDomain(name string) bool {
	for _, d := range Domains {
		if d == name {
			return true
		}
	}
	return false
}

var glyphs = map[Platform]string{
	GoogleDrive: "📁",
	MediaFire:   "💾",
	Mega:        "☁️",
	Dropbox:     "📦",
	OneDrive:    "🌐",
}

// Glyph returns the display glyph for p.
func (p Platform) Glyph() string {
	if g, ok := glyphs[p]; ok {
		return g
	}
	return "🔗"
}
