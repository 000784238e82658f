package platform

import "regexp"

// Category groups file formats by what they hold.
type Category string

const (
	CategoryVideo    Category = "video"
	CategoryArchive  Category = "archive"
	CategoryDocument Category = "document"
	CategoryUnknown  Category = "unknown"
)

func oneOf(exts ...string) func(string) bool {
	set := make(map[string]struct{}, len(exts))
	for _, e := range exts {
		set[e] = struct{}{}
	}
	return func(s string) bool {
		_, ok := set[s]
		return ok
	}
}

// Categories classifies a lowercased extension.
var Categories = []Rule[Category]{
	{Match: oneOf("mp4", "mkv", "avi", "mov", "wmv", "flv"), Label: CategoryVideo},
	{Match: oneOf("zip", "rar", "7z", "tar", "gz"), Label: CategoryArchive},
	{Match: oneOf("pdf", "epub", "mobi", "doc", "docx"), Label: CategoryDocument},
}

// Categorize returns the category of a lowercased extension.
func Categorize(ext string) Category {
	return Classify(Categories, ext, CategoryUnknown)
}

// ExtensionPattern finds a recognized file extension followed by
// whitespace, end of text, or a URL delimiter.
var ExtensionPattern = regexp.MustCompile(`(?i)\.(zip|rar|7z|tar|gz|mp4|mkv|avi|pdf|epub|mobi)(?:\s|$|[?&#])`)

// SizePattern finds a "<number> <unit>" size with unit MB, GB or TB. The
// unit must end a word, so "5 mbps" is not a size.
var SizePattern = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*(MB|GB|TB)\b`)
