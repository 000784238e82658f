package scoring

import (
	"errors"
	"math/rand"
	"strings"
	"testing"

	"github.com/FranksOps/coursefinder/internal/platform"
	"github.com/FranksOps/coursefinder/internal/serp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcess_DropsUnsupported(t *testing.T) {
	hits := []serp.RawHit{
		{Link: "", Title: "empty"},
		{Link: "https://example.com/course.zip", Title: "elsewhere"},
		{Link: "https://www.mediafire.com/file/abc/go.zip", Title: "kept"},
		{Link: "not a url", Title: "garbage"},
	}
	got := Process(hits)
	require.Len(t, got, 1)
	assert.Equal(t, "kept", got[0].Title)
	assert.Equal(t, platform.MediaFire, got[0].Platform)
}

func TestProcess_IsolatesFaults(t *testing.T) {
	orig := evaluate
	defer func() { evaluate = orig }()

	evaluate = func(h serp.RawHit) (Candidate, error) {
		switch h.Title {
		case "panic":
			var m map[string]int
			m["x"] = 1
		case "error":
			return Candidate{}, errors.New("bad item")
		}
		return Evaluate(h)
	}

	hits := []serp.RawHit{
		{Link: "https://mega.nz/a", Title: "first"},
		{Link: "https://mega.nz/b", Title: "panic"},
		{Link: "https://mega.nz/c", Title: "error"},
		{Link: "https://mega.nz/d", Title: "last"},
	}
	got := Process(hits)
	require.Len(t, got, 2)
	assert.Equal(t, "first", got[0].Title)
	assert.Equal(t, "last", got[1].Title)
}

func TestExtract(t *testing.T) {
	tests := []struct {
		name string
		hit  serp.RawHit
		want FileInfo
	}{
		{
			name: "archive in link with size",
			hit:  serp.RawHit{Link: "https://mega.nz/go.ZIP?x=1", Snippet: "Total 1.5 gb of lessons"},
			want: FileInfo{Format: "zip", Size: "1.5 GB", Category: platform.CategoryArchive},
		},
		{
			name: "video in title",
			hit:  serp.RawHit{Link: "https://mega.nz/x", Title: "lesson1.mp4 part", Snippet: "700MB"},
			want: FileInfo{Format: "mp4", Size: "700 MB", Category: platform.CategoryVideo},
		},
		{
			name: "first extension wins",
			hit:  serp.RawHit{Link: "https://mega.nz/book.pdf", Title: "bundle.zip"},
			want: FileInfo{Format: "pdf", Category: platform.CategoryDocument},
		},
		{
			name: "size only read from snippet",
			hit:  serp.RawHit{Link: "https://mega.nz/x", Title: "2 GB pack"},
			want: FileInfo{Category: platform.CategoryUnknown},
		},
		{
			name: "extension must end a token",
			hit:  serp.RawHit{Link: "https://mega.nz/x", Title: "file.pdfs here"},
			want: FileInfo{Category: platform.CategoryUnknown},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Extract(tt.hit))
		})
	}
}

func TestScore(t *testing.T) {
	tests := []struct {
		name string
		hit  serp.RawHit
		want int
	}{
		{
			name: "base with short link",
			hit:  serp.RawHit{Link: "https://dropbox.com/s/x", Title: "go"},
			want: 6,
		},
		{
			name: "drive bonus and snippet terms",
			hit:  serp.RawHit{Link: "https://drive.google.com/x", Title: "x", Snippet: "Free download"},
			want: 10,
		},
		{
			name: "size unit counted once",
			hit:  serp.RawHit{Link: "https://dropbox.com/x", Title: "x", Snippet: "2 GB or 900 MB"},
			want: 8,
		},
		{
			name: "unit letters inside a word are not a size",
			hit:  serp.RawHit{Link: "https://mega.nz/x", Title: "Intro", Snippet: "Free textbook for students"},
			want: 8,
		},
		{
			name: "unit without a number is not a size",
			hit:  serp.RawHit{Link: "https://dropbox.com/x", Title: "x", Snippet: "several GB of files"},
			want: 6,
		},
		{
			name: "mega bonus",
			hit:  serp.RawHit{Link: "https://mega.nz/x", Title: "x"},
			want: 7,
		},
		{
			name: "negative terms",
			hit:  serp.RawHit{Link: "https://dropbox.com/x", Title: "Preview sample"},
			want: 0,
		},
		{
			name: "clamped high",
			hit:  serp.RawHit{Link: "https://drive.google.com/x", Title: "Complete Full Master Course Training", Snippet: "download free 3 GB"},
			want: 10,
		},
		{
			name: "long link",
			hit:  serp.RawHit{Link: "https://dropbox.com/" + strings.Repeat("a", 100), Title: "course"},
			want: 7,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Score(tt.hit, platform.Identify(tt.hit.Link)))
		})
	}
}

func TestScore_AlwaysInRange(t *testing.T) {
	words := []string{"course", "tutorial", "complete", "full", "master", "class", "training",
		"preview", "sample", "demo", "trailer", "download", "free", "mb", "gb", "tb", "x"}
	hosts := []string{"https://drive.google.com/", "https://mega.nz/", "https://dropbox.com/", "https://mediafire.com/"}

	rng := rand.New(rand.NewSource(7))
	pick := func(n int) string {
		var b strings.Builder
		for i := 0; i < n; i++ {
			b.WriteString(words[rng.Intn(len(words))])
			b.WriteByte(' ')
		}
		return b.String()
	}

	for i := 0; i < 2000; i++ {
		h := serp.RawHit{
			Link:    hosts[rng.Intn(len(hosts))] + strings.Repeat("p", rng.Intn(150)),
			Title:   pick(rng.Intn(8)),
			Snippet: pick(rng.Intn(8)),
		}
		s := Score(h, platform.Identify(h.Link))
		require.GreaterOrEqual(t, s, MinScore, "hit %+v", h)
		require.LessOrEqual(t, s, MaxScore, "hit %+v", h)
	}
}
