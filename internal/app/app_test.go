package app

import (
	"context"
	"sync"
	"testing"

	"github.com/FranksOps/coursefinder/internal/config"
	"github.com/FranksOps/coursefinder/internal/pipeline"
	"github.com/FranksOps/coursefinder/internal/serp"
	"github.com/FranksOps/coursefinder/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedProvider struct {
	mu    sync.Mutex
	calls int
}

func (p *fixedProvider) Search(context.Context, string, int) (*serp.Response, error) {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()
	return &serp.Response{Organic: []serp.RawHit{
		{Link: "https://drive.google.com/file/d/1", Title: "Go Full Course", Snippet: "free download 3 GB"},
	}}, nil
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Store.Driver = config.DriverSQLite
	cfg.Store.DSN = "file:app_" + t.Name() + "?mode=memory&cache=shared"
	cfg.Redis.Addr = ""
	cfg.RateLimit.Limit = 2
	return cfg
}

func TestNew_SearchWithSQLite(t *testing.T) {
	prov := &fixedProvider{}
	a, err := New(context.Background(), testConfig(t), nil, WithProvider(prov))
	require.NoError(t, err)
	defer a.Close()
	require.NotNil(t, a.History)

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		rs, err := a.Pipeline.Search(ctx, pipeline.Request{Query: "golang", UserKey: "u"}, nil)
		require.NoError(t, err)
		assert.Equal(t, 1, rs.Len())
	}

	_, err = a.Pipeline.Search(ctx, pipeline.Request{Query: "golang", UserKey: "u"}, nil)
	assert.ErrorIs(t, err, pipeline.ErrRateLimited)
	assert.Equal(t, 2, prov.calls)

	recs, err := a.History.Query(ctx, storage.Filter{UserKey: "u"})
	require.NoError(t, err)
	assert.Len(t, recs, 2)
}

func TestNew_NoStore(t *testing.T) {
	cfg := testConfig(t)
	cfg.Store.Driver = config.DriverNone

	a, err := New(context.Background(), cfg, nil, WithProvider(&fixedProvider{}))
	require.NoError(t, err)
	defer a.Close()

	assert.Nil(t, a.History)
	assert.NotNil(t, a.Sessions)
}

func TestNew_BadConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Store.Driver = "mongo"
	_, err := New(context.Background(), cfg, nil, WithProvider(&fixedProvider{}))
	assert.Error(t, err)

	cfg = testConfig(t)
	cfg.SerpAPI.Fingerprint = "netscape"
	_, err = New(context.Background(), cfg, nil)
	assert.Error(t, err)
}

func TestReporter(t *testing.T) {
	cfg := testConfig(t)
	cfg.Store.Driver = config.DriverNone
	cfg.Progress.Pace = -1

	a, err := New(context.Background(), cfg, nil, WithProvider(&fixedProvider{}))
	require.NoError(t, err)
	defer a.Close()

	var got []string
	var mu sync.Mutex
	rep := a.Reporter(context.Background(), func(_ context.Context, text string) error {
		mu.Lock()
		got = append(got, text)
		mu.Unlock()
		return nil
	})
	_, err = a.Pipeline.Search(context.Background(), pipeline.Request{Query: "golang", UserKey: "r"}, rep)
	require.NoError(t, err)
	rep.Stop()
	<-rep.Done()
	assert.Len(t, got, 6)
}
