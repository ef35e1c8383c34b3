package prefetch

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChannyClaus/silx/spech5"
)

const sampleText = `#O0 m1  m2
#S 1 first
#P0 1.5 2.5
#N 2
#L x  y
1 2
3 4
#S 2 second
#P0 4.5 5.5
#N 2
#L x  y
5 6
`

func newLoader(t *testing.T) *Loader {
	t.Helper()
	f, err := spech5.OpenReader(strings.NewReader(sampleText))
	require.NoError(t, err)
	return New(f, 8)
}

func TestGet(t *testing.T) {
	l := newLoader(t)

	v, err := l.Get("/1.1/measurement/y")
	require.NoError(t, err)
	assert.Equal(t, []float32{2, 4}, v)

	// Cached value comes back equal.
	again, err := l.Get("/1.1/measurement/y")
	require.NoError(t, err)
	assert.Equal(t, v, again)
}

func TestGet_UnknownPath(t *testing.T) {
	l := newLoader(t)
	_, err := l.Get("/9.9/measurement/x")
	assert.ErrorIs(t, err, spech5.ErrNotFound)
}

func TestKeys(t *testing.T) {
	l := newLoader(t)

	keys, err := l.Keys("/1.1/measurement")
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "y"}, keys)
}

func TestPrefetch(t *testing.T) {
	l := newLoader(t)

	paths := []string{
		"/1.1/measurement/x",
		"/1.1/measurement/y",
		"/2.1/measurement/x",
		"/2.1/title",
		"/2.1/start_time",
	}
	err := l.Prefetch(context.Background(), paths, 4)
	require.NoError(t, err)

	for _, p := range paths {
		if _, ok := l.cache.get(p); !ok {
			t.Errorf("%s not cached after Prefetch", p)
		}
	}
}

func TestPrefetch_PropagatesFirstError(t *testing.T) {
	l := newLoader(t)

	err := l.Prefetch(context.Background(), []string{
		"/1.1/measurement/x",
		"/404.1/measurement/x",
	}, 2)
	assert.ErrorIs(t, err, spech5.ErrNotFound)
}

func TestPrefetch_Canceled(t *testing.T) {
	l := newLoader(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := l.Prefetch(ctx, []string{"/1.1/measurement/x"}, 1)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestConcurrentGets(t *testing.T) {
	l := newLoader(t)

	var wg sync.WaitGroup
	errs := make(chan error, 64)
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := l.Get("/2.1/measurement/y")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}
}

func TestCacheEviction(t *testing.T) {
	c := newValueCache(2)
	c.put("a", 1)
	c.put("b", 2)
	c.put("c", 3)

	if _, ok := c.get("a"); ok {
		t.Error("oldest entry should have been evicted")
	}
	if _, ok := c.get("c"); !ok {
		t.Error("newest entry should be present")
	}
}
