package remote

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPFetcher(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/store/rgstore.json":
			_, _ = w.Write([]byte(`{"version":1}`))
		case "/store/broken.seq":
			http.Error(w, "boom", http.StatusInternalServerError)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	f := NewHTTPFetcher(srv.URL+"/store/", nil)

	body, err := f.Fetch(context.Background(), "rgstore.json")
	require.NoError(t, err)
	assert.Equal(t, `{"version":1}`, string(body))

	// 404 is the only status that maps to ErrNotExists; other failures
	// stay plain ErrFetch so callers cannot mistake them for absence.
	_, err = f.Fetch(context.Background(), "missing.seq")
	assert.ErrorIs(t, err, ErrNotExists)

	_, err = f.Fetch(context.Background(), "broken.seq")
	assert.ErrorIs(t, err, ErrFetch)
	assert.NotErrorIs(t, err, ErrNotExists)
}

type countingFetcher struct {
	calls   int64
	release chan struct{}
}

func (c *countingFetcher) Fetch(_ context.Context, relPath string) ([]byte, error) {
	atomic.AddInt64(&c.calls, 1)
	<-c.release
	return []byte("blob:" + relPath), nil
}

func TestCoalescerCollapsesConcurrentFetches(t *testing.T) {
	cf := &countingFetcher{release: make(chan struct{})}
	c := NewCoalescer(cf)

	const waiters = 16
	var wg sync.WaitGroup
	results := make([][]byte, waiters)
	errs := make([]error, waiters)
	for i := 0; i < waiters; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = c.Fetch(context.Background(), "sequences/ab/abcd.seq")
		}(i)
	}

	// Let every goroutine pile onto the in-flight call, then release.
	time.Sleep(50 * time.Millisecond)
	close(cf.release)
	wg.Wait()

	assert.Equal(t, int64(1), atomic.LoadInt64(&cf.calls))
	for i := 0; i < waiters; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, "blob:sequences/ab/abcd.seq", string(results[i]))
	}
}

func TestCoalescerDistinctKeys(t *testing.T) {
	cf := &countingFetcher{release: make(chan struct{})}
	close(cf.release)
	c := NewCoalescer(cf)

	a, err := c.Fetch(context.Background(), "a")
	require.NoError(t, err)
	b, err := c.Fetch(context.Background(), "b")
	require.NoError(t, err)
	assert.NotEqual(t, string(a), string(b))
	assert.Equal(t, int64(2), atomic.LoadInt64(&cf.calls))
}
