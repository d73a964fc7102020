package logpager

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"copilot-dash/src/api"
	"copilot-dash/src/api/apitest"
	"copilot-dash/src/contracts"
)

// pageFetcher serves pages over a fixed, newest-first slice of entries.
type pageFetcher struct {
	mu      sync.Mutex
	entries []contracts.LogEntry
	fail    error
	calls   []api.LogQuery
}

func (f *pageFetcher) GetLogs(ctx context.Context, pipelineID string, q api.LogQuery) ([]contracts.LogEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, q)
	if f.fail != nil {
		return nil, f.fail
	}
	var matched []contracts.LogEntry
	for _, e := range f.entries {
		if q.Q == "" || strings.Contains(strings.ToLower(e.Content), strings.ToLower(q.Q)) {
			matched = append(matched, e)
		}
	}
	if q.Offset >= len(matched) {
		return []contracts.LogEntry{}, nil
	}
	end := q.Offset + q.Limit
	if end > len(matched) {
		end = len(matched)
	}
	return append([]contracts.LogEntry(nil), matched[q.Offset:end]...), nil
}

func (f *pageFetcher) setFail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail = err
}

func (f *pageFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func makeEntries(n int) []contracts.LogEntry {
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	out := make([]contracts.LogEntry, n)
	for i := range out {
		content := fmt.Sprintf("step %d ok", i)
		if i%3 == 0 {
			content = fmt.Sprintf("step %d ERROR", i)
		}
		out[i] = contracts.LogEntry{
			ID:         int64(n - i),
			PipelineID: "demo-1",
			Timestamp:  contracts.NewTimestamp(base.Add(-time.Duration(i) * time.Minute)),
			Content:    content,
		}
	}
	return out
}

func ids(entries []contracts.LogEntry) []int64 {
	out := make([]int64, len(entries))
	for i, e := range entries {
		out[i] = e.ID
	}
	return out
}

func assertNoDuplicates(t *testing.T, buf contracts.LogBuffer) {
	t.Helper()
	seen := map[int64]bool{}
	for _, e := range buf.Entries {
		require.False(t, seen[e.ID], "duplicate id %d", e.ID)
		seen[e.ID] = true
	}
}

func TestPager_Initial(t *testing.T) {
	p := New(&pageFetcher{}, "demo-1")

	assert.Equal(t, Idle, p.State())
	assert.Equal(t, DefaultPageSize, p.PageSize())
	buf := p.Buffer()
	assert.Equal(t, "demo-1", buf.PipelineID)
	assert.Empty(t, buf.Entries)
	assert.Zero(t, buf.Offset)

	_, err := p.BeginExtend()
	assert.ErrorIs(t, err, ErrNotStarted)
}

func TestPager_Reset(t *testing.T) {
	tests := []struct {
		name          string
		total         int
		filter        string
		wantLen       int
		wantExhausted bool
	}{
		{name: "full page", total: 120, wantLen: 50, wantExhausted: false},
		{name: "short page", total: 7, wantLen: 7, wantExhausted: true},
		{name: "exact page", total: 50, wantLen: 50, wantExhausted: false},
		{name: "empty", total: 0, wantLen: 0, wantExhausted: true},
		{name: "filtered", total: 30, filter: "error", wantLen: 10, wantExhausted: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &pageFetcher{entries: makeEntries(tt.total)}
			p := New(f, "demo-1")

			require.NoError(t, p.Reset(context.Background(), tt.filter))

			buf := p.Buffer()
			assert.Equal(t, Ready, p.State())
			assert.Len(t, buf.Entries, tt.wantLen)
			assert.Equal(t, DefaultPageSize, buf.Offset, "offset is the page size, not the entry count")
			assert.Equal(t, tt.wantExhausted, buf.Exhausted)
			assert.Equal(t, tt.filter, buf.Filter)
			assert.Equal(t, api.LogQuery{Limit: 50, Offset: 0, Q: tt.filter}, f.calls[0])
		})
	}
}

func TestPager_ResetIdempotent(t *testing.T) {
	for _, filter := range []string{"", "error", "step 1", "nothing-matches"} {
		t.Run(filter, func(t *testing.T) {
			p := New(&pageFetcher{entries: makeEntries(80)}, "demo-1")

			require.NoError(t, p.Reset(context.Background(), filter))
			first := p.Buffer()
			require.NoError(t, p.Reset(context.Background(), filter))
			second := p.Buffer()

			assert.Equal(t, first, second)
		})
	}
}

func TestPager_ResetReplacesAfterExtend(t *testing.T) {
	p := New(&pageFetcher{entries: makeEntries(120)}, "demo-1", WithPageSize(20))
	ctx := context.Background()

	require.NoError(t, p.Reset(ctx, ""))
	require.NoError(t, p.Extend(ctx))
	require.Len(t, p.Buffer().Entries, 40)

	require.NoError(t, p.Reset(ctx, ""))
	buf := p.Buffer()
	assert.Len(t, buf.Entries, 20, "reset must replace, not append")
	assert.Equal(t, 20, buf.Offset)
}

func TestPager_OffsetMonotonicity(t *testing.T) {
	f := &pageFetcher{entries: makeEntries(105)}
	p := New(f, "demo-1", WithPageSize(25))
	ctx := context.Background()

	require.NoError(t, p.Reset(ctx, ""))
	prev := p.Buffer().Offset
	assert.Equal(t, 25, prev)

	// Keep extending past the end; the offset still advances by exactly one page.
	for i := 0; i < 6; i++ {
		require.NoError(t, p.Extend(ctx))
		buf := p.Buffer()
		assert.Equal(t, prev+25, buf.Offset, "extend %d", i)
		prev = buf.Offset
	}

	buf := p.Buffer()
	assert.Len(t, buf.Entries, 105)
	assert.True(t, buf.Exhausted)
	assertNoDuplicates(t, buf)

	offsets := make([]int, 0, len(f.calls))
	for _, c := range f.calls {
		offsets = append(offsets, c.Offset)
	}
	assert.Equal(t, []int{0, 25, 50, 75, 100, 125, 150}, offsets)
}

func TestPager_ExtendSkipsDuplicates(t *testing.T) {
	entries := makeEntries(10)
	p := New(&pageFetcher{}, "demo-1", WithPageSize(5))

	req := p.BeginReset("")
	require.True(t, p.Apply(Result{Request: req, Entries: entries[0:5]}))

	// The backend shifted by two rows: the page overlaps what we hold.
	ext, err := p.BeginExtend()
	require.NoError(t, err)
	require.True(t, p.Apply(Result{Request: ext, Entries: entries[3:8]}))

	buf := p.Buffer()
	assertNoDuplicates(t, buf)
	assert.Equal(t, ids(entries[0:8]), ids(buf.Entries))
	assert.Equal(t, 10, buf.Offset)
	assert.False(t, buf.Exhausted, "exhaustion follows the raw page length")
}

func TestPager_ResetDeduplicatesPage(t *testing.T) {
	entries := makeEntries(3)
	p := New(&pageFetcher{}, "demo-1")

	req := p.BeginReset("")
	page := []contracts.LogEntry{entries[0], entries[1], entries[0], entries[2], entries[1]}
	require.True(t, p.Apply(Result{Request: req, Entries: page}))

	buf := p.Buffer()
	assertNoDuplicates(t, buf)
	assert.Equal(t, ids(entries), ids(buf.Entries))
}

func TestPager_GenerationSupersession(t *testing.T) {
	older := makeEntries(3)
	newer := []contracts.LogEntry{{ID: 100, PipelineID: "demo-1", Content: "fresh"}}

	t.Run("reset overtakes reset", func(t *testing.T) {
		p := New(&pageFetcher{}, "demo-1")

		a := p.BeginReset("")
		b := p.BeginReset("fresh")
		require.Greater(t, b.Generation, a.Generation)

		assert.True(t, p.Apply(Result{Request: b, Entries: newer}))
		assert.False(t, p.Apply(Result{Request: a, Entries: older}), "older arrival must be dropped")

		buf := p.Buffer()
		assert.Equal(t, []int64{100}, ids(buf.Entries))
		assert.Equal(t, "fresh", buf.Filter)
		assert.Equal(t, Ready, p.State())
	})

	t.Run("reset overtakes extend", func(t *testing.T) {
		p := New(&pageFetcher{}, "demo-1", WithPageSize(3))
		first := p.BeginReset("")
		require.True(t, p.Apply(Result{Request: first, Entries: older}))

		ext, err := p.BeginExtend()
		require.NoError(t, err)
		reset := p.BeginReset("fresh")

		assert.True(t, p.Apply(Result{Request: reset, Entries: newer}))
		assert.False(t, p.Apply(Result{Request: ext, Entries: makeEntries(3)}))

		buf := p.Buffer()
		assert.Equal(t, []int64{100}, ids(buf.Entries))
		assert.Equal(t, 3, buf.Offset)
	})

	t.Run("stale failure is dropped", func(t *testing.T) {
		p := New(&pageFetcher{}, "demo-1")
		a := p.BeginReset("")
		b := p.BeginReset("")

		assert.True(t, p.Apply(Result{Request: b, Entries: newer}))
		assert.False(t, p.Apply(Result{Request: a, Err: errors.New("late timeout")}))
		assert.NoError(t, p.Err())
		assert.Equal(t, Ready, p.State())
	})

	t.Run("older arrives first", func(t *testing.T) {
		p := New(&pageFetcher{}, "demo-1")
		a := p.BeginReset("")
		b := p.BeginReset("fresh")

		assert.False(t, p.Apply(Result{Request: a, Entries: older}))
		assert.Equal(t, Loading, p.State(), "newer reset still outstanding")
		assert.Empty(t, p.Buffer().Entries)

		assert.True(t, p.Apply(Result{Request: b, Entries: newer}))
		assert.Equal(t, []int64{100}, ids(p.Buffer().Entries))
	})
}

func TestPager_ExtendWhileLoadingRejected(t *testing.T) {
	f := &pageFetcher{entries: makeEntries(200)}
	p := New(f, "demo-1")
	ctx := context.Background()
	require.NoError(t, p.Reset(ctx, ""))
	calls := f.callCount()

	ext, err := p.BeginExtend()
	require.NoError(t, err)

	_, err = p.BeginExtend()
	assert.ErrorIs(t, err, ErrBusy)
	assert.ErrorIs(t, p.Extend(ctx), ErrBusy)
	assert.Equal(t, calls, f.callCount(), "rejected extends must not issue a request")

	require.True(t, p.Apply(p.Fetch(ctx, ext)))
	assert.Equal(t, 100, p.Buffer().Offset)

	_, err = p.BeginExtend()
	assert.NoError(t, err, "extend is allowed again once the first resolves")
}

func TestPager_ExtendWhileResetPendingRejected(t *testing.T) {
	p := New(&pageFetcher{}, "demo-1")
	p.BeginReset("")

	_, err := p.BeginExtend()
	assert.ErrorIs(t, err, ErrBusy)
}

func TestPager_FailureKeepsBuffer(t *testing.T) {
	boom := errors.New("connection reset")

	t.Run("reset failure", func(t *testing.T) {
		f := &pageFetcher{entries: makeEntries(60)}
		p := New(f, "demo-1")
		ctx := context.Background()
		require.NoError(t, p.Reset(ctx, "error"))
		before := p.Buffer()

		f.setFail(boom)
		err := p.Reset(ctx, "step")
		require.ErrorIs(t, err, boom)

		assert.Equal(t, before, p.Buffer(), "entries, offset and filter survive a failed reset")
		assert.Equal(t, Error, p.State())
		assert.ErrorIs(t, p.Err(), boom)
	})

	t.Run("extend failure", func(t *testing.T) {
		f := &pageFetcher{entries: makeEntries(120)}
		p := New(f, "demo-1")
		ctx := context.Background()
		require.NoError(t, p.Reset(ctx, ""))
		before := p.Buffer()

		f.setFail(boom)
		require.ErrorIs(t, p.Extend(ctx), boom)
		assert.Equal(t, before, p.Buffer())
		assert.Equal(t, Error, p.State())

		// The same page is retried once the backend recovers.
		f.setFail(nil)
		require.NoError(t, p.Extend(ctx))
		assert.Equal(t, 100, p.Buffer().Offset)
		assert.Len(t, p.Buffer().Entries, 100)
		assert.NoError(t, p.Err())
	})
}

func TestPager_SyncSuperseded(t *testing.T) {
	gate := make(chan struct{})
	entered := make(chan struct{})
	blocking := fetcherFunc(func(ctx context.Context, id string, q api.LogQuery) ([]contracts.LogEntry, error) {
		if q.Q == "slow" {
			close(entered)
			<-gate
		}
		return makeEntries(2), nil
	})
	p := New(blocking, "demo-1")

	errc := make(chan error)
	go func() { errc <- p.Reset(context.Background(), "slow") }()
	<-entered

	require.NoError(t, p.Reset(context.Background(), "fast"))
	close(gate)

	assert.ErrorIs(t, <-errc, ErrSuperseded)
	assert.Equal(t, "fast", p.Buffer().Filter)
}

func TestPager_BufferIsSnapshot(t *testing.T) {
	p := New(&pageFetcher{entries: makeEntries(3)}, "demo-1")
	require.NoError(t, p.Reset(context.Background(), ""))

	snap := p.Buffer()
	snap.Entries[0].Content = "mutated"
	assert.NotEqual(t, "mutated", p.Buffer().Entries[0].Content)
}

func TestPager_AgainstBackend(t *testing.T) {
	srv := apitest.NewServer()
	defer srv.Close()

	day1 := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	day2 := time.Date(2024, 1, 2, 8, 0, 0, 0, time.UTC)
	srv.AddLog("demo-1", "checkout", day1)
	srv.AddLog("demo-1", "build", day1.Add(time.Hour))
	srv.AddLog("demo-1", "deploy", day2)
	srv.AddLog("other", "unrelated", day2)

	p := New(api.NewClient(srv.URL), "demo-1")
	require.NoError(t, p.Reset(context.Background(), ""))

	buf := p.Buffer()
	require.Len(t, buf.Entries, 3)
	assert.Equal(t, "deploy", buf.Entries[0].Content, "backend order is kept")
	assert.True(t, buf.Exhausted)

	srv.Fail(apitest.RouteGetLogs, 502)
	err := p.Extend(context.Background())
	assert.ErrorIs(t, err, api.ErrOperationFailed)
	assert.Len(t, p.Buffer().Entries, 3)
}

type fetcherFunc func(ctx context.Context, id string, q api.LogQuery) ([]contracts.LogEntry, error)

func (f fetcherFunc) GetLogs(ctx context.Context, id string, q api.LogQuery) ([]contracts.LogEntry, error) {
	return f(ctx, id, q)
}
