package listsync

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"copilot-dash/src/api"
	"copilot-dash/src/api/apitest"
	"copilot-dash/src/contracts"
	"copilot-dash/src/events"
)

type loadResult struct {
	items []string
	err   error
}

// scripted returns queued results in order.
func scripted(results ...loadResult) LoadFunc[string] {
	var mu sync.Mutex
	return func(ctx context.Context) ([]string, error) {
		mu.Lock()
		defer mu.Unlock()
		r := results[0]
		results = results[1:]
		return r.items, r.err
	}
}

func TestSynchronizer_Empty(t *testing.T) {
	s := New[string]("pipelines", scripted())
	assert.NotNil(t, s.Items())
	assert.Empty(t, s.Items())
	assert.False(t, s.Loading())
	assert.NoError(t, s.Err())
	assert.False(t, s.Stale())
	assert.True(t, s.LoadedAt().IsZero())
	assert.Equal(t, "pipelines", s.Name())
}

func TestSynchronizer_Load(t *testing.T) {
	boom := errors.New("boom")

	tests := []struct {
		name      string
		results   []loadResult
		wantItems []string
		wantErr   bool
		wantStale bool
	}{
		{
			name:      "success replaces",
			results:   []loadResult{{items: []string{"a", "b"}}},
			wantItems: []string{"a", "b"},
		},
		{
			name:      "second success replaces wholesale",
			results:   []loadResult{{items: []string{"a", "b"}}, {items: []string{"c"}}},
			wantItems: []string{"c"},
		},
		{
			name:      "empty success clears",
			results:   []loadResult{{items: []string{"a"}}, {items: []string{}}},
			wantItems: []string{},
		},
		{
			name:      "failure retains previous",
			results:   []loadResult{{items: []string{"a", "b"}}, {err: boom}},
			wantItems: []string{"a", "b"},
			wantErr:   true,
			wantStale: true,
		},
		{
			name:      "failure before any success",
			results:   []loadResult{{err: boom}},
			wantItems: []string{},
			wantErr:   true,
		},
		{
			name:      "success after failure clears error",
			results:   []loadResult{{err: boom}, {items: []string{"x"}}},
			wantItems: []string{"x"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New[string]("test", scripted(tt.results...))

			var lastErr error
			for range tt.results {
				lastErr = s.Load(context.Background())
			}

			assert.Equal(t, tt.wantItems, s.Items())
			assert.Equal(t, tt.wantErr, lastErr != nil)
			assert.Equal(t, tt.wantErr, s.Err() != nil)
			assert.Equal(t, tt.wantStale, s.Stale())
			assert.False(t, s.Loading())
			if tt.wantErr {
				assert.ErrorIs(t, s.Err(), boom)
			}
		})
	}
}

func TestSynchronizer_LatestInitiatedWins(t *testing.T) {
	t.Run("older success arriving late is discarded", func(t *testing.T) {
		s := New[string]("test", scripted())

		first := s.Begin()
		second := s.Begin()

		assert.True(t, s.Complete(second, []string{"new"}, nil))
		assert.False(t, s.Complete(first, []string{"old"}, nil))
		assert.Equal(t, []string{"new"}, s.Items())
	})

	t.Run("older failure arriving late is discarded", func(t *testing.T) {
		s := New[string]("test", scripted())

		first := s.Begin()
		second := s.Begin()

		assert.True(t, s.Complete(second, []string{"new"}, nil))
		assert.False(t, s.Complete(first, nil, errors.New("late")))
		assert.NoError(t, s.Err())
		assert.Equal(t, []string{"new"}, s.Items())
	})

	t.Run("older arrival before newer does not apply", func(t *testing.T) {
		s := New[string]("test", scripted())

		first := s.Begin()
		second := s.Begin()

		assert.False(t, s.Complete(first, []string{"old"}, nil))
		assert.True(t, s.Loading(), "newer load still outstanding")
		assert.Empty(t, s.Items())

		assert.True(t, s.Complete(second, []string{"new"}, nil))
		assert.False(t, s.Loading())
		assert.Equal(t, []string{"new"}, s.Items())
	})
}

func TestSynchronizer_ItemsIsACopy(t *testing.T) {
	src := []string{"a", "b"}
	s := New[string]("test", scripted(loadResult{items: src}))
	require.NoError(t, s.Load(context.Background()))

	src[0] = "mutated"
	got := s.Items()
	got[1] = "mutated"

	assert.Equal(t, []string{"a", "b"}, s.Items())
}

func TestSynchronizer_EmitsRefresh(t *testing.T) {
	bus := events.NewBus("t", events.NewInMemoryBroker())
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch, err := bus.Subscribe(ctx, "test")
	require.NoError(t, err)

	s := New[string]("tasks", scripted(loadResult{items: []string{"a", "b", "c"}}), WithEmitter(bus))
	require.NoError(t, s.Load(context.Background()))

	ev := <-ch
	assert.Equal(t, events.ListRefreshed, ev.Type)
	assert.Equal(t, "tasks", ev.Source)
	assert.Equal(t, 3, ev.Count)
	assert.Equal(t, "ok", ev.Status)
}

func TestSynchronizer_AgainstBackend(t *testing.T) {
	srv := apitest.NewServer()
	defer srv.Close()
	client := api.NewClient(srv.URL)

	s := New[contracts.Pipeline]("pipelines", client.ListPipelines)
	ctx := context.Background()

	_, err := client.Seed(ctx)
	require.NoError(t, err)
	require.NoError(t, s.Load(ctx))
	require.Len(t, s.Items(), 3)

	srv.Fail(apitest.RoutePipelines, 500)
	err = s.Load(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, api.ErrOperationFailed)
	assert.Len(t, s.Items(), 3, "failure retains the previous list")
	assert.True(t, s.Stale())
}
