package filter

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/crowdbox/internal/domain/track"
)

func TestCallerPendingFilter_Check(t *testing.T) {
	queue := []track.Track{
		{ID: "1", RequestedBy: "10.0.0.1"},
		{ID: "2", RequestedBy: "10.0.0.1"},
		{ID: "3", RequestedBy: "10.0.0.2"},
		{ID: "4", RequestedBy: "10.0.0.1", State: track.StateFailed},
	}

	tests := []struct {
		name         string
		maxPending   int
		caller       string
		wantAccepted bool
	}{
		{name: "below limit", maxPending: 3, caller: "10.0.0.1", wantAccepted: true},
		{name: "at limit", maxPending: 2, caller: "10.0.0.1", wantAccepted: false},
		{name: "other caller", maxPending: 2, caller: "10.0.0.2", wantAccepted: true},
		{name: "anonymous caller", maxPending: 1, caller: "", wantAccepted: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &CallerPendingFilter{config: &CallerPendingConfig{MaxPending: tt.maxPending}}

			result := f.Check(context.Background(), Request{
				Track:  track.Track{ID: "new"},
				Caller: tt.caller,
				Queue:  queue,
			})

			assert.Equal(t, tt.wantAccepted, result.Accepted)
			if !tt.wantAccepted {
				assert.Equal(t, "caller_pending", result.Code)
			}
		})
	}
}

func TestCallerPendingFilter_ValidateConfig(t *testing.T) {
	f := &CallerPendingFilter{}
	require.NoError(t, f.ValidateConfig(nil))
	assert.Equal(t, 3, f.config.MaxPending)

	require.NoError(t, f.ValidateConfig(map[string]any{"max_pending": "5"}))
	assert.Equal(t, 5, f.config.MaxPending)

	assert.Error(t, f.ValidateConfig(map[string]any{"max_pending": -2}))
}

func TestChain_Execute(t *testing.T) {
	chain := NewChain()
	chain.Add(NewDuplicateTrackFilter())
	chain.Add(&CallerPendingFilter{config: &CallerPendingConfig{MaxPending: 1}})

	queue := []track.Track{{ID: "a", Title: "A", Singer: "X", RequestedBy: "c1"}}

	dup := chain.Execute(context.Background(), Request{Track: track.Track{ID: "a"}, Caller: "c2", Queue: queue})
	assert.Equal(t, Reject("duplicate_track"), dup)

	pending := chain.Execute(context.Background(), Request{Track: track.Track{ID: "b"}, Caller: "c1", Queue: queue})
	assert.Equal(t, Reject("caller_pending"), pending)

	ok := chain.Execute(context.Background(), Request{Track: track.Track{ID: "b"}, Caller: "c2", Queue: queue})
	assert.True(t, ok.Accepted)
	assert.Len(t, chain.Filters(), 2)
}

func TestRegistry(t *testing.T) {
	registered := GetRegistered()
	for _, name := range []string{"duration_limit_filter", "caller_pending_filter"} {
		factory, ok := registered[name]
		require.True(t, ok, name)
		assert.Equal(t, name, factory().Name())
	}
}
