package vote

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/crowdbox/internal/domain/track"
)

func TestController_NothingToSkip(t *testing.T) {
	c := NewController(Config{}, nil)

	r := c.Register("10.0.0.1", nil)
	assert.Equal(t, StatusNothingToSkip, r.Status)
	assert.Equal(t, "nothing is playing", r.Message)
	assert.Equal(t, 0, c.Count())
}

func TestController_Threshold(t *testing.T) {
	tests := []struct {
		name       string
		random     bool
		wantSkipAt int
	}{
		{name: "requested track needs four votes", random: false, wantSkipAt: 4},
		{name: "random pick needs one vote", random: true, wantSkipAt: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewController(Config{Required: 4, RandomRequired: 1}, nil)
			current := &track.Track{ID: "a", RandomlyChosen: tt.random}

			for i := 1; i < tt.wantSkipAt; i++ {
				r := c.Register(fmt.Sprintf("caller-%d", i), current)
				assert.Equal(t, StatusRegistered, r.Status)
				assert.Equal(t, tt.wantSkipAt-i, r.Remaining)
			}
			r := c.Register("last", current)
			assert.Equal(t, StatusSkipped, r.Status)
			assert.Equal(t, tt.wantSkipAt, r.Votes)
		})
	}
}

func TestController_Messages(t *testing.T) {
	c := NewController(Config{Required: 4, RandomRequired: 1}, nil)
	current := &track.Track{ID: "a"}

	assert.Equal(t, "3 more votes needed", c.Register("a", current).Message)
	assert.Equal(t, "2 more votes needed", c.Register("b", current).Message)
	assert.Equal(t, "1 more vote needed", c.Register("c", current).Message)
}

func TestController_RepeatVoteIsIdempotent(t *testing.T) {
	c := NewController(Config{Required: 4, RandomRequired: 1}, nil)
	current := &track.Track{ID: "a"}

	first := c.Register("10.0.0.1", current)
	require.Equal(t, StatusRegistered, first.Status)

	for i := 0; i < 5; i++ {
		r := c.Register("10.0.0.1", current)
		assert.Equal(t, StatusAlreadyVoted, r.Status)
		assert.Equal(t, 3, r.Remaining)
	}
	assert.Equal(t, 1, c.Count())
}

func TestController_ConcurrentIdenticalVotes(t *testing.T) {
	c := NewController(Config{Required: 4, RandomRequired: 1}, nil)
	current := &track.Track{ID: "a"}

	var wg sync.WaitGroup
	var mu sync.Mutex
	registered := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if c.Register("same", current).Status == StatusRegistered {
				mu.Lock()
				registered++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, registered)
	assert.Equal(t, 1, c.Count())
}

func TestController_Reset(t *testing.T) {
	c := NewController(Config{Required: 4, RandomRequired: 1}, nil)
	current := &track.Track{ID: "a"}

	c.Register("x", current)
	c.Reset()
	assert.Equal(t, 0, c.Count())
	assert.Equal(t, StatusRegistered, c.Register("x", &track.Track{ID: "b"}).Status)
}

type staticMessages struct{}

func (staticMessages) GetMessage(code string) string { return "msg:" + code }
func (staticMessages) VotesNeeded(n int) string    { return fmt.Sprintf("need:%d", n) }

func TestController_CustomMessages(t *testing.T) {
	c := NewController(Config{Required: 2, RandomRequired: 1}, staticMessages{})
	current := &track.Track{ID: "a"}

	assert.Equal(t, "need:1", c.Register("x", current).Message)
	assert.Equal(t, "msg:already_voted", c.Register("x", current).Message)
	assert.Equal(t, "msg:skipped", c.Register("y", current).Message)
	assert.Equal(t, "msg:nothing_to_skip", c.Register("z", nil).Message)
}
