// Package vote tracks skip votes for the current track.
package vote

import (
	"fmt"
	"sync"

	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/crowdbox/internal/domain/track"
)

// Status is the outcome of a vote.
type Status int

const (
	StatusNothingToSkip Status = iota
	StatusAlreadyVoted
	StatusRegistered
	StatusSkipped
)

// String returns the string representation of the status.
func (s Status) String() string {
	switch s {
	case StatusNothingToSkip:
		return "nothing_to_skip"
	case StatusAlreadyVoted:
		return "already_voted"
	case StatusRegistered:
		return "registered"
	case StatusSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// Result describes a registered vote.
type Result struct {
	Status    Status
	Votes     int
	Required  int
	Remaining int
	Message   string
}

// Messages renders user-facing vote replies. *config.Config implements it.
type Messages interface {
	GetMessage(code string) string
	VotesNeeded(remaining int) string
}

// Config represents vote thresholds.
type Config struct {
	Required       int
	RandomRequired int
}

// Controller holds the set of callers who voted to skip the current track.
type Controller struct {
	mu       sync.Mutex
	cfg      Config
	messages Messages
	voters   map[string]struct{}
}

// NewController creates a new Controller. A nil messages uses English defaults.
func NewController(cfg Config, messages Messages) *Controller {
	if cfg.Required <= 0 {
		cfg.Required = 4
	}
	if cfg.RandomRequired <= 0 {
		cfg.RandomRequired = 1
	}
	if messages == nil {
		messages = defaultMessages{}
	}
	return &Controller{
		cfg:      cfg,
		messages: messages,
		voters:   make(map[string]struct{}),
	}
}

// Required returns the number of votes needed to skip t.
func (c *Controller) Required(t *track.Track) int {
	if t != nil && t.RandomlyChosen {
		return c.cfg.RandomRequired
	}
	return c.cfg.Required
}

// Register records a skip vote from caller against current.
// A StatusSkipped result means the threshold was reached; the caller is
// responsible for advancing and then calling Reset.
func (c *Controller) Register(caller string, current *track.Track) Result {
	c.mu.Lock()
	defer c.mu.Unlock()

	if current == nil {
		return Result{Status: StatusNothingToSkip, Message: c.messages.GetMessage("nothing_to_skip")}
	}

	required := c.Required(current)
	if _, ok := c.voters[caller]; ok {
		return Result{
			Status:    StatusAlreadyVoted,
			Votes:     len(c.voters),
			Required:  required,
			Remaining: max(required-len(c.voters), 0),
			Message:   c.messages.GetMessage("already_voted"),
		}
	}

	c.voters[caller] = struct{}{}
	votes := len(c.voters)
	zlog.Info().Msgf("skip vote: track_id=%s caller=%s votes=%d required=%d", current.ID, caller, votes, required)

	if votes >= required {
		return Result{
			Status:   StatusSkipped,
			Votes:    votes,
			Required: required,
			Message:  c.messages.GetMessage("skipped"),
		}
	}

	remaining := required - votes
	return Result{
		Status:    StatusRegistered,
		Votes:     votes,
		Required:  required,
		Remaining: remaining,
		Message:   c.messages.VotesNeeded(remaining),
	}
}

// Reset clears the vote set.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.voters)
}

// Count returns the number of distinct voters.
func (c *Controller) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.voters)
}

type defaultMessages struct{}

func (defaultMessages) GetMessage(code string) string {
	switch code {
	case "nothing_to_skip":
		return "nothing is playing"
	case "already_voted":
		return "you have already voted to skip this track"
	default:
		return ""
	}
}

func (defaultMessages) VotesNeeded(remaining int) string {
	if remaining == 1 {
		return "1 more vote needed"
	}
	return fmt.Sprintf("%d more votes needed", remaining)
}
