package filter

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"

	"github.com/osa030/crowdbox/internal/domain/track"
)

// CallerPendingConfig represents the configuration for CallerPendingFilter.
type CallerPendingConfig struct {
	MaxPending int `yaml:"max_pending" mapstructure:"max_pending" default:"3" validate:"gte=1"`
}

// CallerPendingFilter limits how many tracks a single caller may have waiting.
type CallerPendingFilter struct {
	config *CallerPendingConfig
}

func (f *CallerPendingFilter) Name() string {
	return "caller_pending_filter"
}

func (f *CallerPendingFilter) Description() string {
	return "Checks if the caller already has too many tracks waiting to be played"
}

func (f *CallerPendingFilter) ReturnCodes() []string {
	return []string{"caller_pending"}
}

func (f *CallerPendingFilter) ValidateConfig(settings map[string]any) error {
	var config CallerPendingConfig
	if err := mapstructure.WeakDecode(settings, &config); err != nil {
		return errors.Wrap(err, "failed to decode settings")
	}
	if err := defaults.Set(&config); err != nil {
		return errors.Wrap(err, "failed to set defaults")
	}
	if err := validator.New().Struct(config); err != nil {
		return errors.Wrap(err, "validation failed")
	}
	f.config = &config
	return nil
}

func (f *CallerPendingFilter) Check(ctx context.Context, req Request) Result {
	// Anonymous requests cannot be attributed
	if req.Caller == "" {
		return Accept()
	}

	limit := 3
	if f.config != nil {
		limit = f.config.MaxPending
	}

	pending := 0
	for _, t := range req.Queue {
		if t.RequestedBy == req.Caller && t.State != track.StateFailed {
			pending++
		}
	}
	if pending >= limit {
		return Reject("caller_pending")
	}
	return Accept()
}

func init() {
	Register("caller_pending_filter", func() Filter {
		return &CallerPendingFilter{}
	})
}
