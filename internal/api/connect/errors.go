package connect

import (
	"connectrpc.com/connect"
	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/crowdbox/internal/app/provider"
	"github.com/osa030/crowdbox/internal/app/session"
)

// RejectCodeKey is the error metadata key carrying the admission filter code of a rejected enqueue.
const RejectCodeKey = "Crowdbox-Reject-Code"

// toConnectError maps session errors to connect codes. Rejected enqueues carry
// the configured rejection message and the filter code.
func toConnectError(err error) *connect.Error {
	var code connect.Code
	switch {
	case errors.Is(err, session.ErrTrackNotFound):
		code = connect.CodeNotFound
	case errors.Is(err, session.ErrTrackRejected):
		code = connect.CodeFailedPrecondition
	case errors.Is(err, session.ErrInvalidTrack), errors.Is(err, provider.ErrUnknownSource):
		code = connect.CodeInvalidArgument
	case errors.Is(err, session.ErrClosed):
		code = connect.CodeUnavailable
	case errors.HasAssertionFailure(err):
		zlog.Error().Msgf("invariant violation: %+v", err)
		code = connect.CodeInternal
	default:
		code = connect.CodeInternal
	}

	message := err.Error()
	var rejected *session.RejectedError
	isRejected := errors.As(err, &rejected)
	if isRejected && rejected.Message != "" {
		message = rejected.Message
	}

	cerr := connect.NewError(code, errors.New(message))
	if isRejected {
		cerr.Meta().Set(RejectCodeKey, rejected.Code)
	}
	return cerr
}

// RejectCode returns the admission filter code carried by err, if any.
func RejectCode(err error) string {
	var cerr *connect.Error
	if errors.As(err, &cerr) {
		return cerr.Meta().Get(RejectCodeKey)
	}
	return ""
}
