package protocol

import (
	"context"
	"errors"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"antventure.ai/internal/sim/calib"
)

const (
	// Protocol/transport validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"
	ErrProtoVersion    = "E_PROTO_VERSION"

	// Run layer.
	ErrBadRequest = "E_BAD_REQUEST"
	ErrConfig     = "E_CONFIG"
	ErrBusy       = "E_BUSY"
	ErrCancelled  = "E_CANCELLED"
	ErrInternal   = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest: {},
	ErrProtoVersion:    {},
	ErrBadRequest:      {},
	ErrConfig:          {},
	ErrBusy:            {},
	ErrCancelled:       {},
	ErrInternal:        {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}

var (
	// ErrMalformed marks a frame that is not a JSON object of a known type.
	ErrMalformed = errors.New("malformed message")
	// ErrUnsupportedVersion marks a request for a protocol version this server does not speak.
	ErrUnsupportedVersion = errors.New("unsupported protocol version")
	// ErrRunInProgress is returned when a connection sends RUN while another run streams.
	ErrRunInProgress = errors.New("a run is already in progress on this connection")
)

// CodeFor classifies an error for the wire.
func CodeFor(err error) string {
	var verr *jsonschema.ValidationError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, calib.ErrConfig):
		return ErrConfig
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ErrCancelled
	case errors.Is(err, ErrUnsupportedVersion):
		return ErrProtoVersion
	case errors.Is(err, ErrMalformed):
		return ErrProtoBadRequest
	case errors.Is(err, ErrRunInProgress):
		return ErrBusy
	case errors.As(err, &verr):
		return ErrBadRequest
	}
	return ErrInternal
}
