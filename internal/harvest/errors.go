package harvest

import (
	"errors"
	"fmt"
)

// TransportError marks a source fetch failure that was retryable (network
// unreachable, rate limited, 5xx). After retries are exhausted it surfaces
// to the harvest level, where it downgrades the run to an error log entry
// without touching sibling harvesters.
type TransportError struct {
	Source string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport failure for source %s: %v", e.Source, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// IsTransport reports whether err is (or wraps) a TransportError.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// ErrUnknownSourceType is returned for harvest requests naming a source
// type no registered harvester owns.
var ErrUnknownSourceType = errors.New("no harvester registered for source type")
