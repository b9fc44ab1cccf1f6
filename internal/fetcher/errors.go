package fetcher

import (
	"context"
	"errors"
)

// ErrorKind classifies a fetch-stage failure for logging. Failures never
// leave this package as errors; the caller always gets a terminal record.
type ErrorKind string

const (
	KindTimeout      ErrorKind = "timeout"
	KindUpstream     ErrorKind = "upstream"
	KindUnresolvable ErrorKind = "unresolvable"
)

var errUnresolvable = errors.New("identity could not be resolved")

func classify(err error) ErrorKind {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(err, errUnresolvable):
		return KindUnresolvable
	default:
		return KindUpstream
	}
}
