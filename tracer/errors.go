package tracer

import "errors"

// Configuration errors. A run that returns one of these made no progress in
// the failing window.
var (
	ErrTooFewTimeSteps = errors.New("tracer: need at least two distinct input times")
	ErrNonIncreasing   = errors.New("tracer: snapshot times must increase")
	ErrBackward        = errors.New("tracer: only forward integration is supported")
)
