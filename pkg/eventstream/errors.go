package eventstream

import "errors"

// ErrNilTransitionEvent indicates a nil transition event payload was provided to a publisher.
var ErrNilTransitionEvent = errors.New("nil transition event")
