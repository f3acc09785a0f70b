package monitor

import "errors"

// ErrConfigInvalid marks run configurations that cannot be executed at all.
// Runs failing this way produce no summary.
var ErrConfigInvalid = errors.New("invalid run configuration")
