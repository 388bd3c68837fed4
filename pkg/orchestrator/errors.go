package orchestrator

import "errors"

// ErrInvalidArgument is returned for a turn without user, session or a known path.
var ErrInvalidArgument = errors.New("invalid turn argument")
