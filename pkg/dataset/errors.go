package dataset

import "errors"

// ErrData marks missing or unreadable input images. It is fatal to an analysis run.
var ErrData = errors.New("invalid input data")
