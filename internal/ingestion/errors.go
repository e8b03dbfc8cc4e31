package ingestion

import "errors"

// ErrRateLimited means the feed refused the call because of upstream rate
// limiting. Callers wait a fixed cooldown instead of backing off.
var ErrRateLimited = errors.New("deposit feed rate limited")
