package rate

import (
	"errors"

	"github.com/MrEthical07/authd/session"
)

var (
	// ErrRateLimited is returned when a counter is over budget.
	ErrRateLimited = errors.New("rate limited")
	// ErrRedisUnavailable aliases the token cache sentinel so callers test one error.
	ErrRedisUnavailable = session.ErrRedisUnavailable
)
