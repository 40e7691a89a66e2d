package cachebust

import (
	"strconv"
	"sync"
	"time"
)

// TokenSource gives out the cache token for one export
type TokenSource interface {
	NextToken() string
}

// FixedToken is a TokenSource that gives the same token for every export
type FixedToken string

func (t FixedToken) NextToken() string {
	return string(t)
}

// TimestampTokens gives every export the time it started, in milliseconds since the Unix epoch.
// Tokens are strictly increasing, so two exports started within the same millisecond still get different tokens.
type TimestampTokens struct {
	mu   sync.Mutex
	now  func() time.Time
	last int64
}

func NewTimestampTokens() *TimestampTokens {
	return &TimestampTokens{now: time.Now}
}

func (tt *TimestampTokens) NextToken() string {
	tt.mu.Lock()
	defer tt.mu.Unlock()

	token := tt.now().UnixNano() / int64(time.Millisecond)
	if token <= tt.last {
		token = tt.last + 1
	}
	tt.last = token

	return strconv.FormatInt(token, 10)
}
