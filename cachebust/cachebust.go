package cachebust

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

const QueryParamName = "cache"

// DefaultRejectingProviders are URL fragments of providers whose servers reject unknown query parameters
var DefaultRejectingProviders = []string{
	"mapbox.com/styles/v1",
}

var dataURLRegexp = regexp.MustCompile(`(?i)^\s*data:([a-z]+/[a-z]+(;[a-z\-]+=[a-z\-]+)?)?(;base64)?,[a-z0-9!$&',()*+;=\-._~:@/?%\s]*\s*$`)

// IsDataURL reports whether url is a well-formed data URL
func IsDataURL(url string) bool {
	return dataURLRegexp.MatchString(url)
}

// CacheBuster appends a token to resource URLs, so that the resources are fetched fresh for an export and not
// served from a stale cache. The same token is used for every URL it busts, so that identical requests within one
// export can still be de-duplicated.
type CacheBuster struct {
	token              string
	rejectingProviders []string
}

func NewCacheBuster(token string) *CacheBuster {
	return &CacheBuster{token, DefaultRejectingProviders}
}

// NewTimestampCacheBuster creates a CacheBuster with the token being t in milliseconds since the Unix epoch
func NewTimestampCacheBuster(t time.Time) *CacheBuster {
	return NewCacheBuster(strconv.FormatInt(t.UnixNano()/int64(time.Millisecond), 10))
}

func (cb *CacheBuster) Token() string {
	return cb.token
}

// AddCacheString returns url with the cache token appended as a query parameter.
// Empty URLs, data URLs and URLs of providers that reject extra parameters are returned unchanged.
func (cb *CacheBuster) AddCacheString(url string) string {
	if url == "" {
		return url
	}

	if IsDataURL(url) || cb.isRejectingProvider(url) {
		return url
	}

	separator := "?"
	if strings.Contains(url, "?") {
		separator = "&"
	}

	return url + separator + QueryParamName + "=" + cb.token
}

func (cb *CacheBuster) isRejectingProvider(url string) bool {
	for _, fragment := range cb.rejectingProviders {
		if strings.Contains(url, fragment) {
			return true
		}
	}
	return false
}
