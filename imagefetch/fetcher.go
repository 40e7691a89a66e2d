package imagefetch

import (
	"context"
	"encoding/base64"
	"image"
	_ "image/gif"  // register gif decoder
	_ "image/jpeg" // register jpeg decoder
	_ "image/png"  // register png decoder
	"io"
	"net/http"
	"net/url"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/jamesrr39/goutil/errorsx"
	"github.com/jamesrr39/goutil/httpextra"
	"github.com/jamesrr39/goutil/logpkg"
	_ "golang.org/x/image/bmp"  // register bmp decoder
	_ "golang.org/x/image/webp" // register webp decoder
	"golang.org/x/sync/singleflight"
)

const DefaultUserAgent = "ownmap-image/1.0"

// Fetcher loads an image from a URL
type Fetcher interface {
	FetchImage(ctx context.Context, url string) (image.Image, errorsx.Error)
}

// HTTPFetcher fetches images over HTTP(S), and decodes data URLs in-process.
// Concurrent requests for the same URL share one round trip, and decoded images are kept in an LRU cache.
type HTTPFetcher struct {
	logger    *logpkg.Logger
	client    httpextra.Doer
	cache     *lru.Cache[string, image.Image]
	group     singleflight.Group
	UserAgent string
}

// NewHTTPFetcher creates a fetcher. A cacheSize of 0 disables caching of decoded images.
func NewHTTPFetcher(logger *logpkg.Logger, client httpextra.Doer, cacheSize int) (*HTTPFetcher, errorsx.Error) {
	var cache *lru.Cache[string, image.Image]
	if cacheSize > 0 {
		var err error
		cache, err = lru.New[string, image.Image](cacheSize)
		if err != nil {
			return nil, errorsx.Wrap(err, "cacheSize", cacheSize)
		}
	}

	return &HTTPFetcher{
		logger:    logger,
		client:    client,
		cache:     cache,
		UserAgent: DefaultUserAgent,
	}, nil
}

func (f *HTTPFetcher) FetchImage(ctx context.Context, url string) (image.Image, errorsx.Error) {
	if IsDataURL(url) {
		return DecodeDataURL(url)
	}

	if f.cache != nil {
		img, ok := f.cache.Get(url)
		if ok {
			return img, nil
		}
	}

	// the shared fetch isn't tied to the context of the caller that happened to start it, so that one caller giving
	// up doesn't fail the others waiting on the same URL. The client timeout still applies.
	resultChan := f.group.DoChan(url, func() (interface{}, error) {
		img, err := f.fetch(context.Background(), url)
		if err != nil {
			return nil, err
		}
		if f.cache != nil {
			f.cache.Add(url, img)
		}
		return img, nil
	})

	select {
	case <-ctx.Done():
		return nil, errorsx.Wrap(ctx.Err(), "url", url)
	case result := <-resultChan:
		if result.Err != nil {
			return nil, errorsx.Wrap(result.Err)
		}

		if result.Shared {
			f.logger.Debug("shared in-flight request for %q", url)
		}

		return result.Val.(image.Image), nil
	}
}

func (f *HTTPFetcher) fetch(ctx context.Context, url string) (image.Image, errorsx.Error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errorsx.Wrap(err, "url", url)
	}
	req.Header.Set("User-Agent", f.UserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, errorsx.Wrap(err, "url", url)
	}
	defer resp.Body.Close()

	err = httpextra.CheckResponseCode(http.StatusOK, resp.StatusCode)
	if err != nil {
		return nil, errorsx.Wrap(err, "url", url)
	}

	body, err := httpextra.RemoveGzip(resp)
	if err != nil {
		return nil, errorsx.Wrap(err, "url", url)
	}
	defer body.Close()

	img, format, err := image.Decode(body)
	if err != nil {
		return nil, errorsx.Wrap(err, "url", url)
	}

	f.logger.Debug("fetched %s image %q (%dx%d)", format, url, img.Bounds().Dx(), img.Bounds().Dy())

	return img, nil
}

// IsDataURL reports whether url starts with "data:". Unlike cachebust.IsDataURL it doesn't validate the rest of the
// URL; a malformed data URL fails when it is decoded.
func IsDataURL(url string) bool {
	return strings.HasPrefix(strings.TrimSpace(url), "data:")
}

// DecodeDataURL decodes an image embedded in a data URL, such as "data:image/png;base64,iVBOR..."
func DecodeDataURL(dataURL string) (image.Image, errorsx.Error) {
	dataURL = strings.TrimSpace(dataURL)
	if !IsDataURL(dataURL) {
		return nil, errorsx.Errorf("not a data URL")
	}

	commaIdx := strings.Index(dataURL, ",")
	if commaIdx < 0 {
		return nil, errorsx.Errorf("data URL has no payload")
	}

	header := dataURL[len("data:"):commaIdx]
	payload := dataURL[commaIdx+1:]

	var reader io.Reader
	if strings.HasSuffix(header, ";base64") {
		decoded, err := base64.StdEncoding.DecodeString(removeWhitespace(payload))
		if err != nil {
			return nil, errorsx.Wrap(err, "header", header)
		}
		reader = strings.NewReader(string(decoded))
	} else {
		unescaped, err := url.PathUnescape(payload)
		if err != nil {
			return nil, errorsx.Wrap(err, "header", header)
		}
		reader = strings.NewReader(unescaped)
	}

	img, _, err := image.Decode(reader)
	if err != nil {
		return nil, errorsx.Wrap(err, "header", header)
	}

	return img, nil
}

func removeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), "")
}
