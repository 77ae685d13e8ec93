package utils

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/etkecc/go-apm"

	"github.com/tchapgouv/rps/internal/version"
)

// DefaultTimeout for http requests
const DefaultTimeout = 30 * time.Second

// httpClient with timeout and without automatic retries -
// every operation of this service is single-shot by contract
var httpClient = apm.WrapClient(&http.Client{Timeout: DefaultTimeout}, apm.WithMaxRetries(0))

// Get performs HTTP GET request with timeout and User-Agent
func Get(ctx context.Context, uri string, query url.Values) (*http.Response, error) {
	if len(query) > 0 {
		uri += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, http.NoBody)
	if err != nil {
		return nil, err
	}
	return Do(req)
}

// Do performs HTTP request with timeout and User-Agent
func Do(req *http.Request) (*http.Response, error) {
	var err error
	var resp *http.Response
	ctx, cancel := context.WithTimeout(req.Context(), DefaultTimeout)
	defer func() {
		// cancel only on error: the caller still has to read the body on success
		if err != nil {
			cancel()
		}
	}()

	req = req.WithContext(ctx)
	req.Header.Set("User-Agent", version.UserAgent)
	resp, err = httpClient.Do(req)
	return resp, err
}

// ParseURL parses a URL and returns a URL structure
func ParseURL(uri string) *url.URL {
	if uri == "" {
		return nil
	}
	u, err := url.Parse(uri)
	if err != nil {
		return nil
	}
	return u
}

// Unescape unescapes a URL-encoded string, e.g. a path param ("%40" -> "@")
// if unescaping fails, it returns the original value
func Unescape(value string) string {
	unescapedValue, err := url.QueryUnescape(value)
	if err == nil {
		return unescapedValue
	}
	return value
}
