package client

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

// Response headers carrying pagination state.
const (
	HeaderTotalCount    = "X-Total-Count"
	HeaderNextPageToken = "X-Next-Page-Token"
)

// Response is a fully read studies response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte

	// URL is the request URL, kept for logging.
	URL string
}

// TotalCount returns the number of studies matching the query, as reported
// when countTotal is requested.
func (r *Response) TotalCount() (int, error) {
	raw := strings.TrimSpace(r.Header.Get(HeaderTotalCount))
	if raw == "" {
		return 0, fmt.Errorf("%w: %s", ErrMissingHeader, HeaderTotalCount)
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("parse %s header %q: %w", HeaderTotalCount, raw, err)
	}
	if n < 0 {
		return 0, fmt.Errorf("negative %s header: %d", HeaderTotalCount, n)
	}
	return n, nil
}

// NextPageToken returns the token of the following page. The second value is
// false when the header is absent or empty, i.e. this is the last page.
func (r *Response) NextPageToken() (string, bool) {
	if _, present := r.Header[http.CanonicalHeaderKey(HeaderNextPageToken)]; !present {
		return "", false
	}
	token := r.Header.Get(HeaderNextPageToken)
	return token, token != ""
}
