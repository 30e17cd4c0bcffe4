// Package testutil provides testing utilities for the studies extractor.
package testutil

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

// StudyColumns is the header used by the default mock data set.
var StudyColumns = []string{"NCT Number", "Study Title", "Study URL"}

// StudyRecords generates n deterministic study rows matching StudyColumns.
func StudyRecords(n int) [][]string {
	records := make([][]string, n)
	for i := range records {
		id := fmt.Sprintf("NCT%08d", i+1)
		records[i] = []string{
			id,
			fmt.Sprintf("Study %d, \"phase\" %d", i+1, i%4+1),
			"https://clinicaltrials.gov/study/" + id,
		}
	}
	return records
}

// MockResponse defines a canned response served instead of a page.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockStudies is a configurable mock of the studies listing endpoint that
// serves CSV pages chained by page tokens.
type MockStudies struct {
	server *httptest.Server
	mu     sync.RWMutex

	columns []string
	records [][]string

	totalCount   int  // value of X-Total-Count
	dropTokenAt  int  // page index whose response omits the next token; -1 = never
	byteOrderBOM bool // prefix bodies with a UTF-8 BOM
	queued       []MockResponse

	requests []url.Values
	headers  []http.Header
}

// NewMockStudies creates a mock server serving the given data set.
func NewMockStudies(columns []string, records [][]string) *MockStudies {
	m := &MockStudies{
		columns:     columns,
		records:     records,
		totalCount:  len(records),
		dropTokenAt: -1,
	}
	m.server = httptest.NewServer(http.HandlerFunc(m.handle))
	return m
}

// URL returns the mock endpoint URL.
func (m *MockStudies) URL() string {
	return m.server.URL + "/api/v2/studies"
}

// Close shuts down the mock server.
func (m *MockStudies) Close() {
	m.server.Close()
}

// SetTotalCount overrides the X-Total-Count header value.
func (m *MockStudies) SetTotalCount(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.totalCount = n
}

// DropTokenAt makes the response for the given zero-based page omit the
// X-Next-Page-Token header, ending the token chain early.
func (m *MockStudies) DropTokenAt(page int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dropTokenAt = page
}

// UseBOM prefixes every CSV body with a UTF-8 byte order mark.
func (m *MockStudies) UseBOM() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byteOrderBOM = true
}

// Enqueue registers canned responses served, in order, before regular pages.
func (m *MockStudies) Enqueue(responses ...MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queued = append(m.queued, responses...)
}

// Requests returns the query values of every request received so far.
func (m *MockStudies) Requests() []url.Values {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]url.Values, len(m.requests))
	copy(out, m.requests)
	return out
}

// RequestCount returns the number of requests received.
func (m *MockStudies) RequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.requests)
}

// LastHeader returns the headers of the most recent request.
func (m *MockStudies) LastHeader() http.Header {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.headers) == 0 {
		return nil
	}
	return m.headers[len(m.headers)-1]
}

// PageToken returns the token the mock issues for a zero-based page index.
func PageToken(page int) string {
	return "page-" + strconv.Itoa(page)
}

func (m *MockStudies) handle(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	m.requests = append(m.requests, r.URL.Query())
	m.headers = append(m.headers, r.Header.Clone())
	var canned *MockResponse
	if len(m.queued) > 0 {
		canned = &m.queued[0]
		m.queued = m.queued[1:]
	}
	m.mu.Unlock()

	if canned != nil {
		serveCanned(w, *canned)
		return
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	query := r.URL.Query()
	size := 1000
	if raw := query.Get("pageSize"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			http.Error(w, "invalid pageSize", http.StatusBadRequest)
			return
		}
		size = n
	}
	if query.Get("format") != "csv" {
		http.Error(w, "format must be csv", http.StatusBadRequest)
		return
	}

	page := 0
	if token := query.Get("pageToken"); token != "" {
		n, err := strconv.Atoi(strings.TrimPrefix(token, "page-"))
		if err != nil || !strings.HasPrefix(token, "page-") || n < 1 {
			http.Error(w, "invalid pageToken", http.StatusBadRequest)
			return
		}
		page = n
	}

	start := page * size
	if start > len(m.records) {
		start = len(m.records)
	}
	end := start + size
	if end > len(m.records) {
		end = len(m.records)
	}

	var buf bytes.Buffer
	if m.byteOrderBOM {
		buf.WriteString("\ufeff")
	}
	cw := csv.NewWriter(&buf)
	if err := cw.Write(m.columns); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if err := cw.WriteAll(m.records[start:end]); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	if query.Get("countTotal") == "true" {
		w.Header().Set("X-Total-Count", strconv.Itoa(m.totalCount))
	}
	if end < len(m.records) && page != m.dropTokenAt {
		w.Header().Set("X-Next-Page-Token", PageToken(page+1))
	}
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

func serveCanned(w http.ResponseWriter, resp MockResponse) {
	if resp.Delay > 0 {
		time.Sleep(resp.Delay)
	}
	for key, value := range resp.Headers {
		w.Header().Set(key, value)
	}
	w.WriteHeader(resp.StatusCode)
	if resp.Body != "" {
		w.Write([]byte(resp.Body))
	}
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       "internal server error",
	}
}

// NewRateLimitResponse creates a 429 Too Many Requests response.
func NewRateLimitResponse(retryAfter string) MockResponse {
	resp := MockResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       "rate limit exceeded",
	}
	if retryAfter != "" {
		resp.Headers = map[string]string{"Retry-After": retryAfter}
	}
	return resp
}

// NewNotFoundResponse creates a 404 Not Found response.
func NewNotFoundResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusNotFound,
		Body:       "not found",
	}
}
