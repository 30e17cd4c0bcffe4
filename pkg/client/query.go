package client

import (
	"fmt"
	"net/url"
	"strconv"
	"time"
)

// Query parameter names understood by the studies endpoint.
const (
	ParamPageSize       = "pageSize"
	ParamFormat         = "format"
	ParamCountTotal     = "countTotal"
	ParamPageToken      = "pageToken"
	ParamFilterAdvanced = "filter.advanced"
)

const (
	// DefaultPageSize is the number of studies requested per page.
	DefaultPageSize = 1000

	// MaxPageSize is the largest page the API serves.
	MaxPageSize = 1000

	// FormatCSV selects the comma separated output format.
	FormatCSV = "csv"

	// DateLayout is the layout of the last-update filter date.
	DateLayout = "2006-01-02"
)

// Query is an immutable set of parameters for one studies request. Builder
// methods return modified copies, so a Query can be handed to the next
// iteration of a loop without sharing state with the previous one.
type Query struct {
	pageSize  int
	pageToken string
	since     time.Time
}

// NewQuery creates a query for pages of the given size. Sizes outside
// [1..MaxPageSize] are clamped; zero selects DefaultPageSize.
func NewQuery(pageSize int) Query {
	switch {
	case pageSize == 0:
		pageSize = DefaultPageSize
	case pageSize < 1:
		pageSize = 1
	case pageSize > MaxPageSize:
		pageSize = MaxPageSize
	}
	return Query{pageSize: pageSize}
}

// PageSize returns the number of studies per page.
func (q Query) PageSize() int {
	return q.pageSize
}

// PageToken returns the page token, empty for the first page.
func (q Query) PageToken() string {
	return q.pageToken
}

// Since returns the last-update filter date and whether it is set.
func (q Query) Since() (time.Time, bool) {
	return q.since, !q.since.IsZero()
}

// WithPageToken returns a copy of the query positioned at the given page.
func (q Query) WithPageToken(token string) Query {
	q.pageToken = token
	return q
}

// WithSince returns a copy of the query restricted to studies whose last
// update was posted on or after the given date. A zero time removes the filter.
func (q Query) WithSince(since time.Time) Query {
	if since.IsZero() {
		q.since = time.Time{}
		return q
	}
	y, m, d := since.Date()
	q.since = time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return q
}

// Values renders the query parameters. Each call returns a new map.
func (q Query) Values() url.Values {
	v := make(url.Values)
	v.Set(ParamPageSize, strconv.Itoa(q.pageSize))
	v.Set(ParamFormat, FormatCSV)
	v.Set(ParamCountTotal, "true")
	if q.pageToken != "" {
		v.Set(ParamPageToken, q.pageToken)
	}
	if since, ok := q.Since(); ok {
		v.Set(ParamFilterAdvanced, SinceFilter(since))
	}
	return v
}

// SinceFilter builds the Essie expression selecting studies whose last update
// was posted on or after the given date, with an open upper bound.
func SinceFilter(since time.Time) string {
	return fmt.Sprintf("AREA[LastUpdatePostDate]RANGE[%s,MAX]", since.Format(DateLayout))
}

// ParseDate parses a YYYY-MM-DD date as used by the last-update filter.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return t, nil
}
