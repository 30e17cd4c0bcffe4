package pagination

import (
	"context"
	"fmt"

	"github.com/Sternrassler/ctgov-extractor/pkg/client"
	"github.com/rs/zerolog/log"
)

// PageFetcher is the interface the studies client implements for single-page fetching.
type PageFetcher interface {
	Fetch(ctx context.Context, q client.Query) (*client.Response, error)
}

// Page is one step along the token chain.
type Page struct {
	// Index is the zero-based position of the page in the chain.
	Index int

	// Query is the query the page was fetched with.
	Query client.Query

	// Response is the fully read response.
	Response *client.Response

	// HasNext reports whether the response carried a next page token.
	HasNext bool
}

// Cursor follows the page token chain one page per Next call.
type Cursor struct {
	fetcher PageFetcher
	query   client.Query
	seed    *client.Response
	index   int
	done    bool
}

// NewCursor creates a cursor starting at the page addressed by q.
func NewCursor(fetcher PageFetcher, q client.Query) *Cursor {
	return &Cursor{fetcher: fetcher, query: q}
}

// Seed hands the cursor an already fetched response for its first page, so
// that the first Next call does not repeat the request.
func (c *Cursor) Seed(resp *client.Response) {
	if c.index == 0 {
		c.seed = resp
	}
}

// Done reports whether the chain has ended.
func (c *Cursor) Done() bool {
	return c.done
}

// Next returns the next page. The second value is false once the previous
// page carried no next page token. A fetch error leaves the cursor positioned
// on the failed page.
func (c *Cursor) Next(ctx context.Context) (*Page, bool, error) {
	if c.done {
		return nil, false, nil
	}

	query := c.query
	resp := c.seed
	c.seed = nil
	if resp == nil {
		var err error
		resp, err = c.fetcher.Fetch(ctx, query)
		if err != nil {
			return nil, false, fmt.Errorf("fetch page %d: %w", c.index, err)
		}
	}

	token, hasNext := resp.NextPageToken()
	if hasNext {
		c.query = query.WithPageToken(token)
	} else {
		c.done = true
	}

	page := &Page{
		Index:    c.index,
		Query:    query,
		Response: resp,
		HasNext:  hasNext,
	}
	c.index++

	log.Debug().
		Int("page", page.Index).
		Bool("has_next", hasNext).
		Msg("Page fetched")

	return page, true, nil
}

// PageCount returns the number of pages needed to hold total records,
// i.e. ceil(total / pageSize). Non-positive inputs yield zero.
func PageCount(total, pageSize int) int {
	if total <= 0 || pageSize <= 0 {
		return 0
	}
	return (total + pageSize - 1) / pageSize
}
