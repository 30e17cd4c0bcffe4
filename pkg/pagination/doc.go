// Package pagination walks the token-chained pages of the studies endpoint.
//
// The studies API returns at most 1000 records per page. The first response
// carries the total record count (X-Total-Count, when countTotal=true) and
// every page except the last carries the token of the following page
// (X-Next-Page-Token). Pages can only be reached by following the chain, so
// fetching is strictly sequential.
//
// Example usage:
//
//	cursor := pagination.NewCursor(studiesClient, client.NewQuery(1000))
//	for {
//		page, ok, err := cursor.Next(ctx)
//		if err != nil || !ok {
//			break
//		}
//		// page.Response.Body holds the CSV for page.Index
//	}
//
// The cursor:
//   - Reuses an already fetched first response when seeded
//   - Advances the page token from each response
//   - Reports the end of the chain through Page.HasNext and Done
package pagination
