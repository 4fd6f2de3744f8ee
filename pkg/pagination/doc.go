// Package pagination tracks page-by-page progress of a single POI query.
//
// The AMap text search endpoint has no total-pages header. A query is paged
// with page_num = 1, 2, ... until a page reports count 0, so pages of one
// query must be fetched strictly in order. This package implements that as a
// small state machine, one Cursor per query:
//
//	Pending(page=1) -> InProgress(n) -> Exhausted | Aborted(reason)
//
// Example usage:
//
//	cursor := pagination.NewCursor(pagination.DefaultMaxPages)
//	for {
//		page, ok := cursor.Next()
//		if !ok {
//			break
//		}
//		resp, err := fetch(page)
//		if err != nil {
//			cursor.Abort(pagination.AbortTransport)
//			continue
//		}
//		cursor.Advance(resp.Count)
//	}
//
// The cursor:
//   - Advances while the reported count is non-zero
//   - Stops at a hard page ceiling (DefaultMaxPages) against a misbehaving API
//   - Ignores transitions once terminal
//
// A Cursor is not safe for concurrent use; it belongs to one coordinator.
package pagination
