package discovery

import "errors"

// ErrEmptyQuery rejects a text search with a blank query before any
// backend call is made.
var ErrEmptyQuery = errors.New("empty search query")
