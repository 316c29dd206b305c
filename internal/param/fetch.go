package param

import "context"

// Fetcher resolves a named secret.
type Fetcher interface {
	Fetch(context.Context, string) (string, error)
}
