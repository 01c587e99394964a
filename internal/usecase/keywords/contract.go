package keywords

import "context"

// Completer extracts keywords via a chat-completion provider.
type Completer interface {
	ExtractKeywords(ctx context.Context, query string) ([]string, error)
}
