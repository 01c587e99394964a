package law

import "github.com/normtext/lawdex/internal/domain"

// buildHashFields converts a Law into a flat map[string]string for HSET.
func buildHashFields(law domain.Law) map[string]string {
	return map[string]string{
		"book_code":    law.BookCode,
		"title":        law.Title,
		"text":         law.Text,
		"text_reduced": law.TextReduced,
		"source_url":   law.SourceURL,
	}
}

// parseHashFields converts a flat hash map back into a Law.
func parseHashFields(id int64, m map[string]string) domain.Law {
	return domain.Law{
		ID:          id,
		BookCode:    m["book_code"],
		Title:       m["title"],
		Text:        m["text"],
		TextReduced: m["text_reduced"],
		SourceURL:   m["source_url"],
	}
}
