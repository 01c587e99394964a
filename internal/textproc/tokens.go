package textproc

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

const fallbackEncoding = "cl100k_base"

// Clamper truncates text to a token budget using the tokenizer of the
// configured embedding model. Construct once and share; encodings are
// expensive to load.
type Clamper struct {
	enc *tiktoken.Tiktoken
}

// NewClamper loads the tokenizer for model, falling back to cl100k_base for
// models tiktoken does not know about.
func NewClamper(model string) (*Clamper, error) {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding(fallbackEncoding)
		if err != nil {
			return nil, fmt.Errorf("load tokenizer: %w", err)
		}
	}
	return &Clamper{enc: enc}, nil
}

// Count returns the number of tokens in text.
func (c *Clamper) Count(text string) int {
	return len(c.enc.Encode(text, nil, nil))
}

// Clamp truncates text to at most maxTokens tokens. A text of maxTokens
// bytes or fewer cannot exceed the budget, so it is returned without
// tokenizing.
func (c *Clamper) Clamp(text string, maxTokens int) string {
	if maxTokens <= 0 || len(text) <= maxTokens {
		return text
	}
	tokens := c.enc.Encode(text, nil, nil)
	if len(tokens) <= maxTokens {
		return text
	}
	return c.enc.Decode(tokens[:maxTokens])
}
