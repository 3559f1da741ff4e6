package agent

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// Counter measures prompt sizes in tokens. The cl100k_base encoding loads
// lazily; when it is unavailable (offline environments) counting falls back
// to a bytes/4 approximation, which is close enough for budget enforcement.
type Counter struct {
	once sync.Once
	enc  *tiktoken.Tiktoken
}

func NewCounter() *Counter {
	return &Counter{}
}

func (c *Counter) Count(text string) int {
	c.once.Do(func() {
		enc, err := tiktoken.GetEncoding(tiktoken.MODEL_CL100K_BASE)
		if err == nil {
			c.enc = enc
		}
	})
	if c.enc != nil {
		return len(c.enc.Encode(text, nil, nil))
	}
	return approxTokens(text)
}

func approxTokens(text string) int {
	return (len(text) + 3) / 4
}
