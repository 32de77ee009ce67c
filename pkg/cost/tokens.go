package cost

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

var (
	tokenEncoder *tiktoken.Tiktoken
	encoderOnce  sync.Once
	encoderErr   error
)

func initTokenEncoder() error {
	encoderOnce.Do(func() {
		tokenEncoder, encoderErr = tiktoken.GetEncoding("cl100k_base")
	})
	return encoderErr
}

// EstimateTokens counts text tokens with tiktoken's cl100k_base encoding,
// falling back to a character-based estimate if the encoder is unavailable.
func EstimateTokens(text string) int {
	if err := initTokenEncoder(); err != nil {
		return estimateTokensFallback(text)
	}
	return len(tokenEncoder.Encode(text, nil, nil))
}

func estimateTokensFallback(text string) int {
	// Roughly 4 characters per token in English prose.
	return (len(text) + 3) / 4
}
