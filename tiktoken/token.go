// Package tiktoken counts tokens with OpenAI's BPE encodings.
package tiktoken

import (
	"context"
	"strings"

	"github.com/fwojciec/ragchat"
	"github.com/pkoukk/tiktoken-go"
)

// DefaultModel is used when no model is given.
const DefaultModel = "gpt-3.5-turbo"

// gpt2Encoding approximates tokenizers of Hugging Face models such as
// bigscience/bloom, which tiktoken does not know.
const gpt2Encoding = "r50k_base"

var _ ragchat.TokenCounter = (*TokenCounter)(nil)

// TokenCounter counts tokens using the encoding of an OpenAI model.
type TokenCounter struct {
	enc *tiktoken.Tiktoken
}

// NewTokenCounter creates a TokenCounter for the given model.
func NewTokenCounter(model string) (*TokenCounter, error) {
	name, err := EncodingName(model)
	if err != nil {
		return nil, err
	}
	enc, err := tiktoken.GetEncoding(name)
	if err != nil {
		return nil, ragchat.Errorf(ragchat.EUNAVAILABLE, "load %s encoding: %v", name, err)
	}
	return &TokenCounter{enc: enc}, nil
}

// EncodingName returns the name of the encoding used for model. Model names
// containing a slash are Hugging Face models and get the GPT-2 encoding.
func EncodingName(model string) (string, error) {
	if model == "" {
		model = DefaultModel
	}
	if strings.Contains(model, "/") {
		return gpt2Encoding, nil
	}
	if name, ok := tiktoken.MODEL_TO_ENCODING[model]; ok {
		return name, nil
	}

	// Longest matching prefix, e.g. "gpt-3.5-turbo-" for dated snapshots.
	var name, prefix string
	for p, enc := range tiktoken.MODEL_PREFIX_TO_ENCODING {
		if strings.HasPrefix(model, p) && len(p) > len(prefix) {
			name, prefix = enc, p
		}
	}
	if name == "" {
		return "", ragchat.Errorf(ragchat.EINVALID, "no tokenizer for model %q", model)
	}
	return name, nil
}

// CountTokens counts the number of tokens in the given text.
func (tc *TokenCounter) CountTokens(ctx context.Context, text string) (int, error) {
	if text == "" {
		return 0, nil
	}
	return len(tc.enc.Encode(text, nil, nil)), nil
}
