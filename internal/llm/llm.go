package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// LLMClient returns a JSON document for a prompt and a JSON-serializable input.
type LLMClient interface {
	Name() string
	GenerateJSON(ctx context.Context, prompt string, input any) (json.RawMessage, error)
	Close() error
}

var ErrInvalidJSON = errors.New("llm: invalid JSON from model")

// PermanentError marks a failure that retrying cannot fix (bad key, bad request).
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return "llm: permanent: " + e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// ComposePrompt appends the indented input JSON to the prompt.
func ComposePrompt(prompt string, input any) (string, error) {
	if input == nil {
		return prompt, nil
	}
	in, err := json.MarshalIndent(input, "", "  ")
	if err != nil {
		return "", fmt.Errorf("llm: marshal input: %w", err)
	}
	return prompt + "\n\n[INPUT JSON]\n" + string(in), nil
}

// CleanJSON strips markdown code fences some models wrap around JSON and
// checks that what remains is valid.
func CleanJSON(text string) (json.RawMessage, error) {
	b := bytes.TrimSpace([]byte(text))
	b = bytes.TrimPrefix(b, []byte("```json"))
	b = bytes.TrimPrefix(b, []byte("```"))
	b = bytes.TrimSuffix(b, []byte("```"))
	b = bytes.TrimSpace(b)
	if len(b) == 0 || !json.Valid(b) {
		return nil, ErrInvalidJSON
	}
	return json.RawMessage(b), nil
}
