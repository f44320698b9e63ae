// Package oracle is the boundary to the language model that generates
// questions and recommendations. Callers hand it instructions, context
// messages and a JSON schema; output is decoded strictly into Go types.
package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// Role of a context message.
type Role string

const (
	RoleDeveloper Role = "developer"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry of the conversation context.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Request is a single oracle call. A nil Schema asks for free text.
type Request struct {
	// Name identifies the output schema, e.g. "college_intake_next_turn".
	Name            string
	Instructions    string
	Messages        []Message
	Schema          map[string]any
	MaxOutputTokens int
	Temperature     *float64
}

// Oracle completes a request and returns the raw model text.
type Oracle interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// ErrEmptyOutput is returned when the model produced no text.
var ErrEmptyOutput = errors.New("empty model output")

// ErrNoOracle is returned by single-shot agents constructed without an
// oracle (no API key configured).
var ErrNoOracle = errors.New("no oracle configured: set OPENAI_API_KEY or COLLEGEAI_OPENAI_API_KEY")

const snippetLimit = 1200

// SchemaError reports model output that does not match the expected shape.
type SchemaError struct {
	Name    string
	Snippet string
	Err     error
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("failed to parse %s model JSON: %v. Raw snippet: %s", e.Name, e.Err, e.Snippet)
}

func (e *SchemaError) Unwrap() error { return e.Err }

func newSchemaError(name, raw string, err error) *SchemaError {
	snippet := raw
	if len(snippet) > snippetLimit {
		n := snippetLimit
		for n > 0 && !utf8.RuneStart(snippet[n]) {
			n--
		}
		snippet = snippet[:n]
	}
	return &SchemaError{Name: name, Snippet: strings.ReplaceAll(snippet, "\n", `\n`), Err: err}
}

// Validator is implemented by decoded outputs that check their own
// invariants (enums, required fields) after unmarshaling.
type Validator interface {
	Validate() error
}

// Decode parses raw into T. Unknown fields are rejected. When the text does
// not parse as a whole, the outermost {...} block is tried once. Any failure
// is reported as *SchemaError.
func Decode[T any](name, raw string) (T, error) {
	var out T
	text := strings.TrimSpace(raw)
	if text == "" {
		return out, newSchemaError(name, raw, ErrEmptyOutput)
	}

	err := decodeStrict(text, &out)
	if err != nil {
		start := strings.Index(text, "{")
		end := strings.LastIndex(text, "}")
		if start < 0 || end <= start {
			return out, newSchemaError(name, raw, err)
		}
		out = *new(T)
		if err := decodeStrict(text[start:end+1], &out); err != nil {
			return out, newSchemaError(name, raw, err)
		}
	}

	if v, ok := any(&out).(Validator); ok {
		if err := v.Validate(); err != nil {
			return out, newSchemaError(name, raw, err)
		}
	}
	return out, nil
}

func decodeStrict(text string, v any) error {
	dec := json.NewDecoder(bytes.NewReader([]byte(text)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return errors.New("trailing data after JSON object")
	}
	return nil
}

// Call completes req on o and decodes the output into T.
func Call[T any](ctx context.Context, o Oracle, req Request) (T, error) {
	raw, err := o.Complete(ctx, req)
	if err != nil {
		var zero T
		return zero, err
	}
	return Decode[T](req.Name, raw)
}

// DeveloperJSON renders v as an indented developer message.
func DeveloperJSON(prefix string, v any) Message {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		b = []byte(fmt.Sprintf("%q", fmt.Sprint(v)))
	}
	if prefix != "" {
		return Message{Role: RoleDeveloper, Content: prefix + "\n" + string(b)}
	}
	return Message{Role: RoleDeveloper, Content: string(b)}
}
