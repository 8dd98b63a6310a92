// Package messages holds the user-facing push notification texts.
package messages

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

//go:embed messages.json
var defaultMessages []byte

// MessageText is a title and body that may contain {placeholders}.
type MessageText struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// Render substitutes {name} placeholders from vars. Unknown placeholders are
// left as is.
func (m MessageText) Render(vars map[string]string) (title, body string) {
	pairs := make([]string, 0, 2*len(vars))
	for k, v := range vars {
		pairs = append(pairs, "{"+k+"}", v)
	}
	r := strings.NewReplacer(pairs...)
	return r.Replace(m.Title), r.Replace(m.Body)
}

type Messages struct {
	ItemNeedsAttention MessageText `json:"item_needs_attention"`
}

// Default returns the built-in texts.
func Default() *Messages {
	var m Messages
	if err := json.Unmarshal(defaultMessages, &m); err != nil {
		panic(fmt.Sprintf("messages: embedded messages.json is invalid: %v", err))
	}
	return &m
}

// Load reads a JSON override file on top of the built-in texts. Fields the
// file leaves empty keep their default.
func Load(path string) (*Messages, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read messages file: %w", err)
	}

	var override Messages
	if err := json.Unmarshal(data, &override); err != nil {
		return nil, fmt.Errorf("failed to parse messages file: %w", err)
	}

	m := Default()
	if override.ItemNeedsAttention.Title != "" {
		m.ItemNeedsAttention.Title = override.ItemNeedsAttention.Title
	}
	if override.ItemNeedsAttention.Body != "" {
		m.ItemNeedsAttention.Body = override.ItemNeedsAttention.Body
	}
	return m, nil
}
