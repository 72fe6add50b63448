package domain

import (
	"fmt"
	"strings"
)

// Query is a user question bound to the policy instruction sent with it.
type Query struct {
	text        string
	instruction string
}

func NewQuery(text, instruction string) (Query, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Query{}, WrapError(ErrInvalidInput, "new query", fmt.Errorf("question is empty"))
	}
	return Query{
		text:        text,
		instruction: strings.TrimSpace(instruction),
	}, nil
}

func (q Query) Text() string {
	return q.text
}

func (q Query) Instruction() string {
	return q.instruction
}

// Prompt is the outbound text for both search capabilities.
func (q Query) Prompt() string {
	if q.instruction == "" {
		return q.text
	}
	return q.text + "\n\n" + q.instruction
}
