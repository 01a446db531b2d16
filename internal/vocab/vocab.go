// Package vocab maps token ids to display strings and back. Decoding only
// ever works on ids; the vocabulary exists for prompts typed by people and
// for printing results.
package vocab

import (
	"fmt"
	"strconv"
	"strings"
)

// Vocab is an immutable id <-> token table.
type Vocab struct {
	tokens []string
	ids    map[string]int
}

// New builds a vocabulary from tokens, where a token's id is its index.
// Duplicate or empty tokens are rejected.
func New(tokens []string) (*Vocab, error) {
	v := &Vocab{
		tokens: append([]string(nil), tokens...),
		ids:    make(map[string]int, len(tokens)),
	}
	for i, tok := range tokens {
		if tok == "" {
			return nil, fmt.Errorf("vocab: empty token at id %d", i)
		}
		if prev, ok := v.ids[tok]; ok {
			return nil, fmt.Errorf("vocab: token %q at id %d duplicates id %d", tok, i, prev)
		}
		v.ids[tok] = i
	}
	return v, nil
}

// Numeric returns a vocabulary of n tokens named by their ids.
func Numeric(n int) *Vocab {
	tokens := make([]string, n)
	for i := range tokens {
		tokens[i] = strconv.Itoa(i)
	}
	v, _ := New(tokens)
	return v
}

// Len returns the vocabulary size.
func (v *Vocab) Len() int { return len(v.tokens) }

// Tokens returns a copy of the token table.
func (v *Vocab) Tokens() []string { return append([]string(nil), v.tokens...) }

// Token returns the display string for id. Unknown ids render as <id>.
func (v *Vocab) Token(id int) string {
	if id < 0 || id >= len(v.tokens) {
		return "<" + strconv.Itoa(id) + ">"
	}
	return v.tokens[id]
}

// ID looks up a token.
func (v *Vocab) ID(token string) (int, bool) {
	id, ok := v.ids[token]
	return id, ok
}

// Encode maps whitespace separated tokens to ids.
func (v *Vocab) Encode(text string) ([]int, error) {
	fields := strings.Fields(text)
	ids := make([]int, 0, len(fields))
	for _, f := range fields {
		id, ok := v.ids[f]
		if !ok {
			return nil, fmt.Errorf("vocab: unknown token %q", f)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Decode joins the tokens for ids with single spaces, dropping any id listed
// in skip.
func (v *Vocab) Decode(ids []int, skip ...int) string {
	var sb strings.Builder
	for _, id := range ids {
		if contains(skip, id) {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(v.Token(id))
	}
	return sb.String()
}

func contains(ids []int, id int) bool {
	for _, x := range ids {
		if x == id {
			return true
		}
	}
	return false
}
