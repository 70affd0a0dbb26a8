package dom

import (
	"errors"
	"fmt"
	"strings"
)

// ErrSyntax is returned for empty tokens and malformed names or values.
var ErrSyntax = errors.New("dom: syntax error")

// TokenList is a DOMTokenList view over a space-separated attribute.
type TokenList struct {
	el   *Element
	attr string
}

func validToken(tok string) error {
	if tok == "" {
		return fmt.Errorf("%w: empty token", ErrSyntax)
	}
	if strings.ContainsAny(tok, " \t\n\f\r") {
		return fmt.Errorf("%w: token %q contains whitespace", ErrInvalidCharacter, tok)
	}
	return nil
}

// Values returns the tokens in order, without duplicates.
func (l *TokenList) Values() []string {
	raw := strings.Fields(l.el.GetAttribute(l.attr))
	out := raw[:0]
	for _, t := range raw {
		if !containsToken(out, t) {
			out = append(out, t)
		}
	}
	return out
}

// Len returns the number of tokens.
func (l *TokenList) Len() int { return len(l.Values()) }

// String returns the attribute value.
func (l *TokenList) String() string { return l.el.GetAttribute(l.attr) }

// Contains reports whether tok is present.
func (l *TokenList) Contains(tok string) bool {
	return containsToken(l.Values(), tok)
}

func (l *TokenList) write(tokens []string) error {
	return l.el.SetAttribute(l.attr, strings.Join(tokens, " "))
}

// Add adds the tokens that are not present yet.
func (l *TokenList) Add(tokens ...string) error {
	for _, t := range tokens {
		if err := validToken(t); err != nil {
			return err
		}
	}
	cur := l.Values()
	changed := false
	for _, t := range tokens {
		if !containsToken(cur, t) {
			cur = append(cur, t)
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return l.write(cur)
}

// Remove removes the given tokens.
func (l *TokenList) Remove(tokens ...string) error {
	for _, t := range tokens {
		if err := validToken(t); err != nil {
			return err
		}
	}
	cur := l.Values()
	out := make([]string, 0, len(cur))
	for _, t := range cur {
		if !containsToken(tokens, t) {
			out = append(out, t)
		}
	}
	if len(out) == len(cur) {
		return nil
	}
	return l.write(out)
}

// Toggle flips tok. force, when given, selects add (true) or remove (false).
// It returns whether tok is present afterwards.
func (l *TokenList) Toggle(tok string, force ...bool) (bool, error) {
	if err := validToken(tok); err != nil {
		return false, err
	}
	has := l.Contains(tok)
	want := !has
	if len(force) > 0 {
		want = force[0]
	}
	switch {
	case want && !has:
		return true, l.Add(tok)
	case !want && has:
		return false, l.Remove(tok)
	}
	return want, nil
}

// Replace swaps oldTok for newTok in place. It returns false when oldTok is
// absent.
func (l *TokenList) Replace(oldTok, newTok string) (bool, error) {
	if err := validToken(oldTok); err != nil {
		return false, err
	}
	if err := validToken(newTok); err != nil {
		return false, err
	}
	cur := l.Values()
	idx := -1
	for i, t := range cur {
		if t == oldTok {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false, nil
	}
	out := make([]string, 0, len(cur))
	for i, t := range cur {
		switch {
		case i == idx:
			if !containsToken(out, newTok) {
				out = append(out, newTok)
			}
		case t == newTok:
		default:
			out = append(out, t)
		}
	}
	return true, l.write(out)
}
