package dss

import (
	"errors"
	"fmt"
	"strings"
)

// ErrSyntax is returned for statements the tokenizer cannot split,
// such as unbalanced parentheses or quotes.
var ErrSyntax = errors.New("dss syntax error")

// Property is a single key=value pair of a statement.
type Property struct {
	Key   string
	Value string
}

// Statement is one logical DSS command, possibly spanning continuation lines.
type Statement struct {
	// Verb is the command word as written ("New", "Redirect", "Solve", ...).
	Verb string

	// Class and Name are set for object statements ("New Load.x").
	Class string
	Name  string

	// Args holds positional tokens that are not key=value pairs.
	Args []string

	// Props holds key=value pairs in source order.
	Props []Property

	// Comment is a trailing inline comment, without the marker.
	Comment string

	raw   string
	dirty bool
}

// NewStatement builds an object statement such as "New Storage.x".
func NewStatement(verb, class, name string, props ...Property) *Statement {
	return &Statement{Verb: verb, Class: class, Name: name, Props: props, dirty: true}
}

// P is shorthand for building a Property.
func P(key, value string) Property {
	return Property{Key: key, Value: value}
}

// Is reports whether the statement's verb matches, ignoring case.
func (s *Statement) Is(verb string) bool {
	return strings.EqualFold(s.Verb, verb)
}

// IsObject reports whether the statement defines an object of the given class.
func (s *Statement) IsObject(class string) bool {
	return s.Is("new") && strings.EqualFold(s.Class, class)
}

// Get returns the value of the first property matching key (case-insensitive).
func (s *Statement) Get(key string) (string, bool) {
	for _, p := range s.Props {
		if strings.EqualFold(p.Key, key) {
			return p.Value, true
		}
	}
	return "", false
}

// Has reports whether key is present.
func (s *Statement) Has(key string) bool {
	_, ok := s.Get(key)
	return ok
}

// Set replaces the first property matching key or appends a new one.
func (s *Statement) Set(key, value string) {
	s.dirty = true
	for i, p := range s.Props {
		if strings.EqualFold(p.Key, key) {
			s.Props[i].Value = value
			return
		}
	}
	s.Props = append(s.Props, Property{Key: key, Value: value})
}

// Rename changes the key of the first matching property, keeping its value and position.
func (s *Statement) Rename(oldKey, newKey string) bool {
	for i, p := range s.Props {
		if strings.EqualFold(p.Key, oldKey) {
			s.Props[i].Key = newKey
			s.dirty = true
			return true
		}
	}
	return false
}

// Delete removes every property matching key.
func (s *Statement) Delete(key string) {
	kept := s.Props[:0]
	for _, p := range s.Props {
		if strings.EqualFold(p.Key, key) {
			s.dirty = true
			continue
		}
		kept = append(kept, p)
	}
	s.Props = kept
}

// Modified reports whether the statement differs from its parsed text.
func (s *Statement) Modified() bool {
	return s.dirty || s.raw == ""
}

// String serializes the statement. Unmodified statements return their source text.
func (s *Statement) String() string {
	if !s.Modified() {
		return s.raw
	}

	var b strings.Builder
	b.WriteString(s.Verb)
	if s.Class != "" || s.Name != "" {
		b.WriteByte(' ')
		b.WriteString(s.Class)
		b.WriteByte('.')
		b.WriteString(s.Name)
	}
	for _, a := range s.Args {
		b.WriteByte(' ')
		b.WriteString(a)
	}
	for _, p := range s.Props {
		fmt.Fprintf(&b, " %s=%s", p.Key, p.Value)
	}
	if s.Comment != "" {
		b.WriteString(" ! ")
		b.WriteString(s.Comment)
	}
	return b.String()
}

// ParseStatement parses a single logical statement. Continuation lines may
// be included, separated by newlines.
func ParseStatement(text string) (*Statement, error) {
	var bodies, comments []string
	for _, line := range strings.Split(text, "\n") {
		body, comment := splitComment(line)
		bodies = append(bodies, body)
		if comment != "" {
			comments = append(comments, comment)
		}
	}
	comment := strings.Join(comments, "; ")
	tokens, err := tokenize(strings.Join(bodies, "\n"))
	if err != nil {
		return nil, err
	}
	if len(tokens) == 0 {
		return nil, fmt.Errorf("%w: empty statement", ErrSyntax)
	}

	st := &Statement{Verb: tokens[0], Comment: comment, raw: text}
	rest := tokens[1:]

	if st.Is("new") || st.Is("edit") {
		if len(rest) == 0 {
			return nil, fmt.Errorf("%w: %s without object", ErrSyntax, st.Verb)
		}
		obj := rest[0]
		if strings.HasPrefix(strings.ToLower(obj), "object=") {
			obj = obj[len("object="):]
		}
		class, name, ok := strings.Cut(obj, ".")
		if !ok {
			return nil, fmt.Errorf("%w: malformed object %q", ErrSyntax, obj)
		}
		st.Class, st.Name = class, name
		rest = rest[1:]
	}

	for _, tok := range rest {
		if k, v, ok := strings.Cut(tok, "="); ok && k != "" && !strings.ContainsAny(k, "([{\"'") {
			st.Props = append(st.Props, Property{Key: k, Value: v})
			continue
		}
		st.Args = append(st.Args, tok)
	}
	return st, nil
}

// splitComment removes a trailing "!" or "//" comment that is not inside
// a quoted or bracketed value.
func splitComment(text string) (string, string) {
	depth := 0
	var quote byte
	for i := 0; i < len(text); i++ {
		c := text[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
		case c == '(' || c == '[' || c == '{':
			depth++
		case c == ')' || c == ']' || c == '}':
			if depth > 0 {
				depth--
			}
		case depth == 0 && c == '!':
			return text[:i], strings.TrimSpace(text[i+1:])
		case depth == 0 && c == '/' && i+1 < len(text) && text[i+1] == '/':
			return text[:i], strings.TrimSpace(text[i+2:])
		}
	}
	return text, ""
}

// tokenize splits on whitespace outside brackets and quotes, joining
// "key = value" forms into a single "key=value" token.
func tokenize(text string) ([]string, error) {
	var tokens []string
	var cur strings.Builder
	depth := 0
	var quote byte

	flush := func() {
		if cur.Len() > 0 {
			tokens = append(tokens, cur.String())
			cur.Reset()
		}
	}

	for i := 0; i < len(text); i++ {
		c := text[i]
		switch {
		case quote != 0:
			cur.WriteByte(c)
			if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
			cur.WriteByte(c)
		case c == '(' || c == '[' || c == '{':
			depth++
			cur.WriteByte(c)
		case c == ')' || c == ']' || c == '}':
			depth--
			if depth < 0 {
				return nil, fmt.Errorf("%w: unbalanced %q", ErrSyntax, c)
			}
			cur.WriteByte(c)
		case depth > 0:
			if c == '\n' || c == '\r' || c == '\t' {
				c = ' '
			}
			cur.WriteByte(c)
		case c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == ',':
			flush()
		case c == '~' && cur.Len() == 0:
			// continuation marker
		default:
			cur.WriteByte(c)
		}
	}
	if quote != 0 {
		return nil, fmt.Errorf("%w: unterminated quote", ErrSyntax)
	}
	if depth != 0 {
		return nil, fmt.Errorf("%w: unbalanced brackets", ErrSyntax)
	}
	flush()

	// join "key =value", "key= value" and "key = value"
	joined := tokens[:0]
	for i := 0; i < len(tokens); i++ {
		tok := tokens[i]
		switch {
		case tok == "=" && len(joined) > 0 && i+1 < len(tokens):
			joined[len(joined)-1] += "=" + tokens[i+1]
			i++
		case strings.HasPrefix(tok, "=") && len(joined) > 0:
			joined[len(joined)-1] += tok
		case strings.HasSuffix(tok, "=") && strings.Count(tok, "=") == 1 && i+1 < len(tokens) && !strings.Contains(tokens[i+1], "="):
			joined = append(joined, tok+tokens[i+1])
			i++
		default:
			joined = append(joined, tok)
		}
	}
	return joined, nil
}
