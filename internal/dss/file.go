package dss

import (
	"fmt"
	"strings"
)

// Entry is one element of a File: either a statement or a verbatim line
// (blank line, comment, or block comment text).
type Entry struct {
	Stmt *Statement
	Text string
}

// String returns the serialized entry.
func (e Entry) String() string {
	if e.Stmt != nil {
		return e.Stmt.String()
	}
	return e.Text
}

// File is a parsed DSS file.
type File struct {
	Name    string
	Entries []Entry
}

// Parse parses DSS text. Statements that fail to tokenize produce an error
// wrapping ErrSyntax with the 1-based line number.
func Parse(name string, data []byte) (*File, error) {
	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	lines := strings.Split(text, "\n")
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}

	f := &File{Name: name}
	inBlock := false

	for i := 0; i < len(lines); i++ {
		line := lines[i]
		trimmed := strings.TrimSpace(line)

		if inBlock {
			f.Entries = append(f.Entries, Entry{Text: line})
			if strings.Contains(trimmed, "*/") {
				inBlock = false
			}
			continue
		}
		if strings.HasPrefix(trimmed, "/*") {
			f.Entries = append(f.Entries, Entry{Text: line})
			inBlock = !strings.Contains(trimmed, "*/")
			continue
		}
		if trimmed == "" || strings.HasPrefix(trimmed, "!") || strings.HasPrefix(trimmed, "//") {
			f.Entries = append(f.Entries, Entry{Text: line})
			continue
		}

		start := i
		raw := []string{line}
		for i+1 < len(lines) && isContinuation(lines[i+1]) {
			i++
			raw = append(raw, lines[i])
		}

		body := make([]string, len(raw))
		for j, r := range raw {
			body[j] = stripContinuation(r)
		}
		st, err := ParseStatement(strings.Join(body, "\n"))
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %w", name, start+1, err)
		}
		st.raw = strings.Join(raw, "\n")
		f.Entries = append(f.Entries, Entry{Stmt: st})
	}
	return f, nil
}

func isContinuation(line string) bool {
	t := strings.TrimSpace(line)
	if strings.HasPrefix(t, "~") {
		return true
	}
	lower := strings.ToLower(t)
	return lower == "more" || strings.HasPrefix(lower, "more ")
}

func stripContinuation(line string) string {
	t := strings.TrimSpace(line)
	if strings.HasPrefix(t, "~") {
		return strings.TrimSpace(t[1:])
	}
	if isContinuation(t) {
		return strings.TrimSpace(t[4:])
	}
	return t
}

// Statements returns the statements of the file in order.
func (f *File) Statements() []*Statement {
	var out []*Statement
	for _, e := range f.Entries {
		if e.Stmt != nil {
			out = append(out, e.Stmt)
		}
	}
	return out
}

// Objects returns the "New <class>." statements in order.
func (f *File) Objects(class string) []*Statement {
	var out []*Statement
	for _, e := range f.Entries {
		if e.Stmt != nil && e.Stmt.IsObject(class) {
			out = append(out, e.Stmt)
		}
	}
	return out
}

// Find returns the first object statement of class with the given name.
func (f *File) Find(class, name string) *Statement {
	for _, st := range f.Objects(class) {
		if strings.EqualFold(st.Name, name) {
			return st
		}
	}
	return nil
}

// Append adds statements at the end of the file.
func (f *File) Append(stmts ...*Statement) {
	for _, st := range stmts {
		f.Entries = append(f.Entries, Entry{Stmt: st})
	}
}

// AppendText adds a verbatim line at the end of the file.
func (f *File) AppendText(text string) {
	f.Entries = append(f.Entries, Entry{Text: text})
}

// Insert places entries before index i.
func (f *File) Insert(i int, entries ...Entry) {
	if i >= len(f.Entries) {
		f.Entries = append(f.Entries, entries...)
		return
	}
	out := make([]Entry, 0, len(f.Entries)+len(entries))
	out = append(out, f.Entries[:i]...)
	out = append(out, entries...)
	out = append(out, f.Entries[i:]...)
	f.Entries = out
}

// Clone returns a deep copy so that edits do not affect the receiver.
func (f *File) Clone() *File {
	c := &File{Name: f.Name, Entries: make([]Entry, len(f.Entries))}
	for i, e := range f.Entries {
		if e.Stmt == nil {
			c.Entries[i] = e
			continue
		}
		st := *e.Stmt
		st.Args = append([]string(nil), e.Stmt.Args...)
		st.Props = append([]Property(nil), e.Stmt.Props...)
		c.Entries[i] = Entry{Stmt: &st}
	}
	return c
}

// Bytes serializes the file with a trailing newline.
func (f *File) Bytes() []byte {
	var b strings.Builder
	for _, e := range f.Entries {
		b.WriteString(e.String())
		b.WriteByte('\n')
	}
	return []byte(b.String())
}
