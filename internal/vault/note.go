package vault

import (
	"bytes"
	"fmt"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/starford/incremental/internal/apperr"
)

const fence = "---"

// Note is a Markdown file with optional YAML frontmatter.
type Note struct {
	ID          string
	Frontmatter map[string]any
	Body        string
	raw         []byte
	fmErr       error
}

// Parse splits data into frontmatter and body. Content without a closing
// fence or with invalid YAML is treated as body only; the YAML error is kept
// and reported by FrontmatterErr.
func Parse(id string, data []byte) *Note {
	n := &Note{ID: id, Frontmatter: map[string]any{}, Body: string(data), raw: bytes.Clone(data)}

	trimmed := bytes.TrimLeft(data, "\n\r")
	if !bytes.HasPrefix(trimmed, []byte(fence)) {
		return n
	}
	rest := trimmed[len(fence):]
	idx := bytes.Index(rest, []byte("\n"+fence))
	if idx < 0 {
		return n
	}

	var fm map[string]any
	if err := yaml.Unmarshal(rest[:idx], &fm); err != nil {
		n.fmErr = fmt.Errorf("%w: %s: %v", apperr.ErrMalformedNote, id, err)
		return n
	}
	if fm != nil {
		n.Frontmatter = fm
	}
	n.Body = strings.TrimLeft(string(rest[idx+1+len(fence):]), "\n\r")
	return n
}

// FrontmatterErr reports a frontmatter block that could not be decoded.
// Such a note must not be rendered back, or its block would be demoted into
// the body.
func (n *Note) FrontmatterErr() error { return n.fmErr }

// Raw returns the bytes the note was parsed from.
func (n *Note) Raw() []byte { return n.raw }

// Render serialises the note back to Markdown.
func (n *Note) Render() ([]byte, error) {
	if n.fmErr != nil {
		return nil, n.fmErr
	}
	if len(n.Frontmatter) == 0 {
		return []byte(n.Body), nil
	}
	fm, err := yaml.Marshal(n.Frontmatter)
	if err != nil {
		return nil, fmt.Errorf("vault: encode frontmatter: %w", err)
	}
	var buf bytes.Buffer
	buf.WriteString(fence + "\n")
	buf.Write(fm)
	buf.WriteString(fence + "\n\n")
	buf.WriteString(n.Body)
	return buf.Bytes(), nil
}

// Title returns the frontmatter title, else the first H1, else the id.
func (n *Note) Title() string {
	if s, ok := n.Frontmatter["title"].(string); ok && s != "" {
		return s
	}
	for _, line := range strings.Split(n.Body, "\n") {
		if t, ok := strings.CutPrefix(strings.TrimSpace(line), "# "); ok {
			return strings.TrimSpace(t)
		}
	}
	return n.ID
}

// Tags returns the frontmatter tags list.
func (n *Note) Tags() []string {
	var out []string
	switch v := n.Frontmatter["tags"].(type) {
	case []any:
		for _, t := range v {
			if s, ok := t.(string); ok && strings.TrimSpace(s) != "" {
				out = append(out, strings.TrimSpace(s))
			}
		}
	case string:
		for _, s := range strings.Fields(strings.ReplaceAll(v, ",", " ")) {
			out = append(out, s)
		}
	}
	return out
}

// HasTag reports whether tag is present in the tags list.
func (n *Note) HasTag(tag string) bool {
	return slices.Contains(n.Tags(), tag)
}

// TaggedProperty returns the value stored in slot under tag.
func (n *Note) TaggedProperty(tag, slot string) (any, bool) {
	props, ok := n.Frontmatter[tag].(map[string]any)
	if !ok {
		return nil, false
	}
	v, ok := props[slot]
	return v, ok
}

// SetTaggedProperty stores value in slot under tag and ensures the note
// carries the tag.
func (n *Note) SetTaggedProperty(tag, slot string, value any) {
	props, ok := n.Frontmatter[tag].(map[string]any)
	if !ok {
		props = map[string]any{}
		n.Frontmatter[tag] = props
	}
	props[slot] = value
	if !n.HasTag(tag) {
		n.Frontmatter["tags"] = toAny(append(n.Tags(), tag))
	}
}

// RemoveTag drops tag from the tags list together with its properties.
func (n *Note) RemoveTag(tag string) {
	delete(n.Frontmatter, tag)
	tags := slices.DeleteFunc(n.Tags(), func(t string) bool { return t == tag })
	if len(tags) == 0 {
		delete(n.Frontmatter, "tags")
		return
	}
	n.Frontmatter["tags"] = toAny(tags)
}

func toAny(tags []string) []any {
	out := make([]any, len(tags))
	for i, t := range tags {
		out[i] = t
	}
	return out
}

// Snapshot returns a note parsed from the bytes n was last read or saved as.
func (n *Note) Snapshot() *Note {
	return Parse(n.ID, n.raw)
}
