// Package journal resolves instants to daily notes in the vault.
package journal

import (
	"context"
	"fmt"
	"path"
	"time"

	"github.com/starford/incremental/internal/vault"
)

const dayLayout = "2006-01-02"

// Journal maps instants to daily note references. Resolving a reference is
// pure; the note itself is created by EnsureDay once a schedule is committed.
type Journal struct {
	v   *vault.Vault
	dir string
	loc *time.Location
}

// New creates a Journal storing daily notes under dir. A nil loc means UTC.
func New(v *vault.Vault, dir string, loc *time.Location) *Journal {
	if loc == nil {
		loc = time.UTC
	}
	return &Journal{v: v, dir: dir, loc: loc}
}

// DayID returns the vault id of the daily note for t.
func (j *Journal) DayID(t time.Time) string {
	return path.Join(j.dir, t.In(j.loc).Format(dayLayout)+".md")
}

// DayRef returns the wikilink to the daily note for t without touching the
// vault.
func (j *Journal) DayRef(t time.Time) string {
	return "[[" + path.Join(j.dir, t.In(j.loc).Format(dayLayout)) + "]]"
}

// EnsureDay creates the daily note for t unless it already exists.
func (j *Journal) EnsureDay(ctx context.Context, t time.Time) error {
	day := t.In(j.loc).Format(dayLayout)
	_, err := j.v.CreateNote(ctx, &vault.Note{
		ID:          j.DayID(t),
		Frontmatter: map[string]any{"title": day},
		Body:        "# " + day + "\n",
	})
	if err != nil {
		return fmt.Errorf("journal: daily note %s: %w", day, err)
	}
	return nil
}
