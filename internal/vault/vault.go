package vault

import (
	"context"
	"errors"
	"log/slog"

	"github.com/starford/incremental/internal/apperr"
)

// Vault exposes notes by id on top of an FS.
type Vault struct {
	fs     *FS
	logger *slog.Logger
}

// New wraps fs. A nil logger falls back to slog.Default().
func New(fs *FS, logger *slog.Logger) *Vault {
	if logger == nil {
		logger = slog.Default()
	}
	return &Vault{fs: fs, logger: logger}
}

// FS returns the underlying file system.
func (v *Vault) FS() *FS { return v.fs }

// FindNote loads the note with id. Missing notes yield apperr.ErrNotFound.
func (v *Vault) FindNote(_ context.Context, id string) (*Note, error) {
	data, err := v.fs.Read(id)
	if err != nil {
		return nil, err
	}
	return Parse(id, data), nil
}

// SaveNote renders and atomically writes the note.
func (v *Vault) SaveNote(_ context.Context, n *Note) error {
	data, err := n.Render()
	if err != nil {
		return err
	}
	if err := v.fs.Write(n.ID, data); err != nil {
		return err
	}
	n.raw = data
	return nil
}

// Restore writes back the bytes a note was originally parsed from.
func (v *Vault) Restore(_ context.Context, n *Note) error {
	return v.fs.Write(n.ID, n.raw)
}

// CreateNote writes a new note; an existing id is left untouched.
func (v *Vault) CreateNote(ctx context.Context, n *Note) (bool, error) {
	if v.fs.Exists(n.ID) {
		return false, nil
	}
	if err := v.SaveNote(ctx, n); err != nil {
		return false, err
	}
	return true, nil
}

// ListTagged returns every note carrying tag. Unreadable notes are skipped.
func (v *Vault) ListTagged(ctx context.Context, tag string) ([]*Note, error) {
	ids, err := v.fs.List("")
	if err != nil {
		return nil, err
	}
	var out []*Note
	for _, id := range ids {
		n, err := v.FindNote(ctx, id)
		if err != nil {
			if !errors.Is(err, apperr.ErrNotFound) {
				v.logger.Warn("vault: read failed", slog.String("id", id), slog.String("error", err.Error()))
			}
			continue
		}
		if n.HasTag(tag) {
			out = append(out, n)
		}
	}
	return out, nil
}
