package snapshot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"

	"simpletalk/internal/talk"
)

const storeLogPrefix = "snapshot:store"

// ErrNotFound is returned when no snapshot exists under a name.
var ErrNotFound = errors.New("snapshot not found")

var validName = regexp.MustCompile(`^[A-Za-z0-9_][A-Za-z0-9_.-]*$`)

// Store persists encoded snapshots by name.
type Store interface {
	Save(ctx context.Context, name string, data []byte) error
	Load(ctx context.Context, name string) ([]byte, error)
}

func checkName(name string) error {
	if !validName.MatchString(name) {
		return fmt.Errorf("%s - invalid snapshot name %q", storeLogPrefix, name)
	}
	return nil
}

// FileStore keeps each snapshot in <dir>/<name>.stk.
type FileStore struct {
	dir string
}

func NewFileStore(dir string) *FileStore { return &FileStore{dir: dir} }

func (f *FileStore) path(name string) string {
	return filepath.Join(f.dir, name+".stk")
}

func (f *FileStore) Save(_ context.Context, name string, data []byte) error {
	if err := checkName(name); err != nil {
		return err
	}
	if err := os.MkdirAll(f.dir, 0o755); err != nil {
		return fmt.Errorf("%s - create %s: %w", storeLogPrefix, f.dir, err)
	}
	tmp, err := os.CreateTemp(f.dir, name+".*.tmp")
	if err != nil {
		return fmt.Errorf("%s - %w", storeLogPrefix, err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("%s - write %s: %w", storeLogPrefix, name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("%s - %w", storeLogPrefix, err)
	}
	if err := os.Rename(tmp.Name(), f.path(name)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("%s - %w", storeLogPrefix, err)
	}
	return nil
}

func (f *FileStore) Load(_ context.Context, name string) ([]byte, error) {
	if err := checkName(name); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(f.path(name))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%s - %q: %w", storeLogPrefix, name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s - read %s: %w", storeLogPrefix, name, err)
	}
	return data, nil
}

// Saver adapts a Store to the engine's save command.
type Saver struct {
	Store  Store
	Logger *slog.Logger
}

func (s *Saver) SaveWorld(ctx context.Context, name string, sys *talk.System) error {
	w, err := Capture(sys)
	if err != nil {
		return err
	}
	data, err := Encode(w)
	if err != nil {
		return err
	}
	if err := s.Store.Save(ctx, name, data); err != nil {
		return err
	}
	if s.Logger != nil {
		s.Logger.Info(fmt.Sprintf("%s - saved %q (%d parts, %d bytes)", storeLogPrefix, name, len(w.Parts), len(data)))
	}
	return nil
}

// Load reads the named snapshot from store and restores it into sys.
func Load(ctx context.Context, store Store, name string, sys *talk.System) error {
	data, err := store.Load(ctx, name)
	if err != nil {
		return err
	}
	w, err := Decode(data)
	if err != nil {
		return err
	}
	return Restore(ctx, sys, w)
}
