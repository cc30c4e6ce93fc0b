package application

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Workspace holds the transient artifacts of one handler invocation. Every
// path handed out by Path is removed by Close, whether or not the file was
// ever written.
type Workspace struct {
	dir string

	mu        sync.Mutex
	artifacts []string
	closed    bool
}

// OpenWorkspace creates a private directory for one invocation under root.
func OpenWorkspace(root, id string) (*Workspace, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("creating work dir: %w", err)
	}
	dir, err := os.MkdirTemp(root, "relay-"+SafeName(id)+"-")
	if err != nil {
		return nil, fmt.Errorf("creating workspace: %w", err)
	}
	return &Workspace{dir: dir}, nil
}

func (w *Workspace) Dir() string {
	return w.dir
}

// Path registers an artifact and returns where it lives.
func (w *Workspace) Path(name string) string {
	path := filepath.Join(w.dir, SafeName(name))

	w.mu.Lock()
	defer w.mu.Unlock()
	w.artifacts = append(w.artifacts, path)
	return path
}

// Artifacts lists the registered artifacts that currently exist on disk.
func (w *Workspace) Artifacts() []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	var existing []string
	for _, path := range w.artifacts {
		if _, err := os.Stat(path); err == nil {
			existing = append(existing, path)
		}
	}
	return existing
}

// Close removes every artifact and the workspace directory. It is safe to
// call more than once.
func (w *Workspace) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true

	var errs []error
	for _, path := range w.artifacts {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, fmt.Errorf("removing %s: %w", filepath.Base(path), err))
		}
	}
	if err := os.RemoveAll(w.dir); err != nil {
		errs = append(errs, fmt.Errorf("removing workspace: %w", err))
	}
	return errors.Join(errs...)
}

// SafeName maps platform identifiers onto file-name friendly strings.
func SafeName(s string) string {
	s = filepath.Base(s)
	if s == "." || s == ".." || s == string(filepath.Separator) {
		return "_"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-', r == '_', r == '.':
			return r
		default:
			return '_'
		}
	}, s)
}
