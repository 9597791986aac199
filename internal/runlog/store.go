package runlog

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/forgemirror/internal/mirror"
)

var (
	ErrInvalidName = errors.New("runlog: invalid run name")
	ErrNotFound    = errors.New("runlog: run not found")
)

const (
	// DefaultDir is the run log location relative to the working dir.
	DefaultDir = ".forgemirror/runs"
	ext        = ".toml"
	nameLayout = "20060102T150405.000000000Z"
)

// Store persists run summaries as one TOML file per run, scoped to root.
type Store struct {
	root string
}

// NewStore constructs a store rooted at root.
func NewStore(root string) Store {
	resolved := strings.TrimSpace(root)
	if resolved == "" {
		resolved = DefaultDir
	}
	return Store{root: resolved}
}

// Root returns the configured root directory.
func (s Store) Root() string {
	return s.root
}

// Write encodes summary and returns the name of the created run file.
func (s Store) Write(summary *mirror.Summary) (string, error) {
	if summary == nil {
		return "", fmt.Errorf("runlog: nil summary")
	}
	rec := FromSummary(summary)
	name := rec.Finished.UTC().Format(nameLayout) + ext

	p, err := s.resolvePath(name)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(rec); err != nil {
		return "", fmt.Errorf("runlog: encode: %w", err)
	}
	if err := os.WriteFile(p, buf.Bytes(), 0o644); err != nil {
		return "", err
	}
	return name, nil
}

// List returns stored run names, oldest first. A missing root is empty.
func (s Store) List() ([]string, error) {
	root, err := filepath.Abs(s.root)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(root)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ext {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

// Load decodes one run file. The extension may be omitted.
func (s Store) Load(name string) (*Record, error) {
	name = strings.TrimSpace(name)
	if name != "" && filepath.Ext(name) != ext {
		name += ext
	}
	p, err := s.resolvePath(name)
	if err != nil {
		return nil, err
	}
	var rec Record
	if _, err := toml.DecodeFile(p, &rec); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, fmt.Errorf("runlog: decode %s: %w", name, err)
	}
	return &rec, nil
}

// Latest loads the most recent run, or returns ErrNotFound.
func (s Store) Latest() (*Record, error) {
	names, err := s.List()
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return nil, ErrNotFound
	}
	return s.Load(names[len(names)-1])
}

func (s Store) resolvePath(name string) (string, error) {
	rel := strings.TrimSpace(name)
	if rel == "" || rel == ext {
		return "", fmt.Errorf("%w: missing name", ErrInvalidName)
	}
	if filepath.IsAbs(rel) || strings.ContainsAny(rel, `/\`) {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	root, err := filepath.Abs(s.root)
	if err != nil {
		return "", err
	}
	p := filepath.Clean(filepath.Join(root, rel))
	if !isWithin(p, root) || p == root {
		return "", fmt.Errorf("%w: %q escapes root", ErrInvalidName, name)
	}
	return p, nil
}

func isWithin(path string, root string) bool {
	p := filepath.Clean(path)
	r := filepath.Clean(root)
	if p == r {
		return true
	}
	return strings.HasPrefix(p, r+string(os.PathSeparator))
}
