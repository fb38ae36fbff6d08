package automation

import (
	"bytes"
	"cmp"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"sync"
)

const (
	scriptExt    = ".lua"
	headerPrefix = "-- zcl: "
	maxSlugLen   = 40
)

var (
	ErrInvalidID      = errors.New("automation: invalid script id")
	ErrScriptNotFound = errors.New("automation: script not found")
)

// Manager keeps scripts as <id>.lua files in one directory. The first line
// of a file is a Lua comment carrying the JSON encoded ScriptMeta.
type Manager struct {
	dir string
	mu  sync.RWMutex
}

func NewManager(dir string) (*Manager, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create scripts dir: %w", err)
	}
	return &Manager{dir: dir}, nil
}

func (m *Manager) Dir() string { return m.dir }

// path maps id to its file, rejecting ids that could leave the directory.
func (m *Manager) path(id string) (string, error) {
	if id == "" || strings.ContainsAny(id, `/\`) || strings.Contains(id, "..") || id == "." {
		return "", fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return filepath.Join(m.dir, id+scriptExt), nil
}

// List returns the scripts ordered by ID. Files that fail to parse are
// skipped.
func (m *Manager) List() ([]*Script, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	paths, err := filepath.Glob(filepath.Join(m.dir, "*"+scriptExt))
	if err != nil {
		return nil, fmt.Errorf("list scripts: %w", err)
	}
	scripts := make([]*Script, 0, len(paths))
	for _, p := range paths {
		if s, err := readScript(p); err == nil {
			scripts = append(scripts, s)
		}
	}
	slices.SortFunc(scripts, func(a, b *Script) int { return cmp.Compare(a.ID, b.ID) })
	return scripts, nil
}

func (m *Manager) Get(id string) (*Script, error) {
	p, err := m.path(id)
	if err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return readScript(p)
}

// Save writes s. A script without an ID gets one derived from its name,
// suffixed with a counter when taken.
func (m *Manager) Save(s *Script) (*Script, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s.ID == "" {
		s.ID = m.freeID(slugify(s.Meta.Name))
	}
	p, err := m.path(s.ID)
	if err != nil {
		return nil, err
	}
	s.Path = p
	if err := os.WriteFile(p, encodeScript(s), 0o644); err != nil {
		return nil, fmt.Errorf("write script %s: %w", s.ID, err)
	}
	return s, nil
}

func (m *Manager) freeID(base string) string {
	if base == "" {
		base = "script"
	}
	id := base
	for n := 1; ; n++ {
		if _, err := os.Stat(filepath.Join(m.dir, id+scriptExt)); errors.Is(err, os.ErrNotExist) {
			return id
		}
		id = base + "_" + strconv.Itoa(n)
	}
}

func (m *Manager) Delete(id string) error {
	p, err := m.path(id)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	err = os.Remove(p)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return fmt.Errorf("%w: %s", ErrScriptNotFound, id)
	case err != nil:
		return fmt.Errorf("delete script %s: %w", id, err)
	}
	return nil
}

func readScript(path string) (*Script, error) {
	id := strings.TrimSuffix(filepath.Base(path), scriptExt)
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrScriptNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("read script %s: %w", id, err)
	}

	s := &Script{ID: id, Path: path}
	if rest, found := bytes.CutPrefix(data, []byte(headerPrefix)); found {
		meta, body, _ := bytes.Cut(rest, []byte("\n"))
		if err := json.Unmarshal(meta, &s.Meta); err != nil {
			return nil, fmt.Errorf("parse header of %s: %w", id, err)
		}
		data = body
	}
	s.Code = strings.TrimLeft(string(data), "\n")
	if s.Meta.Name == "" {
		s.Meta.Name = id
	}
	return s, nil
}

func encodeScript(s *Script) []byte {
	var buf bytes.Buffer
	meta, _ := json.Marshal(s.Meta)
	buf.WriteString(headerPrefix)
	buf.Write(meta)
	buf.WriteByte('\n')
	buf.WriteString(s.Code)
	if s.Code != "" && !strings.HasSuffix(s.Code, "\n") {
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

func slugify(name string) string {
	slug := strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(name), "_"), "_")
	if len(slug) > maxSlugLen {
		slug = slug[:maxSlugLen]
	}
	return slug
}
