// Package steering persists steering notes: one markdown file per
// successful pipeline run, YAML front matter over an executive-summary
// body. Notes live in a flat directory and are addressed by slug.
package steering

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Note is one steering artifact. Slug is derived from the title on write
// and from the filename on read; it is not part of the front matter.
type Note struct {
	Title     string    `yaml:"title"`
	Session   string    `yaml:"session,omitempty"`
	Generated time.Time `yaml:"generated"`
	Stages    []string  `yaml:"stages,omitempty"`
	Degraded  []string  `yaml:"degraded,omitempty"`

	Slug string `yaml:"-"`
	Body string `yaml:"-"`
}

// Store reads and writes steering notes under a single directory.
type Store struct {
	dir    string
	logger *zap.Logger
}

// NewStore creates a store rooted at dir, expanding a leading tilde and
// creating the directory if needed. A nil logger defaults to a no-op
// logger.
func NewStore(dir string, logger *zap.Logger) (*Store, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("steering dir is required")
	}
	expanded, err := expandHome(dir)
	if err != nil {
		return nil, fmt.Errorf("expanding steering dir: %w", err)
	}
	if err := os.MkdirAll(expanded, 0o700); err != nil {
		return nil, fmt.Errorf("creating steering dir: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{dir: expanded, logger: logger}, nil
}

// Dir returns the resolved notes directory.
func (s *Store) Dir() string {
	return s.dir
}

// Write persists a note as <slug>.md and returns the slug. A title that
// maps to an existing slug replaces that note. A zero Generated time is
// stamped with the current time.
func (s *Store) Write(note *Note) (string, error) {
	if note == nil {
		return "", fmt.Errorf("note is required")
	}
	if strings.TrimSpace(note.Title) == "" {
		return "", fmt.Errorf("note title is required")
	}
	if note.Generated.IsZero() {
		note.Generated = time.Now().UTC()
	}
	note.Slug = Slug(note.Title)

	content, err := renderNote(note)
	if err != nil {
		return "", err
	}

	path := filepath.Join(s.dir, note.Slug+".md")
	if err := os.WriteFile(path, content, 0o600); err != nil {
		return "", fmt.Errorf("writing steering note: %w", err)
	}

	s.logger.Debug("steering note written",
		zap.String("slug", note.Slug),
		zap.String("path", path))
	return note.Slug, nil
}

// List returns all parseable notes in the directory, newest first.
// Files that are not markdown or fail to parse are skipped.
func (s *Store) List() ([]Note, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("reading steering dir: %w", err)
	}

	notes := make([]Note, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".md" {
			continue
		}
		slug := strings.TrimSuffix(entry.Name(), ".md")
		note, err := s.readFile(slug)
		if err != nil {
			s.logger.Warn("skipping unparseable steering note",
				zap.String("file", entry.Name()),
				zap.Error(err))
			continue
		}
		notes = append(notes, *note)
	}

	sort.Slice(notes, func(i, j int) bool {
		if !notes[i].Generated.Equal(notes[j].Generated) {
			return notes[i].Generated.After(notes[j].Generated)
		}
		return notes[i].Slug < notes[j].Slug
	})
	return notes, nil
}

// Read loads a single note by slug. The slug must be a plain filename
// component; traversal attempts are rejected.
func (s *Store) Read(slug string) (*Note, error) {
	if !validSlug(slug) {
		return nil, fmt.Errorf("invalid steering slug %q", slug)
	}
	return s.readFile(slug)
}

func (s *Store) readFile(slug string) (*Note, error) {
	path := filepath.Join(s.dir, slug+".md")
	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("steering note %q not found: %w", slug, err)
		}
		return nil, fmt.Errorf("reading steering note %q: %w", slug, err)
	}

	note, err := parseNote(content)
	if err != nil {
		return nil, fmt.Errorf("parsing steering note %q: %w", slug, err)
	}
	note.Slug = slug
	return note, nil
}

// renderNote serializes front matter and body into file content.
func renderNote(note *Note) ([]byte, error) {
	fm, err := yaml.Marshal(note)
	if err != nil {
		return nil, fmt.Errorf("marshaling front matter: %w", err)
	}

	var b strings.Builder
	b.WriteString("---\n")
	b.Write(fm)
	b.WriteString("---\n")
	if body := strings.TrimSpace(note.Body); body != "" {
		b.WriteString("\n")
		b.WriteString(body)
		b.WriteString("\n")
	}
	return []byte(b.String()), nil
}

// parseNote splits file content into front matter and body.
func parseNote(content []byte) (*Note, error) {
	text := string(content)
	if !strings.HasPrefix(text, "---\n") {
		return nil, fmt.Errorf("missing front matter")
	}
	rest := text[len("---\n"):]

	var fmText, body string
	if idx := strings.Index(rest, "\n---\n"); idx >= 0 {
		fmText = rest[:idx+1]
		body = rest[idx+len("\n---\n"):]
	} else if trimmed, ok := strings.CutSuffix(rest, "\n---"); ok {
		fmText = trimmed
	} else {
		return nil, fmt.Errorf("unterminated front matter")
	}

	var note Note
	if err := yaml.Unmarshal([]byte(fmText), &note); err != nil {
		return nil, fmt.Errorf("invalid front matter: %w", err)
	}
	if strings.TrimSpace(note.Title) == "" {
		return nil, fmt.Errorf("front matter missing title")
	}
	note.Body = strings.TrimSpace(body)
	return &note, nil
}

// expandHome resolves a leading tilde against the user home directory.
func expandHome(path string) (string, error) {
	if !strings.HasPrefix(path, "~") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, path[1:]), nil
}
