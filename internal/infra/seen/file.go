package seen

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// FileStore persists slugs one per line in an append-only text file.
//
// Add writes and syncs the line before the slug becomes visible in memory, so a
// slug reported by Contains has always reached the file.
type FileStore struct {
	mu   sync.Mutex
	path string
	file *os.File
	set  map[string]struct{}

	sync func(*os.File) error
}

// Load opens the slug log at path, creating it (and its directory) when missing.
func Load(path string) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, &StoreError{Op: "mkdir", Path: path, Err: err}
	}

	set, needsNewline, err := readSlugs(path)
	if err != nil {
		return nil, &StoreError{Op: "load", Path: path, Err: err}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, &StoreError{Op: "open", Path: path, Err: err}
	}

	// A crash mid-append can leave a line without its newline.
	if needsNewline {
		if _, err := f.WriteString("\n"); err != nil {
			f.Close()
			return nil, &StoreError{Op: "repair", Path: path, Err: err}
		}
	}

	return &FileStore{path: path, file: f, set: set, sync: (*os.File).Sync}, nil
}

func readSlugs(path string) (map[string]struct{}, bool, error) {
	set := make(map[string]struct{})

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return set, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		slug := strings.TrimSuffix(sc.Text(), "\r")
		if slug == "" {
			continue
		}
		set[slug] = struct{}{}
	}
	if err := sc.Err(); err != nil {
		return nil, false, err
	}

	return set, len(data) > 0 && data[len(data)-1] != '\n', nil
}

func (s *FileStore) Contains(slug string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.set[slug]
	return ok
}

// Add records slug. It is a no-op when slug is already present.
func (s *FileStore) Add(slug string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !validSlug(slug) {
		return &StoreError{Op: "append", Path: s.path, Err: ErrInvalidSlug}
	}
	if _, ok := s.set[slug]; ok {
		return nil
	}
	if s.file == nil {
		return &StoreError{Op: "append", Path: s.path, Err: ErrClosed}
	}

	if err := s.appendLocked(slug); err != nil {
		return &StoreError{Op: "append", Path: s.path, Err: err}
	}
	s.set[slug] = struct{}{}
	return nil
}

// appendLocked writes one line and syncs it. On any failure the file is cut back
// to its previous length so a retry does not leave a duplicate or partial line.
func (s *FileStore) appendLocked(slug string) error {
	before, statErr := s.file.Seek(0, io.SeekEnd)

	_, err := s.file.WriteString(slug + "\n")
	if err == nil {
		err = s.sync(s.file)
	}
	if err != nil && statErr == nil {
		_ = s.file.Truncate(before)
	}
	return err
}

func (s *FileStore) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.set)
}

func (s *FileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}
