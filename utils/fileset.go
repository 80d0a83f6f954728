package utils

import "sync"

// FileSet tracks file names that have already been seen in a staging
// directory, so a new download can be told apart from earlier ones.
type FileSet struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

// NewFileSet creates an empty FileSet.
func NewFileSet() *FileSet {
	return &FileSet{seen: make(map[string]struct{})}
}

// Add returns true if the name was newly added, false if already present.
func (s *FileSet) Add(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.seen[name]; exists {
		return false
	}
	s.seen[name] = struct{}{}
	return true
}
