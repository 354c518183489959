package credstore

import (
	"bufio"
	"bytes"
	"strings"
	"sync"

	"github.com/sfsm565826960/PostmanLite/internal/errdef"
)

// Store is the cookie-equivalent credential source: named strings with
// synchronous lookup. Lookups of missing names return the empty string.
type Store struct {
	mu     sync.RWMutex
	values map[string]string
}

func New() *Store {
	return &Store{values: make(map[string]string)}
}

func (s *Store) Get(name string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.values[name]
}

func (s *Store) Set(name, value string) {
	if name == "" {
		return
	}
	s.mu.Lock()
	s.values[name] = value
	s.mu.Unlock()
}

func (s *Store) Delete(name string) {
	s.mu.Lock()
	delete(s.values, name)
	s.mu.Unlock()
}

// LoadData merges name=value lines into the store. Blank lines and lines
// starting with # are skipped; values may be single- or double-quoted.
func (s *Store) LoadData(data []byte) error {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		name, value, ok := strings.Cut(text, "=")
		if !ok {
			return errdef.New(errdef.CodeAuth, "credential file line %d is not name=value", line)
		}
		name = strings.TrimSpace(name)
		if name == "" {
			return errdef.New(errdef.CodeAuth, "credential file line %d has an empty name", line)
		}
		s.Set(name, unquote(strings.TrimSpace(value)))
	}
	if err := scanner.Err(); err != nil {
		return errdef.Wrap(errdef.CodeAuth, err, "scan credential file")
	}
	return nil
}

func unquote(value string) string {
	if len(value) >= 2 {
		first := value[0]
		last := value[len(value)-1]
		if (first == '"' && last == '"') || (first == '\'' && last == '\'') {
			return value[1 : len(value)-1]
		}
	}
	return value
}
