package memory

import (
	"context"
	"sync"

	ports "propel/internal/sheets"
)

// Source is an in-memory SessionSource.
type Source struct {
	mu   sync.Mutex
	rows []ports.SheetSession
	err  error
}

var _ ports.SessionSource = (*Source)(nil)

func New(rows ...ports.SheetSession) *Source {
	return &Source{rows: append([]ports.SheetSession(nil), rows...)}
}

// Add appends rows as if a tutor had logged them.
func (s *Source) Add(rows ...ports.SheetSession) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = append(s.rows, rows...)
}

// FailWith makes subsequent reads return err.
func (s *Source) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *Source) ReadSessions(_ context.Context) ([]ports.SheetSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return append([]ports.SheetSession(nil), s.rows...), nil
}
