package recognition

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// ResultStore hält Erkennungsergebnisse sitzungsgebunden unter einem Token,
// bis der Benutzer die Zielklasse auswählt. Ersetzt den impliziten
// Prozess-globalen Zustand der ursprünglichen Architektur durch einen
// expliziten, kurzlebigen Schlüssel pro Versuch.
type ResultStore struct {
	mu      sync.Mutex
	entries map[string]storedResult
	ttl     time.Duration
	now     func() time.Time
}

type storedResult struct {
	result    *Result
	expiresAt time.Time
}

// NewResultStore erstellt einen neuen ResultStore mit der angegebenen Lebensdauer
func NewResultStore(ttl time.Duration) *ResultStore {
	return &ResultStore{
		entries: make(map[string]storedResult),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Put legt ein Ergebnis ab und gibt das zugehörige Token zurück
func (s *ResultStore) Put(result *Result) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pruneLocked()

	token := uuid.NewString()
	s.entries[token] = storedResult{
		result:    result,
		expiresAt: s.now().Add(s.ttl),
	}
	return token
}

// Get liefert das Ergebnis zu einem Token, falls es noch nicht abgelaufen ist
func (s *ResultStore) Get(token string) (*Result, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[token]
	if !ok {
		return nil, false
	}
	if s.now().After(entry.expiresAt) {
		delete(s.entries, token)
		return nil, false
	}
	return entry.result, true
}

// Delete verwirft ein Ergebnis nach der Verbuchung
func (s *ResultStore) Delete(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, token)
}

// pruneLocked entfernt abgelaufene Einträge; der Aufrufer muss den Mutex halten
func (s *ResultStore) pruneLocked() {
	now := s.now()
	for token, entry := range s.entries {
		if now.After(entry.expiresAt) {
			delete(s.entries, token)
		}
	}
}
