package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"
)

var (
	// ErrAlreadyExists wird zurückgegeben, wenn die Datei bereits im Speicher liegt
	ErrAlreadyExists = errors.New("file already exists in photo store")

	// ErrUpload wird zurückgegeben, wenn das Schreiben der Datei fehlschlägt
	ErrUpload = errors.New("failed to store file")
)

// PhotoStore verwaltet die abgelegten Einschreibefotos und Erkennungsbilder
// unterhalb des Snapshot-Verzeichnisses
type PhotoStore struct {
	baseDir string
}

// NewPhotoStore erstellt einen neuen PhotoStore
func NewPhotoStore(baseDir string) (*PhotoStore, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create photo store directory: %w", err)
	}
	return &PhotoStore{baseDir: baseDir}, nil
}

// Exists prüft, ob eine Datei mit diesem Namen bereits abgelegt ist
func (s *PhotoStore) Exists(filename string) bool {
	_, err := os.Stat(filepath.Join(s.baseDir, filename))
	return err == nil
}

// Save legt eine neue Datei ab. Eine vorhandene Datei wird nie überschrieben.
func (s *PhotoStore) Save(filename string, data []byte) error {
	path := filepath.Join(s.baseDir, filename)

	if s.Exists(filename) {
		return ErrAlreadyExists
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("%w: %v", ErrUpload, err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("%w: %v", ErrUpload, err)
	}

	log.Debugf("Stored photo %s (%d bytes)", filename, len(data))
	return nil
}

// Overwrite legt eine Datei ab und ersetzt eine vorhandene Version.
// Wird für das fortlaufend aktualisierte Erkennungsbild verwendet.
func (s *PhotoStore) Overwrite(filename string, data []byte) error {
	path := filepath.Join(s.baseDir, filename)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("%w: %v", ErrUpload, err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("%w: %v", ErrUpload, err)
	}
	return nil
}

// Read liest eine abgelegte Datei
func (s *PhotoStore) Read(filename string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, filename))
	if err != nil {
		return nil, fmt.Errorf("failed to read photo %s: %w", filename, err)
	}
	return data, nil
}

// Path gibt den vollständigen Pfad einer abgelegten Datei zurück
func (s *PhotoStore) Path(filename string) string {
	return filepath.Join(s.baseDir, filename)
}
