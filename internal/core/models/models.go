package models

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Student repräsentiert einen eingeschriebenen Studenten mit biometrischer Vorlage
// und Anwesenheitsständen. Die ID wird bei der Einschreibung fortlaufend vergeben
// (beginnend bei 1) und danach nie geändert; deshalb kein Soft-Delete über gorm.Model.
type Student struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Name     string `gorm:"not null" json:"name"`
	Email    string `gorm:"uniqueIndex;not null" json:"email"`
	Password string `gorm:"not null" json:"-"` // opakes Credential, Hashing-Politik liegt beim Aufrufer

	Age     string `json:"age"`
	DOB     string `json:"dob"`
	Address string `json:"address"`
	Phone   string `json:"phone"`
	City    string `json:"city"`
	State   string `json:"state"`
	Country string `json:"country"`
	Pincode string `json:"pincode"`

	Course        string         `gorm:"index;not null" json:"course"`
	Classes       datatypes.JSON `gorm:"type:json" json:"classes"`    // Klassenname -> Anwesenheitszähler
	Embedding     datatypes.JSON `gorm:"type:json" json:"-"`          // biometrische Vorlage, wird bei der Einschreibung gesetzt
	ImageFilename string         `json:"image_filename"`              // abgeleitet aus der ID, z.B. "7.png"
}

// RecognitionEvent repräsentiert einen einzelnen Erkennungsversuch mit Ergebnis.
// Dient der Anzeige im UI (SSE), der Nachvollziehbarkeit und der Bereinigung.
type RecognitionEvent struct {
	gorm.Model
	Status       string    `gorm:"index" json:"status"` // matched, no_match, no_face, ambiguous
	StudentID    uint      `gorm:"index" json:"student_id,omitempty"`
	StudentName  string    `json:"student_name,omitempty"`
	Distance     float64   `json:"distance,omitempty"`
	FacesCount   int       `json:"faces_count"`
	SnapshotPath string    `json:"snapshot_path,omitempty"` // relativ zum Snapshot-Verzeichnis
	Timestamp    time.Time `gorm:"index" json:"timestamp"`
}

// FaceTemplate ist die Projektion eines Studenten auf das, was der Matcher braucht
type FaceTemplate struct {
	StudentID uint
	Name      string
	Embedding []float32
}

// ClassCounts dekodiert die Klassen-Zähler des Studenten
func (s *Student) ClassCounts() (map[string]int, error) {
	counts := make(map[string]int)
	if len(s.Classes) == 0 {
		return counts, nil
	}
	if err := json.Unmarshal(s.Classes, &counts); err != nil {
		return nil, fmt.Errorf("failed to decode class counts for student %d: %w", s.ID, err)
	}
	return counts, nil
}

// SetClassCounts kodiert die Klassen-Zähler des Studenten
func (s *Student) SetClassCounts(counts map[string]int) error {
	data, err := json.Marshal(counts)
	if err != nil {
		return fmt.Errorf("failed to encode class counts: %w", err)
	}
	s.Classes = datatypes.JSON(data)
	return nil
}

// EmbeddingVector dekodiert die gespeicherte biometrische Vorlage
func (s *Student) EmbeddingVector() ([]float32, error) {
	if len(s.Embedding) == 0 {
		return nil, fmt.Errorf("student %d has no stored embedding", s.ID)
	}
	var vec []float32
	if err := json.Unmarshal(s.Embedding, &vec); err != nil {
		return nil, fmt.Errorf("failed to decode embedding for student %d: %w", s.ID, err)
	}
	return vec, nil
}

// SetEmbeddingVector kodiert die biometrische Vorlage
func (s *Student) SetEmbeddingVector(vec []float32) error {
	data, err := json.Marshal(vec)
	if err != nil {
		return fmt.Errorf("failed to encode embedding: %w", err)
	}
	s.Embedding = datatypes.JSON(data)
	return nil
}
