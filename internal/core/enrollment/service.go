package enrollment

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"unicode"

	"face-attendance-go/internal/core/models"
	"face-attendance-go/internal/db/repository"
	"face-attendance-go/internal/integrations/facerec"
	"face-attendance-go/internal/storage"

	log "github.com/sirupsen/logrus"
)

var (
	// ErrAlreadyEnrolled: für die abgeleitete ID liegt bereits ein Foto im Speicher
	ErrAlreadyEnrolled = errors.New("student already enrolled")

	// ErrInvalidIdentifier: der Dateiname ist nicht rein numerisch
	ErrInvalidIdentifier = errors.New("photo filename must be a number")

	// ErrDuplicateEmail: die E-Mail-Adresse ist bereits vergeben
	ErrDuplicateEmail = errors.New("email already registered")

	// ErrUnknownCourse: der Studiengang ist nicht im Katalog
	ErrUnknownCourse = errors.New("unknown course")

	// ErrNoFaceDetected: im Einschreibefoto wurde kein Gesicht gefunden
	ErrNoFaceDetected = errors.New("no face detected in enrollment photo")
)

// FrameSource liefert Frames von der Kameraquelle
type FrameSource interface {
	NextFrame(ctx context.Context) ([]byte, error)
}

// Input enthält die Formulardaten einer Einschreibung
type Input struct {
	Filename string `json:"filename" binding:"required"`
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	Course   string `json:"course" binding:"required"`
	Age      string `json:"age"`
	DOB      string `json:"dob"`
	Address  string `json:"address"`
	Phone    string `json:"phone"`
	City     string `json:"city"`
	State    string `json:"state"`
	Country  string `json:"country"`
	Pincode  string `json:"pincode"`
}

// Service orchestriert die Einschreibung:
// Capture -> Validate -> Embed -> Persist.
// Jeder Fehler beendet den Versuch; der Aufrufer startet bei Capture neu.
type Service struct {
	frames   FrameSource
	provider facerec.Provider
	repo     *repository.StudentRepository
	photos   *storage.PhotoStore
	embedDim int
}

// NewService erstellt einen neuen Einschreibedienst
func NewService(frames FrameSource, provider facerec.Provider, repo *repository.StudentRepository, photos *storage.PhotoStore, embedDim int) *Service {
	return &Service{
		frames:   frames,
		provider: provider,
		repo:     repo,
		photos:   photos,
		embedDim: embedDim,
	}
}

// Capture zieht einen Frame von der Kamera, leitet die nächste fortlaufende
// Studenten-ID aus dem aktuellen Bestand ab und legt das Foto unter
// "<id>.png" ab. Gibt den Dateinamen für den anschließenden Enroll-Schritt zurück.
func (s *Service) Capture(ctx context.Context) (string, error) {
	count, err := s.repo.Count()
	if err != nil {
		return "", err
	}
	nextID := uint(count) + 1
	filename := fmt.Sprintf("%d.png", nextID)

	if err := validateFilename(filename); err != nil {
		return "", err
	}
	if s.photos.Exists(filename) {
		return "", fmt.Errorf("%w: %s", ErrAlreadyEnrolled, filename)
	}

	frame, err := s.frames.NextFrame(ctx)
	if err != nil {
		return "", fmt.Errorf("capture failed: %w", err)
	}

	if err := s.photos.Save(filename, frame); err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			return "", fmt.Errorf("%w: %s", ErrAlreadyEnrolled, filename)
		}
		return "", err
	}

	log.Infof("Captured enrollment photo %s", filename)
	return filename, nil
}

// Enroll validiert die Formulardaten, extrahiert das Embedding aus dem zuvor
// aufgenommenen Foto und legt den Studenten als einen einzigen logischen
// Schreibvorgang an.
func (s *Service) Enroll(ctx context.Context, input Input) (*models.Student, error) {
	// Validate
	if err := validateFilename(input.Filename); err != nil {
		return nil, err
	}

	exists, err := s.repo.EmailExists(input.Email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrDuplicateEmail
	}

	counts, ok := models.InitialClassCounts(input.Course)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCourse, input.Course)
	}

	// Embed
	photo, err := s.photos.Read(input.Filename)
	if err != nil {
		return nil, err
	}

	embedding, err := s.embedFirstFace(ctx, photo)
	if err != nil {
		return nil, err
	}

	// Persist
	count, err := s.repo.Count()
	if err != nil {
		return nil, err
	}

	student := &models.Student{
		ID:            uint(count) + 1,
		Name:          input.Name,
		Email:         input.Email,
		Password:      input.Password,
		Age:           input.Age,
		DOB:           input.DOB,
		Address:       input.Address,
		Phone:         input.Phone,
		City:          input.City,
		State:         input.State,
		Country:       input.Country,
		Pincode:       input.Pincode,
		Course:        input.Course,
		ImageFilename: input.Filename,
	}
	if err := student.SetClassCounts(counts); err != nil {
		return nil, err
	}
	if err := student.SetEmbeddingVector(embedding); err != nil {
		return nil, err
	}

	if err := s.repo.Create(student); err != nil {
		return nil, err
	}

	log.Infof("Enrolled student %d (%s), course %s", student.ID, student.Name, student.Course)
	return student, nil
}

// embedFirstFace extrahiert das Embedding des ersten erkannten Gesichts
// (First-Box-Politik wie im Erkennungspfad)
func (s *Service) embedFirstFace(ctx context.Context, photo []byte) ([]float32, error) {
	boxes, err := s.provider.DetectFaces(ctx, photo)
	if err != nil {
		return nil, fmt.Errorf("face detection failed: %w", err)
	}
	if len(boxes) == 0 {
		return nil, ErrNoFaceDetected
	}

	aligned, err := s.provider.AlignFace(ctx, photo, boxes[0])
	if err != nil {
		if errors.Is(err, facerec.ErrNoFaceExtractable) {
			return nil, ErrNoFaceDetected
		}
		return nil, fmt.Errorf("face alignment failed: %w", err)
	}

	embedding, err := s.provider.ExtractEmbedding(ctx, aligned)
	if err != nil {
		if errors.Is(err, facerec.ErrNoFaceExtractable) {
			return nil, ErrNoFaceDetected
		}
		return nil, fmt.Errorf("embedding extraction failed: %w", err)
	}

	if s.embedDim > 0 && len(embedding) != s.embedDim {
		return nil, fmt.Errorf("unexpected embedding dimension: got %d, want %d", len(embedding), s.embedDim)
	}
	return embedding, nil
}

// validateFilename stellt sicher, dass der Namensstamm des Fotos rein numerisch
// ist (Invariante: Dateiname ist an die Studenten-ID gebunden)
func validateFilename(filename string) error {
	stem := strings.TrimSuffix(filename, filepath.Ext(filename))
	if stem == "" {
		return ErrInvalidIdentifier
	}
	for _, r := range stem {
		if !unicode.IsDigit(r) {
			return fmt.Errorf("%w: %s", ErrInvalidIdentifier, filename)
		}
	}
	return nil
}
