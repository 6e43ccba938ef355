package repository

import (
	"errors"
	"fmt"

	"face-attendance-go/internal/core/models"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

var (
	// ErrNotFound wird zurückgegeben, wenn kein Student mit der angefragten ID existiert
	ErrNotFound = errors.New("student not found")

	// ErrAlreadyExists wird zurückgegeben, wenn die ID bereits vergeben ist
	ErrAlreadyExists = errors.New("student id already exists")

	// ErrClassNotAssigned wird zurückgegeben, wenn die Klasse nicht zum Studenten gehört
	ErrClassNotAssigned = errors.New("class not assigned to student")
)

// StudentRepository kapselt alle Datenbankzugriffe auf Studenten
type StudentRepository struct {
	db *gorm.DB
}

// NewStudentRepository erstellt ein neues StudentRepository
func NewStudentRepository(db *gorm.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// Count gibt die Anzahl der eingeschriebenen Studenten zurück
func (r *StudentRepository) Count() (int64, error) {
	var count int64
	if err := r.db.Model(&models.Student{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count students: %w", err)
	}
	return count, nil
}

// GetByID lädt einen Studenten über seine ID
func (r *StudentRepository) GetByID(id uint) (*models.Student, error) {
	var student models.Student
	if err := r.db.First(&student, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load student %d: %w", id, err)
	}
	return &student, nil
}

// GetByEmail lädt einen Studenten über seine E-Mail-Adresse
func (r *StudentRepository) GetByEmail(email string) (*models.Student, error) {
	var student models.Student
	if err := r.db.Where("email = ?", email).First(&student).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load student by email: %w", err)
	}
	return &student, nil
}

// EmailExists prüft, ob bereits ein Student mit dieser E-Mail-Adresse existiert
func (r *StudentRepository) EmailExists(email string) (bool, error) {
	var count int64
	if err := r.db.Model(&models.Student{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check email: %w", err)
	}
	return count > 0, nil
}

// Create legt einen neuen Studenten an. Die ID muss vom Aufrufer gesetzt sein
// (fortlaufende Vergabe durch den EnrollmentService).
func (r *StudentRepository) Create(student *models.Student) error {
	var existing models.Student
	if err := r.db.First(&existing, student.ID).Error; err == nil {
		return ErrAlreadyExists
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("failed to check existing student: %w", err)
	}

	if err := r.db.Create(student).Error; err != nil {
		return fmt.Errorf("failed to create student: %w", err)
	}

	log.Infof("Created student record ID: %d (%s)", student.ID, student.Name)
	return nil
}

// List gibt alle Studenten geordnet nach ID zurück
func (r *StudentRepository) List() ([]models.Student, error) {
	var students []models.Student
	if err := r.db.Order("id ASC").Find(&students).Error; err != nil {
		return nil, fmt.Errorf("failed to list students: %w", err)
	}
	return students, nil
}

// EnrolledTemplates lädt die biometrischen Vorlagen aller Studenten für den Matcher.
// Wird bei jedem Erkennungsversuch frisch geladen, damit neue Einschreibungen
// sofort sichtbar sind.
func (r *StudentRepository) EnrolledTemplates() ([]models.FaceTemplate, error) {
	students, err := r.List()
	if err != nil {
		return nil, err
	}

	templates := make([]models.FaceTemplate, 0, len(students))
	for i := range students {
		vec, err := students[i].EmbeddingVector()
		if err != nil {
			// Ein defekter Eintrag darf nicht die gesamte Erkennung blockieren
			log.Warnf("Skipping student %d: %v", students[i].ID, err)
			continue
		}
		templates = append(templates, models.FaceTemplate{
			StudentID: students[i].ID,
			Name:      students[i].Name,
			Embedding: vec,
		})
	}
	return templates, nil
}

// IncrementClass erhöht den Anwesenheitszähler einer Klasse um genau 1.
// Lesen, Erhöhen und Schreiben laufen in einer Transaktion, damit parallele
// Erkennungen desselben Studenten keine Updates verlieren.
func (r *StudentRepository) IncrementClass(id uint, class string) (int, error) {
	var newCount int
	err := r.db.Transaction(func(tx *gorm.DB) error {
		var student models.Student
		if err := tx.First(&student, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("failed to load student %d: %w", id, err)
		}

		counts, err := student.ClassCounts()
		if err != nil {
			return err
		}

		if _, ok := counts[class]; !ok {
			return ErrClassNotAssigned
		}

		counts[class]++
		newCount = counts[class]

		if err := student.SetClassCounts(counts); err != nil {
			return err
		}

		if err := tx.Model(&student).Update("classes", student.Classes).Error; err != nil {
			return fmt.Errorf("failed to persist attendance count: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return newCount, nil
}

// CreateRecognitionEvent speichert das Ergebnis eines Erkennungsversuchs
func (r *StudentRepository) CreateRecognitionEvent(event *models.RecognitionEvent) error {
	if err := r.db.Create(event).Error; err != nil {
		return fmt.Errorf("failed to create recognition event: %w", err)
	}
	return nil
}
