package repository

import (
	"errors"
	"testing"

	"face-attendance-go/internal/core/models"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newTestRepository(t *testing.T) *StudentRepository {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open in-memory database: %v", err)
	}
	if err := db.AutoMigrate(&models.Student{}, &models.RecognitionEvent{}); err != nil {
		t.Fatalf("failed to migrate schema: %v", err)
	}
	return NewStudentRepository(db)
}

func newStudent(t *testing.T, id uint, email, course string) *models.Student {
	t.Helper()

	student := &models.Student{
		ID:       id,
		Name:     "Student",
		Email:    email,
		Password: "secret",
		Course:   course,
	}
	counts, ok := models.InitialClassCounts(course)
	if !ok {
		t.Fatalf("unknown course %q", course)
	}
	if err := student.SetClassCounts(counts); err != nil {
		t.Fatalf("failed to set class counts: %v", err)
	}
	if err := student.SetEmbeddingVector([]float32{1, 0, 0}); err != nil {
		t.Fatalf("failed to set embedding: %v", err)
	}
	return student
}

func TestCountAndCreate(t *testing.T) {
	repo := newTestRepository(t)

	count, err := repo.Count()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 0 {
		t.Errorf("expected empty repository, got %d students", count)
	}

	if err := repo.Create(newStudent(t, 1, "a@example.com", "B.Tech")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	count, err = repo.Count()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 student, got %d", count)
	}
}

func TestCreateRejectsTakenID(t *testing.T) {
	repo := newTestRepository(t)

	if err := repo.Create(newStudent(t, 1, "a@example.com", "B.Tech")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	err := repo.Create(newStudent(t, 1, "b@example.com", "BBA"))
	if !errors.Is(err, ErrAlreadyExists) {
		t.Errorf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestGetByIDNotFound(t *testing.T) {
	repo := newTestRepository(t)

	if _, err := repo.GetByID(42); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestGetByEmail(t *testing.T) {
	repo := newTestRepository(t)

	if err := repo.Create(newStudent(t, 1, "a@example.com", "B.Tech")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	student, err := repo.GetByEmail("a@example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if student.ID != 1 {
		t.Errorf("expected student 1, got %d", student.ID)
	}

	if _, err := repo.GetByEmail("missing@example.com"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestEnrolledTemplates(t *testing.T) {
	repo := newTestRepository(t)

	if err := repo.Create(newStudent(t, 1, "a@example.com", "B.Tech")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := repo.Create(newStudent(t, 2, "b@example.com", "MBA")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	templates, err := repo.EnrolledTemplates()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(templates) != 2 {
		t.Fatalf("expected 2 templates, got %d", len(templates))
	}
	if templates[0].StudentID != 1 || templates[1].StudentID != 2 {
		t.Errorf("expected templates ordered by ID, got %d, %d", templates[0].StudentID, templates[1].StudentID)
	}
	if len(templates[0].Embedding) != 3 {
		t.Errorf("expected embedding of length 3, got %d", len(templates[0].Embedding))
	}
}

func TestIncrementClass(t *testing.T) {
	repo := newTestRepository(t)

	if err := repo.Create(newStudent(t, 1, "a@example.com", "B.Tech")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	count, err := repo.IncrementClass(1, "data structures")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 1 {
		t.Errorf("expected count 1 after first increment, got %d", count)
	}

	count, err = repo.IncrementClass(1, "data structures")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 2 {
		t.Errorf("expected count 2 after second increment, got %d", count)
	}

	// Andere Klassen bleiben unberührt
	student, err := repo.GetByID(1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	counts, err := student.ClassCounts()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if counts["data structures"] != 2 {
		t.Errorf("expected persisted count 2, got %d", counts["data structures"])
	}
	if counts["algorithms"] != 0 {
		t.Errorf("expected other classes to stay at 0, got %d", counts["algorithms"])
	}
}

func TestIncrementClassNotAssigned(t *testing.T) {
	repo := newTestRepository(t)

	if err := repo.Create(newStudent(t, 1, "a@example.com", "BBA")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := repo.IncrementClass(1, "data structures"); !errors.Is(err, ErrClassNotAssigned) {
		t.Errorf("expected ErrClassNotAssigned, got %v", err)
	}

	// Kein Zähler darf sich verändert haben
	student, err := repo.GetByID(1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	counts, err := student.ClassCounts()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for class, count := range counts {
		if count != 0 {
			t.Errorf("expected class %q to stay at 0, got %d", class, count)
		}
	}
}

func TestIncrementClassUnknownStudent(t *testing.T) {
	repo := newTestRepository(t)

	if _, err := repo.IncrementClass(99, "data structures"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
