package attendance

import (
	"errors"
	"testing"
	"time"

	"face-attendance-go/internal/core/models"
	"face-attendance-go/internal/db/repository"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newTestRepo(t *testing.T) *repository.StudentRepository {
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
	return repository.NewStudentRepository(db)
}

func enrollStudent(t *testing.T, repo *repository.StudentRepository, id uint, course string) {
	t.Helper()

	student := &models.Student{
		ID:       id,
		Name:     "Student",
		Email:    "student@example.com",
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
	if err := repo.Create(student); err != nil {
		t.Fatalf("failed to create student: %v", err)
	}
}

func TestRecordIncrementsCounter(t *testing.T) {
	repo := newTestRepo(t)
	enrollStudent(t, repo, 1, "B.Tech")
	ledger := NewLedger(repo, 0)

	outcome, err := ledger.Record(1, "algorithms")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Status != StatusRecorded {
		t.Fatalf("expected status %s, got %s", StatusRecorded, outcome.Status)
	}
	if outcome.Count != 1 {
		t.Errorf("expected count 1, got %d", outcome.Count)
	}
}

func TestRecordTwiceIncrementsTwice(t *testing.T) {
	repo := newTestRepo(t)
	enrollStudent(t, repo, 1, "B.Tech")
	ledger := NewLedger(repo, 0)

	if _, err := ledger.Record(1, "algorithms"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	outcome, err := ledger.Record(1, "algorithms")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Status != StatusRecorded || outcome.Count != 2 {
		t.Errorf("expected second recording with count 2, got %s / %d", outcome.Status, outcome.Count)
	}
}

func TestRecordClassNotAssigned(t *testing.T) {
	repo := newTestRepo(t)
	enrollStudent(t, repo, 1, "BBA")
	ledger := NewLedger(repo, 0)

	outcome, err := ledger.Record(1, "algorithms")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Status != StatusNotEnrolledInClass {
		t.Fatalf("expected status %s, got %s", StatusNotEnrolledInClass, outcome.Status)
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

func TestRecordUnknownStudent(t *testing.T) {
	repo := newTestRepo(t)
	ledger := NewLedger(repo, 0)

	if _, err := ledger.Record(42, "algorithms"); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestRecordCooldownSuppressesRepeat(t *testing.T) {
	repo := newTestRepo(t)
	enrollStudent(t, repo, 1, "B.Tech")
	ledger := NewLedger(repo, time.Minute)

	current := time.Now()
	ledger.now = func() time.Time { return current }

	outcome, err := ledger.Record(1, "algorithms")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Status != StatusRecorded {
		t.Fatalf("expected status %s, got %s", StatusRecorded, outcome.Status)
	}

	// Innerhalb der Sperrfrist: keine Mutation
	outcome, err = ledger.Record(1, "algorithms")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Status != StatusCooldown {
		t.Fatalf("expected status %s, got %s", StatusCooldown, outcome.Status)
	}

	// Eine andere Klasse ist nicht betroffen
	outcome, err = ledger.Record(1, "data structures")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Status != StatusRecorded {
		t.Errorf("expected other class to record, got %s", outcome.Status)
	}

	// Nach Ablauf der Sperrfrist wird wieder verbucht
	current = current.Add(2 * time.Minute)
	outcome, err = ledger.Record(1, "algorithms")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Status != StatusRecorded || outcome.Count != 2 {
		t.Errorf("expected count 2 after cooldown expiry, got %s / %d", outcome.Status, outcome.Count)
	}
}
