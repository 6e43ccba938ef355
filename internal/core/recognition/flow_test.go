package recognition

import (
	"context"
	"testing"

	"face-attendance-go/internal/core/attendance"
	"face-attendance-go/internal/core/enrollment"
	"face-attendance-go/internal/core/models"
	"face-attendance-go/internal/db/repository"
	"face-attendance-go/internal/integrations/facerec"
	"face-attendance-go/internal/storage"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// testSystem verdrahtet Einschreibung, Erkennung und Anwesenheitsbuchung
// gegen eine In-Memory-Datenbank und gefälschte Kamera/Dienst-Quellen
type testSystem struct {
	repo       *repository.StudentRepository
	enrollment *enrollment.Service
	pipeline   *Pipeline
	ledger     *attendance.Ledger
	provider   *fakeProvider
}

func newTestSystem(t *testing.T) *testSystem {
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
	repo := repository.NewStudentRepository(db)

	photos, err := storage.NewPhotoStore(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create photo store: %v", err)
	}

	provider := &fakeProvider{
		boxes:      []facerec.Box{box(0)},
		embeddings: map[int][]float32{0: {1, 0, 0}},
	}
	frames := &fakeFrames{frame: []byte("jpeg")}
	matcher := NewMatcher(MetricEuclidean, 0.5)

	return &testSystem{
		repo:       repo,
		enrollment: enrollment.NewService(frames, provider, repo, photos, 3),
		pipeline:   NewPipeline(frames, provider, matcher, repo, PolicyFirstAccepted),
		ledger:     attendance.NewLedger(repo, 0),
		provider:   provider,
	}
}

func (s *testSystem) enrollAlice(t *testing.T) {
	t.Helper()

	ctx := context.Background()
	if _, err := s.enrollment.Capture(ctx); err != nil {
		t.Fatalf("capture failed: %v", err)
	}
	_, err := s.enrollment.Enroll(ctx, enrollment.Input{
		Filename: "1.png",
		Name:     "Alice",
		Email:    "alice@example.com",
		Password: "secret",
		Course:   "B.Tech",
	})
	if err != nil {
		t.Fatalf("enrollment failed: %v", err)
	}
}

// Ein eingeschriebener Student wird erkannt und kann Anwesenheit verbuchen
func TestFlowEnrollRecognizeRecord(t *testing.T) {
	sys := newTestSystem(t)
	sys.enrollAlice(t)

	result, _, err := sys.pipeline.Recognize(context.Background())
	if err != nil {
		t.Fatalf("recognition failed: %v", err)
	}
	if result.Status != StatusMatched || result.StudentName != "Alice" {
		t.Fatalf("expected Alice to be recognized, got %+v", result)
	}

	outcome, err := sys.ledger.Record(result.StudentID, "data structures")
	if err != nil {
		t.Fatalf("attendance recording failed: %v", err)
	}
	if outcome.Status != attendance.StatusRecorded || outcome.Count != 1 {
		t.Errorf("expected first attendance with count 1, got %s / %d", outcome.Status, outcome.Count)
	}

	// Der persistierte Zähler stimmt mit dem Ergebnis überein
	student, err := sys.repo.GetByID(result.StudentID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	counts, err := student.ClassCounts()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if counts["data structures"] != 1 {
		t.Errorf("expected persisted count 1, got %d", counts["data structures"])
	}
}

// Ohne Gesicht im Frame gibt es kein verbuchbares Ergebnis
func TestFlowNoFaceProducesNoBooking(t *testing.T) {
	sys := newTestSystem(t)
	sys.enrollAlice(t)
	sys.provider.boxes = nil

	result, _, err := sys.pipeline.Recognize(context.Background())
	if err != nil {
		t.Fatalf("recognition failed: %v", err)
	}
	if result.Status != StatusNoFace {
		t.Errorf("expected status %s, got %s", StatusNoFace, result.Status)
	}
	if result.StudentID != 0 {
		t.Errorf("expected no student in a no_face result, got %d", result.StudentID)
	}
}

// Ein unbekanntes Gesicht liefert no_match
func TestFlowUnknownFaceNoMatch(t *testing.T) {
	sys := newTestSystem(t)
	sys.enrollAlice(t)
	sys.provider.embeddings[0] = []float32{0, 0, 1}

	result, _, err := sys.pipeline.Recognize(context.Background())
	if err != nil {
		t.Fatalf("recognition failed: %v", err)
	}
	if result.Status != StatusNoMatch {
		t.Errorf("expected status %s, got %s", StatusNoMatch, result.Status)
	}
}

// Eine Klasse außerhalb des Studiengangs verändert keinen Zähler
func TestFlowForeignClassRejected(t *testing.T) {
	sys := newTestSystem(t)
	sys.enrollAlice(t)

	result, _, err := sys.pipeline.Recognize(context.Background())
	if err != nil {
		t.Fatalf("recognition failed: %v", err)
	}

	outcome, err := sys.ledger.Record(result.StudentID, "finance")
	if err != nil {
		t.Fatalf("attendance recording failed: %v", err)
	}
	if outcome.Status != attendance.StatusNotEnrolledInClass {
		t.Fatalf("expected status %s, got %s", attendance.StatusNotEnrolledInClass, outcome.Status)
	}

	student, err := sys.repo.GetByID(result.StudentID)
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
