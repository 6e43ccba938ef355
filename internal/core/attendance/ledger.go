package attendance

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"face-attendance-go/internal/db/repository"

	log "github.com/sirupsen/logrus"
)

// Status beschreibt den Ausgang einer Anwesenheitsbuchung
type Status string

const (
	// StatusRecorded: der Zähler wurde um genau 1 erhöht
	StatusRecorded Status = "recorded"

	// StatusNotEnrolledInClass: die Klasse gehört nicht zum Studenten, keine Mutation
	StatusNotEnrolledInClass Status = "not_enrolled_in_class"

	// StatusCooldown: dieselbe Buchung liegt noch innerhalb der Sperrfrist, keine Mutation
	StatusCooldown Status = "cooldown"
)

// Outcome ist das Ergebnis einer Anwesenheitsbuchung
type Outcome struct {
	Status      Status `json:"status"`
	StudentID   uint   `json:"student_id"`
	StudentName string `json:"student_name"`
	Class       string `json:"class"`
	Count       int    `json:"count,omitempty"` // neuer Zählerstand nach der Buchung
}

// Ledger verbucht Anwesenheit für erkannte Studenten. Die Auflösung erfolgt
// über die Studenten-ID, nicht über den Namen, da nur die ID eindeutig ist.
//
// Ohne Sperrfrist (cooldown == 0) erhöht jeder erfolgreiche Aufruf den Zähler
// erneut, auch für dieselbe Kombination aus Student und Klasse. Die Sperrfrist
// ist eine konfigurierbare Politik gegen versehentliche Doppelbuchungen.
type Ledger struct {
	repo     *repository.StudentRepository
	cooldown time.Duration

	mu   sync.Mutex
	last map[string]time.Time
	now  func() time.Time
}

// NewLedger erstellt ein neues Ledger
func NewLedger(repo *repository.StudentRepository, cooldown time.Duration) *Ledger {
	return &Ledger{
		repo:     repo,
		cooldown: cooldown,
		last:     make(map[string]time.Time),
		now:      time.Now,
	}
}

// Record verbucht genau eine Anwesenheit für den Studenten in der gewählten
// Klasse. Gehört die Klasse nicht zum Katalog des Studenten, wird nichts
// verändert und StatusNotEnrolledInClass zurückgegeben.
func (l *Ledger) Record(studentID uint, class string) (*Outcome, error) {
	student, err := l.repo.GetByID(studentID)
	if err != nil {
		return nil, err
	}

	outcome := &Outcome{
		StudentID:   student.ID,
		StudentName: student.Name,
		Class:       class,
	}

	if l.cooldown > 0 {
		key := fmt.Sprintf("%d/%s", studentID, class)
		l.mu.Lock()
		if lastAt, ok := l.last[key]; ok && l.now().Sub(lastAt) < l.cooldown {
			l.mu.Unlock()
			log.Debugf("Suppressing repeated attendance for student %d in %s (cooldown)", studentID, class)
			outcome.Status = StatusCooldown
			return outcome, nil
		}
		l.mu.Unlock()
	}

	count, err := l.repo.IncrementClass(studentID, class)
	if err != nil {
		if errors.Is(err, repository.ErrClassNotAssigned) {
			outcome.Status = StatusNotEnrolledInClass
			return outcome, nil
		}
		return nil, err
	}

	if l.cooldown > 0 {
		key := fmt.Sprintf("%d/%s", studentID, class)
		l.mu.Lock()
		l.last[key] = l.now()
		l.mu.Unlock()
	}

	log.Infof("Recorded attendance for student %d (%s) in %s, count now %d",
		student.ID, student.Name, class, count)

	outcome.Status = StatusRecorded
	outcome.Count = count
	return outcome, nil
}
