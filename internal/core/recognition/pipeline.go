package recognition

import (
	"context"
	"errors"
	"fmt"

	"face-attendance-go/internal/core/models"
	"face-attendance-go/internal/integrations/facerec"

	log "github.com/sirupsen/logrus"
)

// Status beschreibt das Ergebnis eines Erkennungsversuchs
type Status string

const (
	// StatusMatched: ein eingeschriebener Student wurde erkannt
	StatusMatched Status = "matched"

	// StatusNoMatch: ein Gesicht wurde verarbeitet, aber kein Student erreicht die Schwelle
	StatusNoMatch Status = "no_match"

	// StatusNoFace: im Frame wurde kein verarbeitbares Gesicht gefunden
	StatusNoFace Status = "no_face"

	// StatusAmbiguous: mehrere Gesichter im Frame, Politik reject_ambiguous aktiv
	StatusAmbiguous Status = "ambiguous"
)

// MultiFacePolicy legt fest, wie Frames mit mehreren Gesichtern behandelt werden
type MultiFacePolicy string

const (
	// PolicyFirstAccepted verarbeitet die Boxen in Detektionsreihenfolge und
	// bricht bei der ersten ab, die sich ausrichten und einbetten lässt
	PolicyFirstAccepted MultiFacePolicy = "first_accepted"

	// PolicyRejectAmbiguous weist Frames mit mehr als einem Gesicht ab
	PolicyRejectAmbiguous MultiFacePolicy = "reject_ambiguous"
)

// ParseMultiFacePolicy wandelt den Konfigurationswert in eine MultiFacePolicy um
func ParseMultiFacePolicy(s string) MultiFacePolicy {
	switch MultiFacePolicy(s) {
	case PolicyFirstAccepted, PolicyRejectAmbiguous:
		return MultiFacePolicy(s)
	default:
		log.Warnf("Unknown multi-face policy '%s', falling back to first_accepted", s)
		return PolicyFirstAccepted
	}
}

// Result ist das flüchtige Ergebnis eines Erkennungsversuchs. Es lebt nur für
// die Dauer der Sitzung (bis zur Klassenauswahl) im ResultStore.
type Result struct {
	Status      Status        `json:"status"`
	StudentID   uint          `json:"student_id,omitempty"`
	StudentName string        `json:"student_name,omitempty"`
	Distance    float64       `json:"distance,omitempty"`
	FacesCount  int           `json:"faces_count"`
	Boxes       []facerec.Box `json:"boxes,omitempty"`
}

// FrameSource liefert Frames von der Kameraquelle
type FrameSource interface {
	NextFrame(ctx context.Context) ([]byte, error)
}

// TemplateSource liefert die biometrischen Vorlagen der eingeschriebenen Studenten
type TemplateSource interface {
	EnrolledTemplates() ([]models.FaceTemplate, error)
}

// Pipeline orchestriert einen Erkennungsversuch:
// Frame -> Detektion -> Ausrichtung -> Embedding -> Abgleich.
type Pipeline struct {
	frames    FrameSource
	provider  facerec.Provider
	matcher   *Matcher
	templates TemplateSource
	policy    MultiFacePolicy
}

// NewPipeline erstellt eine neue Erkennungspipeline
func NewPipeline(frames FrameSource, provider facerec.Provider, matcher *Matcher, templates TemplateSource, policy MultiFacePolicy) *Pipeline {
	return &Pipeline{
		frames:    frames,
		provider:  provider,
		matcher:   matcher,
		templates: templates,
		policy:    policy,
	}
}

// Recognize zieht einen Frame von der Kamera und identifiziert ihn.
// Der Frame wird zusätzlich zurückgegeben, damit der Aufrufer das
// Erkennungsbild speichern kann.
func (p *Pipeline) Recognize(ctx context.Context) (*Result, []byte, error) {
	frame, err := p.frames.NextFrame(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("capture failed: %w", err)
	}

	result, err := p.IdentifyFrame(ctx, frame)
	if err != nil {
		return nil, nil, err
	}
	return result, frame, nil
}

// IdentifyFrame identifiziert ein einzelnes Bild gegen die aktuell
// eingeschriebenen Studenten. Die Vorlagen werden bei jedem Versuch frisch
// geladen, damit neue Einschreibungen sofort sichtbar sind.
//
// Detektions- und Extraktionsfehler werden lokal in einen Ergebnis-Status
// überführt; nur Infrastrukturfehler (Dienst nicht erreichbar, Datenbank)
// werden als Fehler propagiert.
func (p *Pipeline) IdentifyFrame(ctx context.Context, frame []byte) (*Result, error) {
	boxes, err := p.provider.DetectFaces(ctx, frame)
	if err != nil {
		return nil, fmt.Errorf("face detection failed: %w", err)
	}

	if len(boxes) == 0 {
		log.Debug("No faces detected in frame")
		return &Result{Status: StatusNoFace}, nil
	}

	if p.policy == PolicyRejectAmbiguous && len(boxes) > 1 {
		log.Debugf("Rejecting frame with %d faces (policy %s)", len(boxes), p.policy)
		return &Result{Status: StatusAmbiguous, FacesCount: len(boxes), Boxes: boxes}, nil
	}

	templates, err := p.templates.EnrolledTemplates()
	if err != nil {
		return nil, fmt.Errorf("failed to load enrolled templates: %w", err)
	}

	// Boxen in Detektionsreihenfolge verarbeiten; die erste, die sich
	// ausrichten und einbetten lässt, entscheidet das Ergebnis und die
	// restlichen Boxen werden übersprungen (first_accepted-Politik).
	for i, box := range boxes {
		embedding, err := p.embedBox(ctx, frame, box)
		if err != nil {
			if errors.Is(err, facerec.ErrNoFaceExtractable) {
				log.Debugf("Box %d not extractable, trying next", i)
				continue
			}
			return nil, err
		}

		template, distance, ok := p.matcher.Match(embedding, templates)
		if !ok {
			log.Debugf("No enrolled student within threshold for box %d", i)
			return &Result{Status: StatusNoMatch, FacesCount: len(boxes), Boxes: boxes}, nil
		}

		log.Infof("Recognized student %d (%s) at distance %.4f", template.StudentID, template.Name, distance)
		return &Result{
			Status:      StatusMatched,
			StudentID:   template.StudentID,
			StudentName: template.Name,
			Distance:    distance,
			FacesCount:  len(boxes),
			Boxes:       boxes,
		}, nil
	}

	// Es gab Boxen, aber keine war verarbeitbar
	return &Result{Status: StatusNoFace, FacesCount: len(boxes), Boxes: boxes}, nil
}

// embedBox richtet eine Box aus und berechnet ihr Embedding
func (p *Pipeline) embedBox(ctx context.Context, frame []byte, box facerec.Box) ([]float32, error) {
	aligned, err := p.provider.AlignFace(ctx, frame, box)
	if err != nil {
		if errors.Is(err, facerec.ErrNoFaceExtractable) {
			return nil, err
		}
		return nil, fmt.Errorf("face alignment failed: %w", err)
	}

	embedding, err := p.provider.ExtractEmbedding(ctx, aligned)
	if err != nil {
		if errors.Is(err, facerec.ErrNoFaceExtractable) {
			return nil, err
		}
		return nil, fmt.Errorf("embedding extraction failed: %w", err)
	}
	return embedding, nil
}
