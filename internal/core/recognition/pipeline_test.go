package recognition

import (
	"context"
	"errors"
	"testing"

	"face-attendance-go/internal/core/models"
	"face-attendance-go/internal/integrations/facerec"
)

// fakeFrames liefert immer denselben Frame
type fakeFrames struct {
	frame []byte
	err   error
}

func (f *fakeFrames) NextFrame(ctx context.Context) ([]byte, error) {
	return f.frame, f.err
}

// fakeProvider bildet den externen Dienst deterministisch nach: pro Box
// ein vorgegebenes Embedding oder ein Fehler
type fakeProvider struct {
	boxes      []facerec.Box
	detectErr  error
	embeddings map[int][]float32 // Index der Box -> Embedding
	extractErr map[int]error
}

func (f *fakeProvider) DetectFaces(ctx context.Context, image []byte) ([]facerec.Box, error) {
	return f.boxes, f.detectErr
}

func (f *fakeProvider) AlignFace(ctx context.Context, image []byte, box facerec.Box) ([]byte, error) {
	// Box-Index über XMin kodieren, damit ExtractEmbedding ihn wiederfindet
	return []byte{byte(box.XMin)}, nil
}

func (f *fakeProvider) ExtractEmbedding(ctx context.Context, face []byte) ([]float32, error) {
	idx := int(face[0])
	if err, ok := f.extractErr[idx]; ok {
		return nil, err
	}
	return f.embeddings[idx], nil
}

func (f *fakeProvider) Ping(ctx context.Context) (bool, error) {
	return true, nil
}

// fakeTemplates liefert eine feste Vorlagenmenge
type fakeTemplates struct {
	templates []models.FaceTemplate
	err       error
}

func (f *fakeTemplates) EnrolledTemplates() ([]models.FaceTemplate, error) {
	return f.templates, f.err
}

func box(idx int) facerec.Box {
	return facerec.Box{XMin: idx, YMin: 0, XMax: idx + 100, YMax: 100, Probability: 0.99}
}

func newTestPipeline(provider facerec.Provider, templates TemplateSource, policy MultiFacePolicy) *Pipeline {
	matcher := NewMatcher(MetricEuclidean, 0.5)
	frames := &fakeFrames{frame: []byte("jpeg")}
	return NewPipeline(frames, provider, matcher, templates, policy)
}

func enrolled() *fakeTemplates {
	return &fakeTemplates{templates: []models.FaceTemplate{
		{StudentID: 1, Name: "Alice", Embedding: []float32{1, 0, 0}},
		{StudentID: 2, Name: "Bob", Embedding: []float32{0, 1, 0}},
	}}
}

func TestRecognizeNoFace(t *testing.T) {
	provider := &fakeProvider{boxes: nil}
	p := newTestPipeline(provider, enrolled(), PolicyFirstAccepted)

	result, _, err := p.Recognize(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Status != StatusNoFace {
		t.Errorf("expected status %s, got %s", StatusNoFace, result.Status)
	}
}

func TestRecognizeMatched(t *testing.T) {
	provider := &fakeProvider{
		boxes:      []facerec.Box{box(0)},
		embeddings: map[int][]float32{0: {0.9, 0.1, 0}},
	}
	p := newTestPipeline(provider, enrolled(), PolicyFirstAccepted)

	result, frame, err := p.Recognize(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Status != StatusMatched {
		t.Fatalf("expected status %s, got %s", StatusMatched, result.Status)
	}
	if result.StudentID != 1 || result.StudentName != "Alice" {
		t.Errorf("expected Alice (1), got %s (%d)", result.StudentName, result.StudentID)
	}
	if result.FacesCount != 1 {
		t.Errorf("expected faces_count 1, got %d", result.FacesCount)
	}
	if string(frame) != "jpeg" {
		t.Error("expected the captured frame to be returned")
	}
}

func TestRecognizeNoMatch(t *testing.T) {
	provider := &fakeProvider{
		boxes:      []facerec.Box{box(0)},
		embeddings: map[int][]float32{0: {0.5, 0.5, 0.5}},
	}
	p := newTestPipeline(provider, enrolled(), PolicyFirstAccepted)

	result, _, err := p.Recognize(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Status != StatusNoMatch {
		t.Errorf("expected status %s, got %s", StatusNoMatch, result.Status)
	}
}

func TestRecognizeSkipsUnextractableBox(t *testing.T) {
	// Erste Box liefert kein Embedding, zweite trifft Bob
	provider := &fakeProvider{
		boxes:      []facerec.Box{box(0), box(1)},
		embeddings: map[int][]float32{1: {0, 1, 0}},
		extractErr: map[int]error{0: facerec.ErrNoFaceExtractable},
	}
	p := newTestPipeline(provider, enrolled(), PolicyFirstAccepted)

	result, _, err := p.Recognize(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Status != StatusMatched {
		t.Fatalf("expected status %s, got %s", StatusMatched, result.Status)
	}
	if result.StudentID != 2 {
		t.Errorf("expected student 2, got %d", result.StudentID)
	}
}

func TestRecognizeAllBoxesUnextractable(t *testing.T) {
	provider := &fakeProvider{
		boxes:      []facerec.Box{box(0), box(1)},
		extractErr: map[int]error{0: facerec.ErrNoFaceExtractable, 1: facerec.ErrNoFaceExtractable},
	}
	p := newTestPipeline(provider, enrolled(), PolicyFirstAccepted)

	result, _, err := p.Recognize(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Status != StatusNoFace {
		t.Errorf("expected status %s, got %s", StatusNoFace, result.Status)
	}
	if result.FacesCount != 2 {
		t.Errorf("expected faces_count 2, got %d", result.FacesCount)
	}
}

func TestRecognizeRejectAmbiguous(t *testing.T) {
	provider := &fakeProvider{
		boxes:      []facerec.Box{box(0), box(1)},
		embeddings: map[int][]float32{0: {1, 0, 0}, 1: {0, 1, 0}},
	}
	p := newTestPipeline(provider, enrolled(), PolicyRejectAmbiguous)

	result, _, err := p.Recognize(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Status != StatusAmbiguous {
		t.Errorf("expected status %s, got %s", StatusAmbiguous, result.Status)
	}
}

func TestRecognizePropagatesInfrastructureErrors(t *testing.T) {
	detectErr := errors.New("service unavailable")
	provider := &fakeProvider{detectErr: detectErr}
	p := newTestPipeline(provider, enrolled(), PolicyFirstAccepted)

	if _, _, err := p.Recognize(context.Background()); !errors.Is(err, detectErr) {
		t.Errorf("expected detection error to propagate, got %v", err)
	}
}

func TestRecognizeCaptureError(t *testing.T) {
	captureErr := errors.New("camera gone")
	matcher := NewMatcher(MetricEuclidean, 0.5)
	p := NewPipeline(&fakeFrames{err: captureErr}, &fakeProvider{}, matcher, enrolled(), PolicyFirstAccepted)

	if _, _, err := p.Recognize(context.Background()); !errors.Is(err, captureErr) {
		t.Errorf("expected capture error to propagate, got %v", err)
	}
}
