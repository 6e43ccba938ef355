package facerec

import (
	"context"
	"errors"
)

// Box repräsentiert die Bounding-Box eines erkannten Gesichts
type Box struct {
	XMin        int     `json:"x_min"`
	YMin        int     `json:"y_min"`
	XMax        int     `json:"x_max"`
	YMax        int     `json:"y_max"`
	Probability float64 `json:"probability"`
}

// ErrNoFaceExtractable wird zurückgegeben, wenn das Modell für ein ausgerichtetes
// Gesicht kein Embedding erzeugen kann
var ErrNoFaceExtractable = errors.New("no face extractable from aligned image")

// Provider ist der Vertrag für den externen Detektions-/Embedding-Dienst.
// Alle Operationen sind zustandslos und für feste Eingaben deterministisch.
type Provider interface {
	// DetectFaces erkennt Gesichter in einem Bild und gibt deren Boxen zurück
	// (möglicherweise leer)
	DetectFaces(ctx context.Context, image []byte) ([]Box, error)

	// AlignFace schneidet ein Gesicht anhand seiner Box zu und normalisiert es
	AlignFace(ctx context.Context, image []byte, box Box) ([]byte, error)

	// ExtractEmbedding berechnet den Merkmalsvektor eines normalisierten Gesichts.
	// Gibt ErrNoFaceExtractable zurück, wenn das Modell kein Embedding liefern kann.
	ExtractEmbedding(ctx context.Context, face []byte) ([]float32, error)

	// Ping prüft, ob der Dienst erreichbar ist
	Ping(ctx context.Context) (bool, error)
}
