package recognition

import (
	"math"
	"sort"

	"face-attendance-go/internal/core/models"

	log "github.com/sirupsen/logrus"
)

// Metric bezeichnet das Distanzmaß für den Embedding-Vergleich
type Metric string

const (
	// MetricEuclidean ist die euklidische Distanz zwischen zwei Embeddings
	MetricEuclidean Metric = "euclidean"

	// MetricCosine ist die Kosinus-Distanz (1 - Kosinus-Ähnlichkeit)
	MetricCosine Metric = "cosine"
)

// ParseMetric wandelt den Konfigurationswert in eine Metric um.
// Unbekannte Werte fallen auf die euklidische Distanz zurück.
func ParseMetric(s string) Metric {
	switch Metric(s) {
	case MetricEuclidean, MetricCosine:
		return Metric(s)
	default:
		log.Warnf("Unknown distance metric '%s', falling back to euclidean", s)
		return MetricEuclidean
	}
}

// Matcher führt die lineare Suche über die eingeschriebenen Vorlagen durch.
// Exakte Nearest-Neighbor-Suche in O(n); bei Klassengrößen von wenigen Hundert
// Studenten ist kein Index nötig.
type Matcher struct {
	metric    Metric
	threshold float64
}

// NewMatcher erstellt einen neuen Matcher mit fester Metrik und Akzeptanzschwelle
func NewMatcher(metric Metric, threshold float64) *Matcher {
	return &Matcher{metric: metric, threshold: threshold}
}

// Distance berechnet die Distanz zwischen zwei Embeddings gleicher Länge
func (m *Matcher) Distance(a, b []float32) float64 {
	switch m.metric {
	case MetricCosine:
		return cosineDistance(a, b)
	default:
		return euclideanDistance(a, b)
	}
}

// Match sucht die beste Übereinstimmung für ein Abfrage-Embedding.
// Akzeptiert werden nur Kandidaten mit Distanz <= Schwelle; unter diesen
// gewinnt die kleinste Distanz, bei Gleichstand die niedrigste Studenten-ID.
// Der zweite Rückgabewert ist false, wenn kein Kandidat die Schwelle erreicht.
func (m *Matcher) Match(query []float32, templates []models.FaceTemplate) (models.FaceTemplate, float64, bool) {
	// Nach ID sortieren, damit Gleichstände deterministisch aufgelöst werden
	sorted := make([]models.FaceTemplate, len(templates))
	copy(sorted, templates)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].StudentID < sorted[j].StudentID })

	var best models.FaceTemplate
	bestDistance := math.MaxFloat64
	found := false

	for _, candidate := range sorted {
		if len(candidate.Embedding) != len(query) {
			log.Warnf("Skipping student %d: embedding dimension %d does not match query dimension %d",
				candidate.StudentID, len(candidate.Embedding), len(query))
			continue
		}

		distance := m.Distance(query, candidate.Embedding)
		if distance > m.threshold {
			continue
		}

		// Strikter Vergleich: bei gleicher Distanz bleibt der Kandidat mit
		// der niedrigeren ID erhalten
		if distance < bestDistance {
			best = candidate
			bestDistance = distance
			found = true
		}
	}

	if !found {
		return models.FaceTemplate{}, 0, false
	}
	return best, bestDistance, true
}

// euclideanDistance berechnet die euklidische Distanz zweier Vektoren
func euclideanDistance(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

// cosineDistance berechnet 1 - Kosinus-Ähnlichkeit zweier Vektoren.
// Nullvektoren gelten als maximal unähnlich.
func cosineDistance(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(normA)*math.Sqrt(normB))
}
