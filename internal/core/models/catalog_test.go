package models

import "testing"

func TestClassesForCourse(t *testing.T) {
	classes, ok := ClassesForCourse("B.Tech")
	if !ok {
		t.Fatal("expected B.Tech to be a known course")
	}
	if len(classes) != 5 {
		t.Errorf("expected 5 classes for B.Tech, got %d", len(classes))
	}

	if _, ok := ClassesForCourse("Astrology"); ok {
		t.Error("expected unknown course to be rejected")
	}
}

func TestClassesForCourseReturnsCopy(t *testing.T) {
	classes, _ := ClassesForCourse("BBA")
	classes[0] = "tampered"

	fresh, _ := ClassesForCourse("BBA")
	if fresh[0] == "tampered" {
		t.Error("expected the catalog to be immutable for callers")
	}
}

func TestInitialClassCounts(t *testing.T) {
	counts, ok := InitialClassCounts("MBA")
	if !ok {
		t.Fatal("expected MBA to be a known course")
	}
	if len(counts) != 5 {
		t.Errorf("expected 5 classes for MBA, got %d", len(counts))
	}
	for class, count := range counts {
		if count != 0 {
			t.Errorf("expected class %q to start at 0, got %d", class, count)
		}
	}
}

func TestClassCountsRoundTrip(t *testing.T) {
	student := &Student{ID: 1}

	counts, _ := InitialClassCounts("B.Tech")
	counts["algorithms"] = 3
	if err := student.SetClassCounts(counts); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	decoded, err := student.ClassCounts()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decoded["algorithms"] != 3 {
		t.Errorf("expected algorithms count 3, got %d", decoded["algorithms"])
	}
}

func TestEmbeddingVectorRoundTrip(t *testing.T) {
	student := &Student{ID: 1}

	if err := student.SetEmbeddingVector([]float32{0.5, -0.25, 1}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	vec, err := student.EmbeddingVector()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vec) != 3 || vec[1] != -0.25 {
		t.Errorf("unexpected vector: %v", vec)
	}
}
