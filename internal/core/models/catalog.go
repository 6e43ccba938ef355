package models

// courseCatalog legt pro Studiengang die feste Menge der Klassen fest.
// Die Schlüssel der Classes-Map eines Studenten werden bei der Einschreibung
// aus diesem Katalog abgeleitet und danach nicht mehr verändert.
var courseCatalog = map[string][]string{
	"B.Tech": {"data structures", "algorithms", "computer networks", "operating systems", "database management systems"},
	"M.Tech": {"introduction to machine learning", "deep learning", "computer vision", "natural language processing", "reinforcement learning"},
	"BBA":    {"finance", "marketing", "human resources"},
	"MBA":    {"human resources", "marketing", "finance", "operations management", "business analytics"},
	"BCA":    {"intro to programming", "data structures", "algorithms", "computer networks", "operating systems", "database management systems"},
	"MCA":    {"discrete mathematics", "data structures", "algorithms", "computer networks", "operating systems", "database management systems"},
	"B.Sc":   {"mathematics", "physics", "chemistry", "biology", "computer science", "statistics"},
	"M.Sc":   {"physics", "chemistry", "biology", "computer science", "statistics", "mathematics"},
	"B.Com":  {"accounting", "finance", "economics", "business law", "marketing"},
}

// ClassesForCourse gibt die Klassen eines Studiengangs zurück.
// Der zweite Rückgabewert ist false, wenn der Studiengang unbekannt ist.
func ClassesForCourse(course string) ([]string, bool) {
	classes, ok := courseCatalog[course]
	if !ok {
		return nil, false
	}
	out := make([]string, len(classes))
	copy(out, classes)
	return out, true
}

// Courses gibt alle bekannten Studiengänge zurück
func Courses() []string {
	courses := make([]string, 0, len(courseCatalog))
	for course := range courseCatalog {
		courses = append(courses, course)
	}
	return courses
}

// InitialClassCounts erstellt die mit Null initialisierten Anwesenheitszähler
// für einen Studiengang
func InitialClassCounts(course string) (map[string]int, bool) {
	classes, ok := ClassesForCourse(course)
	if !ok {
		return nil, false
	}
	counts := make(map[string]int, len(classes))
	for _, class := range classes {
		counts[class] = 0
	}
	return counts, true
}
