package handlers

import (
	"errors"
	"image"
	"net/http"
	"strconv"
	"time"

	"face-attendance-go/config"
	"face-attendance-go/internal/core/attendance"
	"face-attendance-go/internal/core/enrollment"
	"face-attendance-go/internal/core/models"
	"face-attendance-go/internal/core/recognition"
	"face-attendance-go/internal/db/repository"
	"face-attendance-go/internal/integrations/camera"
	"face-attendance-go/internal/integrations/mqtt"
	"face-attendance-go/internal/server/sse"
	"face-attendance-go/internal/storage"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// Dateiname des zuletzt annotierten Erkennungsbildes im Snapshot-Verzeichnis
const recognizedSnapshot = "recognized.png"

// APIHandler behandelt die API-Anfragen des Anwesenheitssystems
type APIHandler struct {
	cfg        *config.Config
	repo       *repository.StudentRepository
	enrollment *enrollment.Service
	pipeline   *recognition.Pipeline
	results    *recognition.ResultStore
	ledger     *attendance.Ledger
	photos     *storage.PhotoStore
	camera     *camera.Source
	hub        *sse.Hub
	mqtt       *mqtt.Client
}

// NewAPIHandler erstellt einen neuen API-Handler
func NewAPIHandler(cfg *config.Config, repo *repository.StudentRepository, enrollmentService *enrollment.Service, pipeline *recognition.Pipeline, results *recognition.ResultStore, ledger *attendance.Ledger, photos *storage.PhotoStore, cameraSource *camera.Source, hub *sse.Hub, mqttClient *mqtt.Client) *APIHandler {
	return &APIHandler{
		cfg:        cfg,
		repo:       repo,
		enrollment: enrollmentService,
		pipeline:   pipeline,
		results:    results,
		ledger:     ledger,
		photos:     photos,
		camera:     cameraSource,
		hub:        hub,
		mqtt:       mqttClient,
	}
}

// RegisterRoutes registriert alle API-Routen
func (h *APIHandler) RegisterRoutes(router *gin.RouterGroup) {
	// Einschreibungs-Endpunkte
	router.POST("/enrollment/capture", h.CaptureEnrollmentPhoto)
	router.POST("/enrollment", h.EnrollStudent)

	// Erkennungs- und Anwesenheits-Endpunkte
	router.POST("/recognition", h.RecognizeStudent)
	router.POST("/attendance", h.RecordAttendance)
	router.GET("/attendance", h.AttendanceOverview)

	// Studenten-Endpunkte
	router.GET("/students", h.ListStudents)
	router.GET("/students/:id", h.GetStudent)
}

// translate löst einen Nachrichtenschlüssel über die i18n-Middleware auf
func translate(c *gin.Context, key string) string {
	if t, ok := c.Get("t"); ok {
		if fn, ok := t.(func(string, ...interface{}) string); ok {
			return fn(key)
		}
	}
	return key
}

// CaptureEnrollmentPhoto nimmt ein Einschreibefoto mit der nächsten freien
// Studenten-ID auf
func (h *APIHandler) CaptureEnrollmentPhoto(c *gin.Context) {
	filename, err := h.enrollment.Capture(c.Request.Context())
	if err != nil {
		switch {
		case errors.Is(err, enrollment.ErrAlreadyEnrolled):
			c.JSON(http.StatusConflict, gin.H{"error": translate(c, "enrollment.already_enrolled")})
		case errors.Is(err, camera.ErrNotOpen), errors.Is(err, camera.ErrCaptureTimeout):
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": translate(c, "camera.timeout")})
		default:
			log.Errorf("Enrollment capture failed: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to capture enrollment photo"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":  translate(c, "enrollment.captured"),
		"filename": filename,
	})
}

// EnrollStudent schreibt einen Studenten mit einem zuvor aufgenommenen Foto ein
func (h *APIHandler) EnrollStudent(c *gin.Context) {
	var input enrollment.Input
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	student, err := h.enrollment.Enroll(c.Request.Context(), input)
	if err != nil {
		switch {
		case errors.Is(err, enrollment.ErrInvalidIdentifier):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, enrollment.ErrDuplicateEmail):
			c.JSON(http.StatusConflict, gin.H{"error": translate(c, "enrollment.duplicate_email")})
		case errors.Is(err, enrollment.ErrUnknownCourse):
			c.JSON(http.StatusBadRequest, gin.H{"error": translate(c, "enrollment.unknown_course")})
		case errors.Is(err, enrollment.ErrNoFaceDetected):
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": translate(c, "enrollment.no_face")})
		default:
			log.Errorf("Enrollment failed: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Enrollment failed"})
		}
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": translate(c, "enrollment.enrolled"),
		"student": student,
	})
}

// RecognizeStudent zieht einen Frame von der Kamera, identifiziert ihn und
// legt das Ergebnis unter einem flüchtigen Token ab
func (h *APIHandler) RecognizeStudent(c *gin.Context) {
	result, frame, err := h.pipeline.Recognize(c.Request.Context())
	if err != nil {
		switch {
		case errors.Is(err, camera.ErrNotOpen), errors.Is(err, camera.ErrCaptureTimeout):
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": translate(c, "camera.timeout")})
		default:
			log.Errorf("Recognition failed: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Recognition failed"})
		}
		return
	}

	// Annotiertes Erkennungsbild speichern (für die Ergebnisanzeige);
	// Fehler hier sind nicht fatal für den Erkennungspfad
	snapshotURL := h.saveRecognitionSnapshot(frame, result)

	// Erkennungsversuch protokollieren
	event := &models.RecognitionEvent{
		Status:      string(result.Status),
		StudentID:   result.StudentID,
		StudentName: result.StudentName,
		Distance:    result.Distance,
		FacesCount:  result.FacesCount,
		Timestamp:   time.Now(),
	}
	if snapshotURL != "" {
		event.SnapshotPath = recognizedSnapshot
	}
	if err := h.repo.CreateRecognitionEvent(event); err != nil {
		log.Warnf("Failed to persist recognition event: %v", err)
	}

	// Live-Clients informieren
	h.hub.BroadcastRecognition(result, snapshotURL)

	response := gin.H{
		"status":       result.Status,
		"faces_count":  result.FacesCount,
		"message":      translate(c, "recognition."+string(result.Status)),
		"snapshot_url": snapshotURL,
	}

	// Nur ein Treffer erzeugt ein verbuchbares Token
	if result.Status == recognition.StatusMatched {
		response["token"] = h.results.Put(result)
		response["student_id"] = result.StudentID
		response["student_name"] = result.StudentName
		response["distance"] = result.Distance
	}

	c.JSON(http.StatusOK, response)
}

// attendanceRequest ist der Body der Anwesenheitsbuchung
type attendanceRequest struct {
	Token string `json:"token" binding:"required"`
	Class string `json:"class" binding:"required"`
}

// RecordAttendance verbucht Anwesenheit für ein zuvor erzeugtes
// Erkennungs-Token und eine gewählte Klasse
func (h *APIHandler) RecordAttendance(c *gin.Context) {
	var req attendanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, ok := h.results.Get(req.Token)
	if !ok {
		c.JSON(http.StatusGone, gin.H{"error": translate(c, "attendance.expired_token")})
		return
	}
	if result.Status != recognition.StatusMatched {
		c.JSON(http.StatusConflict, gin.H{"error": translate(c, "recognition."+string(result.Status))})
		return
	}

	outcome, err := h.ledger.Record(result.StudentID, req.Class)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Student not found"})
			return
		}
		log.Errorf("Attendance recording failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Attendance recording failed"})
		return
	}

	h.hub.BroadcastAttendance(string(outcome.Status), outcome.StudentID, outcome.StudentName, outcome.Class, outcome.Count)

	if outcome.Status == attendance.StatusRecorded {
		h.publishAttendance(outcome)
	}

	status := http.StatusOK
	if outcome.Status == attendance.StatusNotEnrolledInClass {
		status = http.StatusConflict
	}

	c.JSON(status, gin.H{
		"status":       outcome.Status,
		"message":      translate(c, "attendance."+string(outcome.Status)),
		"student_id":   outcome.StudentID,
		"student_name": outcome.StudentName,
		"class":        outcome.Class,
		"count":        outcome.Count,
	})
}

// AttendanceOverview liefert die Anwesenheitszähler aller Studenten
func (h *APIHandler) AttendanceOverview(c *gin.Context) {
	students, err := h.repo.List()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load students"})
		return
	}

	overview := make([]gin.H, 0, len(students))
	for _, student := range students {
		counts, err := student.ClassCounts()
		if err != nil {
			log.Warnf("Skipping student %d with unreadable class counts: %v", student.ID, err)
			continue
		}
		overview = append(overview, gin.H{
			"student_id":   student.ID,
			"student_name": student.Name,
			"course":       student.Course,
			"classes":      counts,
		})
	}

	c.JSON(http.StatusOK, gin.H{"students": overview})
}

// ListStudents gibt alle eingeschriebenen Studenten zurück
func (h *APIHandler) ListStudents(c *gin.Context) {
	students, err := h.repo.List()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load students"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"students": students,
		"count":    len(students),
	})
}

// GetStudent gibt einen einzelnen Studenten zurück
func (h *APIHandler) GetStudent(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid student ID"})
		return
	}

	student, err := h.repo.GetByID(uint(id))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Student not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load student"})
		return
	}

	c.JSON(http.StatusOK, student)
}

// saveRecognitionSnapshot annotiert den Frame mit den erkannten Boxen und
// speichert ihn als letztes Erkennungsbild. Gibt die URL des Bildes zurück,
// oder leer bei Fehlern.
func (h *APIHandler) saveRecognitionSnapshot(frame []byte, result *recognition.Result) string {
	if len(frame) == 0 {
		return ""
	}

	annotated := frame
	if len(result.Boxes) > 0 {
		rects := make([]image.Rectangle, 0, len(result.Boxes))
		for _, box := range result.Boxes {
			rects = append(rects, image.Rect(box.XMin, box.YMin, box.XMax, box.YMax))
		}

		var err error
		annotated, err = camera.AnnotateFaces(frame, rects)
		if err != nil {
			log.Warnf("Failed to annotate recognition snapshot: %v", err)
			annotated = frame
		}
	}

	if err := h.photos.Overwrite(recognizedSnapshot, annotated); err != nil {
		log.Warnf("Failed to save recognition snapshot: %v", err)
		return ""
	}

	return h.cfg.Server.SnapshotURL + "/" + recognizedSnapshot
}

// publishAttendance veröffentlicht eine verbuchte Anwesenheit über MQTT
func (h *APIHandler) publishAttendance(outcome *attendance.Outcome) {
	if h.mqtt == nil || !h.mqtt.IsConnected() {
		return
	}

	event := mqtt.AttendanceEvent{
		StudentID:   outcome.StudentID,
		StudentName: outcome.StudentName,
		Class:       outcome.Class,
		Count:       outcome.Count,
		Timestamp:   time.Now(),
	}
	if err := h.mqtt.PublishAttendance(event); err != nil {
		log.Warnf("Failed to publish attendance event: %v", err)
	}
}
