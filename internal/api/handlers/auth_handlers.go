package handlers

import (
	"errors"
	"net/http"

	"face-attendance-go/config"
	"face-attendance-go/internal/db/repository"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

// AuthHandler behandelt Login und Logout für Studenten und Lehrkräfte
type AuthHandler struct {
	cfg  *config.Config
	repo *repository.StudentRepository
}

// NewAuthHandler erstellt einen neuen Auth-Handler
func NewAuthHandler(cfg *config.Config, repo *repository.StudentRepository) *AuthHandler {
	return &AuthHandler{cfg: cfg, repo: repo}
}

// RegisterRoutes registriert die Auth-Routen
func (h *AuthHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.POST("/auth/student/login", h.StudentLogin)
	router.POST("/auth/teacher/login", h.TeacherLogin)
	router.POST("/auth/logout", h.Logout)
}

// loginRequest ist der Body beider Login-Endpunkte
type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// StudentLogin meldet einen Studenten über E-Mail und Passwort an
func (h *AuthHandler) StudentLogin(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	student, err := h.repo.GetByEmail(req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": translate(c, "auth.invalid_credentials")})
			return
		}
		log.Errorf("Student login failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Login failed"})
		return
	}

	if student.Password != req.Password {
		c.JSON(http.StatusUnauthorized, gin.H{"error": translate(c, "auth.invalid_credentials")})
		return
	}

	session := sessions.Default(c)
	session.Set("role", "student")
	session.Set("student_id", student.ID)
	if err := session.Save(); err != nil {
		log.Errorf("Failed to save session: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Login failed"})
		return
	}

	log.Infof("Student %d (%s) logged in", student.ID, student.Name)
	c.JSON(http.StatusOK, gin.H{
		"student_id":   student.ID,
		"student_name": student.Name,
		"course":       student.Course,
	})
}

// TeacherLogin meldet eine Lehrkraft über das konfigurierte
// Passwort-Hash an
func (h *AuthHandler) TeacherLogin(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	hash := h.cfg.Auth.TeacherPasswordHash
	if hash == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": translate(c, "auth.invalid_credentials")})
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(req.Password)); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": translate(c, "auth.invalid_credentials")})
		return
	}

	session := sessions.Default(c)
	session.Set("role", "teacher")
	if err := session.Save(); err != nil {
		log.Errorf("Failed to save session: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Login failed"})
		return
	}

	log.Info("Teacher logged in")
	c.JSON(http.StatusOK, gin.H{"role": "teacher"})
}

// Logout beendet die aktuelle Sitzung
func (h *AuthHandler) Logout(c *gin.Context) {
	session := sessions.Default(c)
	session.Clear()
	if err := session.Save(); err != nil {
		log.Errorf("Failed to clear session: %v", err)
	}

	c.JSON(http.StatusOK, gin.H{"message": translate(c, "auth.logged_out")})
}
