package handlers

import (
	"context"
	"net/http"
	"time"

	"face-attendance-go/internal/integrations/facerec"
	"face-attendance-go/internal/utils"

	"github.com/gin-gonic/gin"
)

// SystemHandler behandelt den Status-Endpunkt
type SystemHandler struct {
	provider facerec.Provider
	camera   interface{ IsOpen() bool }
	mqtt     interface{ IsConnected() bool }
}

// NewSystemHandler erstellt einen neuen System-Handler
func NewSystemHandler(provider facerec.Provider, cameraSource interface{ IsOpen() bool }, mqttClient interface{ IsConnected() bool }) *SystemHandler {
	return &SystemHandler{
		provider: provider,
		camera:   cameraSource,
		mqtt:     mqttClient,
	}
}

// RegisterRoutes registriert die System-Routen
func (h *SystemHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/status", h.GetStatus)
}

// GetStatus gibt den Zustand der Dienste und Systemstatistiken zurück
func (h *SystemHandler) GetStatus(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	facerecOK, _ := h.provider.Ping(ctx)

	status := gin.H{
		"facerec_available": facerecOK,
		"camera_open":       h.camera != nil && h.camera.IsOpen(),
		"mqtt_connected":    h.mqtt != nil && h.mqtt.IsConnected(),
		"system":            utils.GetSystemStats(),
	}

	c.JSON(http.StatusOK, status)
}
