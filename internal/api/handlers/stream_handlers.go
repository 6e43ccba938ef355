package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"face-attendance-go/internal/integrations/camera"
	"face-attendance-go/internal/server/sse"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// StreamHandler behandelt die Live-Streams: das MJPEG-Kamerabild und
// die SSE-Ereignisse für Erkennung und Anwesenheit
type StreamHandler struct {
	camera *camera.Source
	hub    *sse.Hub
}

// NewStreamHandler erstellt einen neuen Stream-Handler
func NewStreamHandler(cameraSource *camera.Source, hub *sse.Hub) *StreamHandler {
	return &StreamHandler{camera: cameraSource, hub: hub}
}

// RegisterRoutes registriert die Stream-Routen
func (h *StreamHandler) RegisterRoutes(router *gin.Engine) {
	router.GET("/video/feed", h.VideoFeed)
	router.GET("/events", h.Events)
}

// VideoFeed liefert das Kamerabild als multipart/x-mixed-replace MJPEG-Stream.
// Die Kamera wird dabei exklusiv von diesem Stream gelesen; ein zweiter
// Abonnent erhält die Frames zeitversetzt, da die Quelle serialisiert ist.
func (h *StreamHandler) VideoFeed(c *gin.Context) {
	if !h.camera.IsOpen() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": translate(c, "camera.timeout")})
		return
	}

	c.Writer.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.WriteHeader(http.StatusOK)

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		log.Warn("Video feed client does not support streaming")
		return
	}

	err := h.camera.Stream(c.Request.Context(), func(frame []byte) error {
		if _, err := fmt.Fprintf(c.Writer, "--frame\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", len(frame)); err != nil {
			return err
		}
		if _, err := c.Writer.Write(frame); err != nil {
			return err
		}
		if _, err := io.WriteString(c.Writer, "\r\n"); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	})

	if err != nil && !errors.Is(err, camera.ErrNotOpen) {
		log.Debugf("Video feed ended: %v", err)
	}
}

// Events liefert Erkennungs- und Anwesenheitsereignisse als SSE-Stream
func (h *StreamHandler) Events(c *gin.Context) {
	client := make(sse.Client, 8)
	h.hub.Register(client)
	defer h.hub.Unregister(client)

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	c.Stream(func(w io.Writer) bool {
		select {
		case message, ok := <-client:
			if !ok {
				return false
			}
			c.SSEvent("message", string(message))
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}
