package sse

import (
	"encoding/json"
	"sync"
	"time"

	"face-attendance-go/internal/core/recognition"

	log "github.com/sirupsen/logrus"
)

// Client repräsentiert einen einzelnen verbundenen SSE-Client
type Client chan []byte

// Hub verwaltet die Menge der aktiven Clients und sendet Broadcasts an sie
type Hub struct {
	// Registrierte Clients
	clients map[Client]bool

	// Eingehende Nachrichten von der Anwendung
	broadcast chan []byte

	// Registrierungsanfragen von Clients
	register chan Client

	// Abmeldeanfragen von Clients
	unregister chan Client

	// Mutex zum Schutz des simultanen Zugriffs auf die Clients-Map
	mu sync.Mutex
}

// RecognitionEventData definiert die Struktur der SSE-Nachricht für einen
// Erkennungsversuch
type RecognitionEventData struct {
	Type        string    `json:"type"` // "recognition" oder "attendance"
	Status      string    `json:"status"`
	StudentID   uint      `json:"student_id,omitempty"`
	StudentName string    `json:"student_name,omitempty"`
	Class       string    `json:"class,omitempty"`
	Count       int       `json:"count,omitempty"`
	SnapshotURL string    `json:"snapshot_url,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// NewHub erstellt eine neue Hub-Instanz
func NewHub() *Hub {
	return &Hub{
		broadcast:  make(chan []byte, 16),
		register:   make(chan Client),
		unregister: make(chan Client),
		clients:    make(map[Client]bool),
	}
}

// Run startet die Verarbeitungsschleife des Hubs.
// Muss in einer eigenen Goroutine laufen.
func (h *Hub) Run() {
	log.Info("SSE hub started")
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			log.Debugf("SSE client registered, total clients: %d", len(h.clients))
		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client)
				log.Debugf("SSE client unregistered, total clients: %d", len(h.clients))
			}
			h.mu.Unlock()
		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				// Nicht blockieren, wenn ein Client-Kanal voll ist
				select {
				case client <- message:
				default:
					log.Warn("SSE client channel full, skipping message")
				}
			}
			h.mu.Unlock()
		}
	}
}

// Register meldet einen neuen Client am Hub an
func (h *Hub) Register(client Client) {
	h.register <- client
}

// Unregister meldet einen Client vom Hub ab
func (h *Hub) Unregister(client Client) {
	h.unregister <- client
}

// Broadcast sendet eine Nachricht an alle registrierten Clients
func (h *Hub) Broadcast(message []byte) {
	select {
	case h.broadcast <- message:
	default:
		log.Warn("SSE broadcast channel full, message dropped")
	}
}

// BroadcastRecognition sendet das Ergebnis eines Erkennungsversuchs an alle Clients
func (h *Hub) BroadcastRecognition(result *recognition.Result, snapshotURL string) {
	data := RecognitionEventData{
		Type:        "recognition",
		Status:      string(result.Status),
		StudentID:   result.StudentID,
		StudentName: result.StudentName,
		SnapshotURL: snapshotURL,
		Timestamp:   time.Now(),
	}
	h.broadcastEvent(data)
}

// BroadcastAttendance sendet eine verbuchte Anwesenheit an alle Clients
func (h *Hub) BroadcastAttendance(status string, studentID uint, studentName, class string, count int) {
	data := RecognitionEventData{
		Type:        "attendance",
		Status:      status,
		StudentID:   studentID,
		StudentName: studentName,
		Class:       class,
		Count:       count,
		Timestamp:   time.Now(),
	}
	h.broadcastEvent(data)
}

func (h *Hub) broadcastEvent(data RecognitionEventData) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		log.Errorf("Failed to marshal SSE event: %v", err)
		return
	}
	h.Broadcast(jsonData)
}
