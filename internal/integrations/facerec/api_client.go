package facerec

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"face-attendance-go/config"

	log "github.com/sirupsen/logrus"
)

// Log-Felder für die facerec-Komponente definieren
var logFields = log.Fields{
	"component": "facerec",
}

// APIClient implementiert Provider über den HTTP-Dienst für Gesichtserkennung
// (InsightFace-kompatible API: /info, /detect, /align, /embed)
type APIClient struct {
	config     config.FaceRecConfig
	httpClient *http.Client
}

// apiInfoResponse enthält Informationen über den Dienst
type apiInfoResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Backend string `json:"backend"`
}

// apiDetectResponse enthält die Antwort auf eine Detektionsanfrage
type apiDetectResponse struct {
	Status     string `json:"status"`
	FacesCount int    `json:"faces_count"`
	Faces      []struct {
		Box         []int   `json:"bbox"` // x_min, y_min, x_max, y_max
		Probability float64 `json:"probability"`
	} `json:"faces"`
}

// apiEmbedResponse enthält die Antwort auf eine Embedding-Anfrage
type apiEmbedResponse struct {
	Status    string    `json:"status"`
	Dim       int       `json:"dim"`
	Embedding []float32 `json:"embedding"`
}

// NewAPIClient erstellt einen neuen APIClient
func NewAPIClient(cfg config.FaceRecConfig) *APIClient {
	return &APIClient{
		config: cfg,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		},
	}
}

// Ping prüft, ob der Gesichtserkennungsdienst verfügbar ist
func (c *APIClient) Ping(ctx context.Context) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/info", c.config.URL), nil)
	if err != nil {
		return false, fmt.Errorf("failed to create request: %w", err)
	}
	c.setAuth(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("failed to reach face recognition service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("face recognition service unavailable, status: %d", resp.StatusCode)
	}

	var info apiInfoResponse
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return false, fmt.Errorf("failed to decode response: %w", err)
	}

	return info.Status == "ok", nil
}

// DetectFaces sendet eine Detektionsanfrage an den Dienst
func (c *APIClient) DetectFaces(ctx context.Context, image []byte) ([]Box, error) {
	body, err := c.postMultipart(ctx, "/detect", image, nil)
	if err != nil {
		return nil, err
	}

	var apiResp apiDetectResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, fmt.Errorf("failed to decode detect response: %w", err)
	}
	if apiResp.Status != "ok" {
		return nil, fmt.Errorf("detect API error: %s", apiResp.Status)
	}

	boxes := make([]Box, 0, len(apiResp.Faces))
	for _, face := range apiResp.Faces {
		if len(face.Box) != 4 {
			log.WithFields(logFields).Warnf("Skipping malformed bounding box: %v", face.Box)
			continue
		}
		boxes = append(boxes, Box{
			XMin:        face.Box[0],
			YMin:        face.Box[1],
			XMax:        face.Box[2],
			YMax:        face.Box[3],
			Probability: face.Probability,
		})
	}

	log.WithFields(logFields).Debugf("Detected %d faces", len(boxes))
	return boxes, nil
}

// AlignFace lässt ein Gesicht anhand seiner Box vom Dienst zuschneiden und normalisieren
func (c *APIClient) AlignFace(ctx context.Context, image []byte, box Box) ([]byte, error) {
	boxJSON, err := json.Marshal(box)
	if err != nil {
		return nil, fmt.Errorf("failed to encode bounding box: %w", err)
	}

	fields := map[string]string{"box": string(boxJSON)}
	aligned, err := c.postMultipart(ctx, "/align", image, fields)
	if err != nil {
		return nil, err
	}
	if len(aligned) == 0 {
		return nil, ErrNoFaceExtractable
	}
	return aligned, nil
}

// ExtractEmbedding berechnet den Merkmalsvektor eines normalisierten Gesichts
func (c *APIClient) ExtractEmbedding(ctx context.Context, face []byte) ([]float32, error) {
	body, err := c.postMultipart(ctx, "/embed", face, nil)
	if err != nil {
		return nil, err
	}

	var apiResp apiEmbedResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, fmt.Errorf("failed to decode embed response: %w", err)
	}
	if apiResp.Status != "ok" || len(apiResp.Embedding) == 0 {
		return nil, ErrNoFaceExtractable
	}

	if c.config.EmbeddingDim > 0 && apiResp.Dim != c.config.EmbeddingDim {
		return nil, fmt.Errorf("unexpected embedding dimension: got %d, want %d", apiResp.Dim, c.config.EmbeddingDim)
	}

	return apiResp.Embedding, nil
}

// postMultipart sendet ein Bild als Multipart-Formular an den angegebenen Endpunkt
func (c *APIClient) postMultipart(ctx context.Context, endpoint string, image []byte, fields map[string]string) ([]byte, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("file", "image.jpg")
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, bytes.NewReader(image)); err != nil {
		return nil, fmt.Errorf("failed to copy image data: %w", err)
	}

	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			return nil, fmt.Errorf("failed to write field %s: %w", key, err)
		}
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.URL+endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	c.setAuth(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request to %s failed: %w", endpoint, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	// 422: Modell konnte aus dem Bild kein Gesicht verarbeiten
	if resp.StatusCode == http.StatusUnprocessableEntity {
		return nil, ErrNoFaceExtractable
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status from %s: %d, body: %s", endpoint, resp.StatusCode, string(respBody))
	}

	return respBody, nil
}

// setAuth setzt den API-Key-Header, falls konfiguriert
func (c *APIClient) setAuth(req *http.Request) {
	if c.config.APIKey != "" {
		req.Header.Set("x-api-key", c.config.APIKey)
	}
}
