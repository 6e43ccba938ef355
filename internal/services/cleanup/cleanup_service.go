package cleanup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"face-attendance-go/config"
	"face-attendance-go/internal/core/models"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// CleanupService ist verantwortlich für die automatische Bereinigung
// alter Erkennungs-Events und ihrer Snapshot-Dateien
type CleanupService struct {
	db            *gorm.DB
	config        config.CleanupConfig
	snapshotDir   string
	checkInterval time.Duration
}

// NewCleanupService erstellt einen neuen Cleanup-Service
func NewCleanupService(db *gorm.DB, cfg config.CleanupConfig, snapshotDir string) *CleanupService {
	return &CleanupService{
		db:            db,
		config:        cfg,
		snapshotDir:   snapshotDir,
		checkInterval: 24 * time.Hour, // Standardmäßig einmal täglich prüfen
	}
}

// Start startet den Bereinigungsdienst im Hintergrund
func (s *CleanupService) Start(ctx context.Context) {
	log.Info("Cleanup service started")

	// Sofort eine erste Bereinigung durchführen
	if err := s.RunCleanup(ctx); err != nil {
		log.Errorf("Initial cleanup failed: %v", err)
	}

	// Ticker für regelmäßige Bereinigung einrichten
	ticker := time.NewTicker(s.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			log.Info("Running scheduled cleanup")
			if err := s.RunCleanup(ctx); err != nil {
				log.Errorf("Scheduled cleanup failed: %v", err)
			}
		case <-ctx.Done():
			log.Info("Cleanup service stopped")
			return
		}
	}
}

// RunCleanup führt die eigentliche Bereinigung durch
func (s *CleanupService) RunCleanup(ctx context.Context) error {
	if s.config.RetentionDays <= 0 {
		log.Info("Cleanup disabled (retention days <= 0)")
		return nil
	}

	// Berechnungsdatum für Vergleich
	cutoffDate := time.Now().AddDate(0, 0, -s.config.RetentionDays)
	log.Infof("Cleaning up recognition events older than %s", cutoffDate.Format("2006-01-02"))

	// 1. Alte Events in der Datenbank finden
	var oldEvents []models.RecognitionEvent
	if err := s.db.Where("created_at < ?", cutoffDate).Find(&oldEvents).Error; err != nil {
		return fmt.Errorf("failed to find old recognition events: %w", err)
	}

	log.Infof("Found %d recognition events to clean up", len(oldEvents))

	// 2. Events und zugehörige Snapshot-Dateien löschen
	var deleteCount int
	var errorCount int

	for _, event := range oldEvents {
		// Physische Datei löschen
		if event.SnapshotPath != "" {
			filePath := filepath.Join(s.snapshotDir, event.SnapshotPath)
			if err := os.Remove(filePath); err != nil {
				if !os.IsNotExist(err) {
					log.Warnf("Failed to delete snapshot file %s: %v", filePath, err)
					errorCount++
				}
			}
		}

		// Datenbankeintrag löschen
		if err := s.db.Delete(&event).Error; err != nil {
			log.Errorf("Failed to delete recognition event ID %d: %v", event.ID, err)
			errorCount++
			continue
		}

		deleteCount++
	}

	log.Infof("Cleanup completed: deleted %d events, encountered %d errors", deleteCount, errorCount)
	return nil
}
