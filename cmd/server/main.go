package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"face-attendance-go/config"
	"face-attendance-go/internal/api/handlers"
	"face-attendance-go/internal/api/middleware"
	"face-attendance-go/internal/core/attendance"
	"face-attendance-go/internal/core/enrollment"
	"face-attendance-go/internal/core/recognition"
	"face-attendance-go/internal/db"
	"face-attendance-go/internal/db/repository"
	"face-attendance-go/internal/integrations/camera"
	"face-attendance-go/internal/integrations/facerec"
	"face-attendance-go/internal/integrations/mqtt"
	"face-attendance-go/internal/logger"
	"face-attendance-go/internal/server/sse"
	"face-attendance-go/internal/services/cleanup"
	"face-attendance-go/internal/storage"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

const configPath = "/config/config.yaml"

// resultTokenTTL begrenzt die Lebensdauer eines Erkennungsergebnisses
// bis zur Klassenauswahl
const resultTokenTTL = 5 * time.Minute

func main() {
	// Konfiguration laden
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Logger initialisieren
	if err := logger.Init(cfg.Log); err != nil {
		log.Errorf("Failed to initialize logger completely: %v", err)
	}

	// Datenbank initialisieren
	log.Info("Initializing database...")
	if err := db.Initialize(cfg); err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	log.Info("Database initialization complete")

	repo := repository.NewStudentRepository(db.DB)

	// Fotospeicher für Einschreibe- und Erkennungsbilder
	photos, err := storage.NewPhotoStore(cfg.Server.SnapshotDir)
	if err != nil {
		log.Fatalf("Failed to initialize photo store: %v", err)
	}

	// Kamera öffnen; ohne Kamera laufen nur die lesenden Endpunkte
	cameraSource := camera.NewSource(cfg.Camera)
	if err := cameraSource.Open(); err != nil {
		log.Warnf("Failed to open camera device %d: %v. Capture and recognition will be unavailable.", cfg.Camera.DeviceID, err)
	} else {
		defer cameraSource.Close()
	}

	// Externer Detektions-/Embedding-Dienst
	provider := facerec.NewAPIClient(cfg.FaceRec)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if ok, err := provider.Ping(ctx); err != nil || !ok {
		log.Warnf("Face recognition service at %s is not reachable yet: %v", cfg.FaceRec.URL, err)
	}
	cancel()

	// Erkennungspipeline und Dienste aufbauen
	matcher := recognition.NewMatcher(recognition.ParseMetric(cfg.FaceRec.Metric), cfg.FaceRec.DistanceThreshold)
	policy := recognition.ParseMultiFacePolicy(cfg.FaceRec.MultiFacePolicy)
	pipeline := recognition.NewPipeline(cameraSource, provider, matcher, repo, policy)
	results := recognition.NewResultStore(resultTokenTTL)

	enrollmentService := enrollment.NewService(cameraSource, provider, repo, photos, cfg.FaceRec.EmbeddingDim)
	ledger := attendance.NewLedger(repo, time.Duration(cfg.Attendance.CooldownSeconds)*time.Second)

	// SSE-Hub für Live-Ereignisse starten
	hub := sse.NewHub()
	go hub.Run()

	// MQTT-Client starten (no-op, wenn deaktiviert)
	mqttClient := mqtt.NewClient(cfg.MQTT)
	if err := mqttClient.Start(); err != nil {
		log.Warnf("MQTT client failed to start: %v. Continuing without MQTT.", err)
	}
	defer mqttClient.Stop()

	// Bereinigungsdienst für alte Erkennungs-Events
	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	defer cleanupCancel()
	if cfg.Cleanup.RetentionDays > 0 {
		cleanupService := cleanup.NewCleanupService(db.DB, cfg.Cleanup, cfg.Server.SnapshotDir)
		go cleanupService.Start(cleanupCtx)
	} else {
		log.Info("Cleanup service disabled (retention days <= 0)")
	}

	// Router aufbauen
	router := gin.Default()

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowCredentials = false
	router.Use(cors.New(corsConfig))

	store := cookie.NewStore([]byte(cfg.Auth.SessionSecret))
	router.Use(sessions.Sessions("face_attendance_session", store))

	router.Use(middleware.I18n(cfg.I18n))

	// Snapshot-Verzeichnis statisch ausliefern
	router.Static(cfg.Server.SnapshotURL, cfg.Server.SnapshotDir)

	// Handler registrieren
	api := router.Group("/api")
	apiHandler := handlers.NewAPIHandler(cfg, repo, enrollmentService, pipeline, results, ledger, photos, cameraSource, hub, mqttClient)
	apiHandler.RegisterRoutes(api)

	authHandler := handlers.NewAuthHandler(cfg, repo)
	authHandler.RegisterRoutes(api)

	systemHandler := handlers.NewSystemHandler(provider, cameraSource, mqttClient)
	systemHandler.RegisterRoutes(api)

	streamHandler := handlers.NewStreamHandler(cameraSource, hub)
	streamHandler.RegisterRoutes(router)

	// Server starten und auf Beendigungssignal warten
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	go func() {
		log.Infof("Starting server on %s", addr)
		if err := router.Run(addr); err != nil {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down...")
}
