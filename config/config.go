package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Config repräsentiert die Hauptkonfiguration der Anwendung
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Log        LogConfig        `mapstructure:"log"`
	DB         DBConfig         `mapstructure:"db"`
	Camera     CameraConfig     `mapstructure:"camera"`
	FaceRec    FaceRecConfig    `mapstructure:"facerec"`
	Attendance AttendanceConfig `mapstructure:"attendance"`
	Auth       AuthConfig       `mapstructure:"auth"`
	MQTT       MQTTConfig       `mapstructure:"mqtt"`
	Cleanup    CleanupConfig    `mapstructure:"cleanup"`
	I18n       I18nConfig       `mapstructure:"i18n"`
}

// ServerConfig enthält Server-bezogene Einstellungen
type ServerConfig struct {
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	DataDir     string `mapstructure:"data_dir"`
	SnapshotDir string `mapstructure:"snapshot_dir"`
	SnapshotURL string `mapstructure:"snapshot_url"`
}

// LogConfig enthält Log-Einstellungen
type LogConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

// DBConfig enthält Datenbankeinstellungen
type DBConfig struct {
	File string `mapstructure:"file"` // SQLite-Datei
}

// CameraConfig enthält Einstellungen für die Kameraquelle
type CameraConfig struct {
	DeviceID              int `mapstructure:"device_id"`
	FrameWidth            int `mapstructure:"frame_width"`
	FrameHeight           int `mapstructure:"frame_height"`
	CaptureTimeoutSeconds int `mapstructure:"capture_timeout_seconds"`
}

// FaceRecConfig enthält Einstellungen für den Gesichtserkennungsdienst
// und den Abgleich von Embeddings gegen die eingeschriebenen Studenten
type FaceRecConfig struct {
	URL               string  `mapstructure:"url"`
	APIKey            string  `mapstructure:"api_key"`
	TimeoutSeconds    int     `mapstructure:"timeout_seconds"`
	EmbeddingDim      int     `mapstructure:"embedding_dim"`
	Metric            string  `mapstructure:"metric"`             // "euclidean" oder "cosine"
	DistanceThreshold float64 `mapstructure:"distance_threshold"` // maximale Distanz für eine Übereinstimmung
	MultiFacePolicy   string  `mapstructure:"multi_face_policy"`  // "first_accepted" oder "reject_ambiguous"
}

// AttendanceConfig enthält Einstellungen für die Anwesenheitsbuchung
type AttendanceConfig struct {
	CooldownSeconds int `mapstructure:"cooldown_seconds"` // 0 = wiederholte Buchungen erlaubt
}

// AuthConfig enthält Einstellungen für Login und Sessions
type AuthConfig struct {
	SessionSecret       string `mapstructure:"session_secret"`
	TeacherPasswordHash string `mapstructure:"teacher_password_hash"` // bcrypt-Hash
}

// MQTTConfig enthält die Konfiguration für den MQTT-Client
type MQTTConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Broker   string `mapstructure:"broker"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	ClientID string `mapstructure:"client_id"`
	Topic    string `mapstructure:"topic"` // Basis-Topic für Anwesenheits-Events
}

// CleanupConfig enthält Bereinigungseinstellungen für Erkennungs-Events
type CleanupConfig struct {
	RetentionDays int `mapstructure:"retention_days"`
}

// I18nConfig enthält Einstellungen für die Lokalisierung
type I18nConfig struct {
	DefaultLanguage string `mapstructure:"default_language"`
	LocalesDir      string `mapstructure:"locales_dir"`
}

// Load lädt die Konfiguration aus Datei, Umgebungsvariablen und Standardwerten
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Standardwerte festlegen
	setDefaults(v)

	// Konfigurationsdatei laden, wenn vorhanden
	if configPath != "" {
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			log.Warnf("Config file %s does not exist, using defaults", configPath)
		} else {
			v.SetConfigFile(configPath)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
			log.Infof("Config loaded from %s", configPath)
		}
	}

	// Umgebungsvariablen überlagern die Konfiguration
	v.AutomaticEnv()
	v.SetEnvPrefix("FACE_ATTEND")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Konfiguration in Struct umwandeln
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Sicherstellen, dass erforderliche Verzeichnisse existieren
	if err := ensureDirectories(&cfg); err != nil {
		return nil, fmt.Errorf("failed to create required directories: %w", err)
	}

	return &cfg, nil
}

// setDefaults legt Standardwerte für die Konfiguration fest
func setDefaults(v *viper.Viper) {
	// Server-Standardwerte
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.data_dir", "/data")
	v.SetDefault("server.snapshot_dir", "/data/snapshots")
	v.SetDefault("server.snapshot_url", "/snapshots")

	// Log-Standardwerte
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "/data/logs/face-attendance.log")

	// DB-Standardwerte
	v.SetDefault("db.file", "/data/face-attendance.db")

	// Kamera-Standardwerte
	v.SetDefault("camera.device_id", 0)
	v.SetDefault("camera.frame_width", 1280)
	v.SetDefault("camera.frame_height", 720)
	v.SetDefault("camera.capture_timeout_seconds", 5)

	// Gesichtserkennungs-Standardwerte
	v.SetDefault("facerec.url", "http://localhost:18081")
	v.SetDefault("facerec.timeout_seconds", 30)
	v.SetDefault("facerec.embedding_dim", 128)
	v.SetDefault("facerec.metric", "euclidean")
	v.SetDefault("facerec.distance_threshold", 0.6)
	v.SetDefault("facerec.multi_face_policy", "first_accepted")

	// Anwesenheits-Standardwerte
	v.SetDefault("attendance.cooldown_seconds", 0)

	// Auth-Standardwerte
	v.SetDefault("auth.session_secret", "change-me")

	// MQTT-Standardwerte
	v.SetDefault("mqtt.enabled", false)
	v.SetDefault("mqtt.broker", "localhost")
	v.SetDefault("mqtt.port", 1883)
	v.SetDefault("mqtt.client_id", "face-attendance-go")
	v.SetDefault("mqtt.topic", "attendance/events")

	// Cleanup-Standardwerte
	v.SetDefault("cleanup.retention_days", 30)

	// i18n-Standardwerte
	v.SetDefault("i18n.default_language", "en")
	v.SetDefault("i18n.locales_dir", "./web/locales")
}

// ensureDirectories stellt sicher, dass alle erforderlichen Verzeichnisse existieren
func ensureDirectories(cfg *Config) error {
	// Daten-Basisverzeichnis
	if cfg.Server.DataDir != "" {
		if err := os.MkdirAll(cfg.Server.DataDir, 0755); err != nil {
			return fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	// Snapshot-Verzeichnis (Einschreibefotos und Erkennungsbilder)
	if err := os.MkdirAll(cfg.Server.SnapshotDir, 0755); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	// Log-Verzeichnis
	logDir := filepath.Dir(cfg.Log.File)
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	// Datenbank-Verzeichnis (für SQLite)
	if cfg.DB.File != "" {
		dbDir := filepath.Dir(cfg.DB.File)
		if err := os.MkdirAll(dbDir, 0755); err != nil {
			return fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	return nil
}
