package middleware

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"face-attendance-go/config"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
)

// Translator hält die Übersetzungsfunktionalität
type Translator struct {
	bundle       *i18n.Bundle
	defaultLang  string
	translations map[string]map[string]interface{}
}

// NewTranslator erstellt einen neuen Übersetzer und lädt alle
// JSON-Übersetzungsdateien aus dem Locales-Verzeichnis
func NewTranslator(cfg config.I18nConfig) (*Translator, error) {
	if cfg.DefaultLanguage == "" {
		cfg.DefaultLanguage = "en"
	}
	if cfg.LocalesDir == "" {
		cfg.LocalesDir = "./web/locales"
	}

	bundle := i18n.NewBundle(language.MustParse(cfg.DefaultLanguage))
	bundle.RegisterUnmarshalFunc("json", json.Unmarshal)

	t := &Translator{
		bundle:       bundle,
		defaultLang:  cfg.DefaultLanguage,
		translations: make(map[string]map[string]interface{}),
	}

	localeFiles, err := os.ReadDir(cfg.LocalesDir)
	if err != nil {
		return nil, err
	}

	for _, file := range localeFiles {
		if file.IsDir() || !strings.HasSuffix(file.Name(), ".json") {
			continue
		}

		// Sprachcode aus dem Dateinamen extrahieren (z.B. "de.json" -> "de")
		langCode := strings.TrimSuffix(file.Name(), filepath.Ext(file.Name()))

		filePath := filepath.Join(cfg.LocalesDir, file.Name())
		if _, err := bundle.LoadMessageFile(filePath); err != nil {
			return nil, err
		}

		// Übersetzungsdatei zusätzlich als flache Map laden für direkten Zugriff
		jsonData, err := os.ReadFile(filePath)
		if err != nil {
			return nil, err
		}

		var translations map[string]interface{}
		if err := json.Unmarshal(jsonData, &translations); err != nil {
			return nil, err
		}

		t.translations[langCode] = flattenMap(translations, "")
	}

	return t, nil
}

// HasLanguage prüft, ob Übersetzungen für die Sprache geladen wurden
func (t *Translator) HasLanguage(lang string) bool {
	_, ok := t.translations[lang]
	return ok
}

// Translate liefert die Übersetzung für einen Schlüssel, mit Fallback
// auf die Standardsprache und zuletzt auf den Schlüssel selbst
func (t *Translator) Translate(lang, key string) string {
	if m := t.translations[lang]; m != nil {
		if val, ok := m[key]; ok {
			if s, ok := val.(string); ok {
				return s
			}
		}
	}

	if m := t.translations[t.defaultLang]; m != nil {
		if val, ok := m[key]; ok {
			if s, ok := val.(string); ok {
				return s
			}
		}
	}

	return key
}

// I18n erstellt eine Middleware für die Internationalisierung
func I18n(cfg config.I18nConfig) gin.HandlerFunc {
	translator, err := NewTranslator(cfg)
	if err != nil {
		// Ohne Übersetzungen läuft die API mit den rohen Schlüsseln weiter
		return func(c *gin.Context) {
			c.Next()
		}
	}

	return func(c *gin.Context) {
		// Sprache aus dem Query-Parameter oder der Session abrufen
		session := sessions.Default(c)
		lang := c.Query("lang")

		if lang != "" && translator.HasLanguage(lang) {
			session.Set("language", lang)
			session.Save()
		} else {
			if sessionLang, ok := session.Get("language").(string); ok {
				lang = sessionLang
			}
		}

		// Fallback auf die Standardsprache
		if !translator.HasLanguage(lang) {
			lang = translator.defaultLang
		}

		c.Set("language", lang)
		c.Set("translator", translator)
		c.Set("t", func(key string, args ...interface{}) string {
			return translator.Translate(lang, key)
		})

		c.Next()
	}
}

// Flache Map erstellen für einfacheren Zugriff (z.B. "attendance.recorded" statt attendance["recorded"])
func flattenMap(input map[string]interface{}, prefix string) map[string]interface{} {
	result := make(map[string]interface{})

	for k, v := range input {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}

		switch child := v.(type) {
		case map[string]interface{}:
			for childKey, childValue := range flattenMap(child, key) {
				result[childKey] = childValue
			}
		default:
			result[key] = v
		}
	}

	return result
}
