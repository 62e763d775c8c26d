package config

import (
	"fmt"
	"log"
	"time"

	"imitate-server/shared/utils"

	"github.com/kelseyhightower/envconfig"
)

// Config содержит конфигурацию для Session Service
type Config struct {
	// Настройки сервера
	Port     string `envconfig:"SESSION_SERVER_PORT" default:"8081"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// Настройки API пациентов (patient-api)
	PatientAPIBaseURL string        `envconfig:"PATIENT_API_BASE_URL" required:"true"`
	PatientAPITimeout time.Duration `envconfig:"PATIENT_API_TIMEOUT" default:"60s"`

	// Параметры практической сессии
	SessionSeconds    int           `envconfig:"SESSION_SECONDS" default:"600"`
	DictationSilence  time.Duration `envconfig:"DICTATION_SILENCE" default:"5s"`
	BackgroundTimeout time.Duration `envconfig:"BACKGROUND_CALL_TIMEOUT" default:"60s"`

	// CORS
	AllowedOrigins []string `envconfig:"ALLOWED_ORIGINS" default:"http://localhost:3000"`

	// Настройки JWT (для проверки токена пользователя в middleware)
	// Секретное поле БЕЗ envconfig тега
	JWTSecret string
}

// LoadConfig загружает конфигурацию из переменных окружения и секретов
func LoadConfig() (*Config, error) {
	var cfg Config
	// Загружаем НЕсекретные переменные
	err := envconfig.Process("", &cfg)
	if err != nil {
		return nil, fmt.Errorf("ошибка загрузки конфигурации session-service: %w", err)
	}

	// Загружаем ОБЯЗАТЕЛЬНЫЕ секреты
	var loadErr error
	cfg.JWTSecret, loadErr = utils.ReadSecret("jwt_secret")
	if loadErr != nil {
		return nil, loadErr
	}

	log.Printf("Конфигурация Session Service загружена:")
	log.Printf("  Port: %s", cfg.Port)
	log.Printf("  LogLevel: %s", cfg.LogLevel)
	log.Printf("  Patient API: %s (timeout %v)", cfg.PatientAPIBaseURL, cfg.PatientAPITimeout)
	log.Printf("  Session Seconds: %d", cfg.SessionSeconds)
	log.Printf("  Dictation Silence: %v", cfg.DictationSilence)
	log.Println("  JWT Secret: [ЗАГРУЖЕН]")

	return &cfg, nil
}
