package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	ClassifierURL          string
	CameraDevice           string
	DetectorModel          string
	DetectorModelPath      string
	DetectorConfigPath     string
	MinDetectionConfidence float64
	JPEGQuality            int
	ViewerPort             int  // 0 disables the viewer/metrics HTTP server
	ShowWindow             bool // local preview window
	LogDirectory           string
	LogLevel               string
}

// Load reads an optional .env file and then the process environment.
func Load() *Config {
	// A missing .env is normal; the environment alone is enough.
	_ = godotenv.Load()

	return &Config{
		ClassifierURL:          getEnv("CLASSIFIER_URL", "ws://localhost:8000/ws/emotion"),
		CameraDevice:           getEnv("CAMERA_DEVICE", "0"),
		DetectorModel:          getEnv("DETECTOR_MODEL", "short"),
		DetectorModelPath:      getEnv("DETECTOR_MODEL_PATH", filepath.Join(".", "models", "res10_300x300_ssd_iter_140000.caffemodel")),
		DetectorConfigPath:     getEnv("DETECTOR_CONFIG_PATH", filepath.Join(".", "models", "deploy.prototxt")),
		MinDetectionConfidence: getEnvAsFloat("MIN_DETECTION_CONFIDENCE", 0.5),
		JPEGQuality:            getEnvAsInt("JPEG_QUALITY", 92),
		ViewerPort:             getEnvAsInt("VIEWER_PORT", 8080),
		ShowWindow:             getEnvAsBool("SHOW_WINDOW", true),
		LogDirectory:           getEnv("LOG_DIR", filepath.Join(".", "logs")),
		LogLevel:               strings.ToLower(getEnv("LOG_LEVEL", "info")),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
