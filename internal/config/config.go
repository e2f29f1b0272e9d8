package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"brickscan/internal/roi"

	"github.com/joho/godotenv"
)

const (
	// SourceWebcam reads frames from a local capture device.
	SourceWebcam = "webcam"
	// SourceUDP reads JPEG frames pushed over UDP by a network camera.
	SourceUDP = "udp"
)

type Config struct {
	Port           int
	DatabasePath   string
	ImageDirectory string
	LogDirectory   string

	CameraSource    string
	CameraDevice    int
	CameraPort      int
	CaptureInterval int // milliseconds between captured frames
	PreviewEvery    int // broadcast every Nth frame to viewers

	Sensitivity  int
	MinBlobSize  int
	MergeSpacing int
	CropSize     int

	PredictionURL      string
	PredictionMinScore float64
	PredictionTopK     int
	PredictionTimeout  int // seconds

	ProcessingWorkers int
	ScanBufferLimit   int
	FlushInterval     int   // seconds
	MaxUploadSize     int64 // megabytes

	// settings present in the environment that could not be parsed
	parseErr error
}

// Load reads an optional .env file and then the process environment.
// Variables already present in the environment take precedence over the file.
func Load() *Config {
	_ = godotenv.Load(getEnv("BRICKSCAN_ENV_FILE", ".env"))

	sensitivity, sensitivityErr := getEnvAsStrictInt("SENSITIVITY", roi.DefaultSensitivity)

	return &Config{
		Port:           getEnvAsInt("PORT", 8080),
		DatabasePath:   getEnv("DB_PATH", filepath.Join(".", "data", "brickscan.db")),
		ImageDirectory: getEnv("IMAGE_DIR", filepath.Join(".", "scans")),
		LogDirectory:   getEnv("LOG_DIR", filepath.Join(".", "logs")),

		CameraSource:    strings.ToLower(getEnv("CAMERA_SOURCE", SourceWebcam)),
		CameraDevice:    getEnvAsInt("CAMERA_DEVICE", 0),
		CameraPort:      getEnvAsInt("CAMERA_PORT", 9090),
		CaptureInterval: getEnvAsInt("CAPTURE_INTERVAL_MS", 33), // ~30 fps
		PreviewEvery:    getEnvAsInt("PREVIEW_EVERY", 2),

		Sensitivity:  sensitivity,
		MinBlobSize:  getEnvAsInt("MIN_BLOB_SIZE", roi.DefaultMinBlobSize),
		MergeSpacing: getEnvAsInt("MERGE_SPACING", roi.DefaultMergeSpacing),
		CropSize:     getEnvAsInt("CROP_SIZE", 224),

		PredictionURL:      strings.TrimRight(getEnv("PREDICTION_URL", ""), "/"),
		PredictionMinScore: getEnvAsFloat("PREDICTION_MIN_SCORE", 0.1),
		PredictionTopK:     getEnvAsInt("PREDICTION_TOP_K", 5),
		PredictionTimeout:  getEnvAsInt("PREDICTION_TIMEOUT_SEC", 10),

		ProcessingWorkers: getEnvAsInt("PROCESSING_WORKERS", 2),
		ScanBufferLimit:   getEnvAsInt("BUFFER_LIMIT", 20),
		FlushInterval:     getEnvAsInt("FLUSH_INTERVAL", 10),
		MaxUploadSize:     getEnvAsInt64("MAX_UPLOAD_MB", 10),

		parseErr: sensitivityErr,
	}
}

// Validate reports the first setting that cannot be used as is.
func (c *Config) Validate() error {
	if c.parseErr != nil {
		return c.parseErr
	}
	if !roi.ValidSensitivity(c.Sensitivity) {
		return fmt.Errorf("SENSITIVITY must be between %d and %d, got %d", roi.MinSensitivity, roi.MaxSensitivity, c.Sensitivity)
	}
	if c.CameraSource != SourceWebcam && c.CameraSource != SourceUDP {
		return fmt.Errorf("CAMERA_SOURCE must be %q or %q, got %q", SourceWebcam, SourceUDP, c.CameraSource)
	}
	if c.CaptureInterval <= 0 {
		return fmt.Errorf("CAPTURE_INTERVAL_MS must be positive, got %d", c.CaptureInterval)
	}
	if c.CropSize <= 0 {
		return fmt.Errorf("CROP_SIZE must be positive, got %d", c.CropSize)
	}
	if c.ProcessingWorkers <= 0 {
		return fmt.Errorf("PROCESSING_WORKERS must be positive, got %d", c.ProcessingWorkers)
	}
	if c.ScanBufferLimit <= 0 {
		return fmt.Errorf("BUFFER_LIMIT must be positive, got %d", c.ScanBufferLimit)
	}
	if c.FlushInterval <= 0 {
		return fmt.Errorf("FLUSH_INTERVAL must be positive, got %d", c.FlushInterval)
	}
	if c.MaxUploadSize <= 0 {
		return fmt.Errorf("MAX_UPLOAD_MB must be positive, got %d", c.MaxUploadSize)
	}
	if c.PredictionTimeout <= 0 {
		return fmt.Errorf("PREDICTION_TIMEOUT_SEC must be positive, got %d", c.PredictionTimeout)
	}
	if c.PredictionTopK < 0 {
		return fmt.Errorf("PREDICTION_TOP_K must not be negative, got %d", c.PredictionTopK)
	}
	return nil
}

// CaptureEvery is the capture interval as a duration.
func (c *Config) CaptureEvery() time.Duration {
	return time.Duration(c.CaptureInterval) * time.Millisecond
}

// MaxUploadBytes is the upload limit in bytes.
func (c *Config) MaxUploadBytes() int64 {
	return c.MaxUploadSize << 20
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

// getEnvAsStrictInt is getEnvAsInt for settings where a typo must not
// silently become the default.
func getEnvAsStrictInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue, fmt.Errorf("%s must be an integer, got %q", key, value)
	}
	return intValue, nil
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
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
