package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// Server
	Port        int    `envconfig:"PORT" default:"3000"`
	Environment string `envconfig:"ENV" default:"development"`

	// Database (optional, enables the verification audit log)
	DatabaseURL    string        `envconfig:"DATABASE_URL"`
	// AuditRetention is how long audit entries are kept; 0 keeps them forever.
	AuditRetention time.Duration `envconfig:"AUDIT_RETENTION" default:"2160h"`

	// Login webhook (optional)
	WebhookURL    string `envconfig:"WEBHOOK_URL"`
	WebhookSecret string `envconfig:"WEBHOOK_SECRET"`

	// Gallery
	GalleryDir string `envconfig:"GALLERY_DIR" default:"reference"`

	// Camera
	CameraDevice string `envconfig:"CAMERA_DEVICE" default:"/dev/video0"`
	CameraWidth  int    `envconfig:"CAMERA_WIDTH" default:"1280"`
	CameraHeight int    `envconfig:"CAMERA_HEIGHT" default:"720"`
	CameraFPS    int    `envconfig:"CAMERA_FPS" default:"30"`
	FFmpegPath   string `envconfig:"FFMPEG_PATH" default:"ffmpeg"`
	PreviewWidth int    `envconfig:"PREVIEW_WIDTH" default:"640"`

	// Verification loop
	DisplayInterval  time.Duration `envconfig:"DISPLAY_INTERVAL" default:"30ms"`
	ThrottleInterval time.Duration `envconfig:"THROTTLE_INTERVAL" default:"1s"`
	TeardownTimeout  time.Duration `envconfig:"TEARDOWN_TIMEOUT" default:"10s"`
	MatcherTimeout   time.Duration `envconfig:"MATCHER_TIMEOUT" default:"30s"`

	// Face matcher
	ProviderType   string  `envconfig:"FACE_PROVIDER" default:"deepface"`
	FaceModel      string  `envconfig:"FACE_MODEL" default:"VGG-Face"`
	FaceDetector   string  `envconfig:"FACE_DETECTOR" default:"opencv"`
	MatchThreshold float64 `envconfig:"MATCH_THRESHOLD" default:"0"`
	DeepFaceURL    string  `envconfig:"DEEPFACE_URL" default:"http://localhost:5005"`
	AWSRegion      string  `envconfig:"AWS_REGION" default:"us-east-1"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.CameraWidth <= 0 || c.CameraHeight <= 0 {
		return fmt.Errorf("camera resolution must be positive, got %dx%d", c.CameraWidth, c.CameraHeight)
	}
	if c.CameraFPS <= 0 {
		return fmt.Errorf("camera fps must be positive, got %d", c.CameraFPS)
	}
	if c.ThrottleInterval <= 0 {
		return fmt.Errorf("throttle interval must be positive")
	}
	if c.DisplayInterval <= 0 {
		return fmt.Errorf("display interval must be positive")
	}
	if c.AuditRetention < 0 {
		return fmt.Errorf("audit retention must not be negative")
	}
	if c.MatchThreshold < 0 || c.MatchThreshold > 1 {
		return fmt.Errorf("match threshold must be between 0 and 1, got %v", c.MatchThreshold)
	}
	return nil
}

// FrameInterval is the time between two frames at the configured rate.
func (c *Config) FrameInterval() time.Duration {
	return time.Second / time.Duration(c.CameraFPS)
}

func (c *Config) AuditEnabled() bool {
	return c.DatabaseURL != ""
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
