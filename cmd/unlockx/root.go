package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/saturnino-fabrica-de-software/unlockx/internal/config"
)

// Build metadata, set by -ldflags at compile time.
var (
	Version   = "dev"
	CommitSHA = "unknown"
)

var (
	envFile      string
	deviceFlag   string
	galleryFlag  string
	providerFlag string
)

var rootCmd = &cobra.Command{
	Use:   "unlockx",
	Short: "Face login with continuous camera verification",
	Long: `UnlockX watches a camera and logs a user in as soon as their face matches
one of the identities enrolled in the reference gallery.

Configuration comes from the environment (and an optional .env file);
flags override it.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd.SetVersionTemplate(fmt.Sprintf("unlockx {{.Version}} (%s)\n", CommitSHA))

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file to load before reading the environment")
	rootCmd.PersistentFlags().StringVar(&deviceFlag, "device", "", "camera device, or file:<path> to replay a still image (overrides CAMERA_DEVICE)")
	rootCmd.PersistentFlags().StringVar(&galleryFlag, "gallery", "", "reference gallery directory (overrides GALLERY_DIR)")
	rootCmd.PersistentFlags().StringVar(&providerFlag, "provider", "", "face matcher: deepface, rekognition or mock (overrides FACE_PROVIDER)")
}

func initConfig() {
	// The file is optional.
	_ = godotenv.Load(envFile)
}

// loadConfig reads the environment and applies flag overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if deviceFlag != "" {
		cfg.CameraDevice = deviceFlag
	}
	if galleryFlag != "" {
		cfg.GalleryDir = galleryFlag
	}
	if providerFlag != "" {
		cfg.ProviderType = providerFlag
	}
	return cfg, nil
}

// cliLogger logs to stderr so command output on stdout stays readable.
func cliLogger(cfg *config.Config) *slog.Logger {
	logger := config.NewLoggerTo(os.Stderr, cfg.Environment)
	slog.SetDefault(logger)
	return logger
}
