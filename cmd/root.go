package cmd

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"medialib/config"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "medialib",
	Short: "Popcorn Hour NMJ notifier and torrent provider tools",
	Long: `medialib tells a Popcorn Hour media box to rescan its NMJ library and
searches the configured torrent providers, either from the command line or
through a small HTTP API.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "settings file (default $MEDIALIB_CONFIG or cache/settings.json)")
}

func resolveConfigPath() string {
	if p := strings.TrimSpace(configPath); p != "" {
		return p
	}
	if p := strings.TrimSpace(os.Getenv("MEDIALIB_CONFIG")); p != "" {
		return p
	}
	return filepath.Join("cache", "settings.json")
}

// loadSettings loads the settings file, creating it with defaults if missing.
func loadSettings() (*config.Manager, config.Settings, error) {
	mgr := config.NewManager(resolveConfigPath())
	settings, err := mgr.Load()
	if err != nil {
		return nil, config.Settings{}, fmt.Errorf("load settings: %w", err)
	}
	return mgr, settings, nil
}

// setupLogging sends the standard logger to the console and a rotating file.
func setupLogging(cfg config.LogConfig) {
	if cfg.File == "" {
		return
	}
	logDir := filepath.Dir(cfg.File)
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		log.Printf("Warning: could not create log directory %s: %v", logDir, err)
		return
	}
	fileWriter := &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
	}
	log.SetOutput(io.MultiWriter(os.Stdout, fileWriter))
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Printf("Logging to file: %s", cfg.File)
}
