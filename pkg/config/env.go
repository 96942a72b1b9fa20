package config

import (
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// LoadEnvFile loads a .env file from the working directory, or from the
// executable's directory when the working directory has none. Variables
// already present in the environment win.
func LoadEnvFile() {
	for _, dir := range envDirs() {
		envFile := filepath.Join(dir, ".env")
		if _, err := os.Stat(envFile); err != nil {
			continue
		}
		if err := godotenv.Load(envFile); err != nil {
			slog.Error("Failed to load .env file", "path", envFile, "err", err)
			return
		}
		slog.Info("Configuration loaded from .env file", "path", envFile)
		return
	}
	slog.Debug("No .env file found")
}

func envDirs() []string {
	var dirs []string
	if cwd, err := os.Getwd(); err == nil {
		dirs = append(dirs, cwd)
	}
	if exe, err := os.Executable(); err == nil {
		dirs = append(dirs, filepath.Dir(exe))
	}
	return dirs
}
