package services

import (
	"fmt"
	"os"
	"path/filepath"
)

// DefaultOutputPath is where the answer lands when no path is configured.
const DefaultOutputPath = "output.txt"

// FileActions handles the file system side of a run.
type FileActions struct {
	BaseDir string // Relative output paths resolve against this directory
}

func NewFileActions(baseDir string) (*FileActions, error) {
	if baseDir == "" {
		baseDir = "."
	}
	absPath, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("could not determine absolute path for %s: %w", baseDir, err)
	}
	return &FileActions{BaseDir: absPath}, nil
}

func (fa *FileActions) resolve(path string) string {
	if path == "" {
		path = DefaultOutputPath
	}
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(fa.BaseDir, path)
}

// WriteAnswer replaces the file at path with exactly the answer text.
func (fa *FileActions) WriteAnswer(path, answer string) error {
	target := fa.resolve(path)
	if dir := filepath.Dir(target); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory for '%s': %w", target, err)
		}
	}
	if err := os.WriteFile(target, []byte(answer), 0o644); err != nil {
		return fmt.Errorf("failed to write answer to '%s': %w", target, err)
	}
	return nil
}
