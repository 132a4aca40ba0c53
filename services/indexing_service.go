package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// FileIndexingService keeps the store in step with a PDF on disk.
type FileIndexingService struct {
	ragService RAGService
	log        *logrus.Entry
}

// NewFileIndexingService creates a new indexing service.
func NewFileIndexingService(ragService RAGService) *FileIndexingService {
	return &FileIndexingService{
		ragService: ragService,
		log:        logrus.WithField("component", "watcher"),
	}
}

// WatchFile re-runs a full ingestion every time the PDF's content changes.
// It blocks until ctx is cancelled. The directory is watched rather than the
// file so editors that replace the file through a rename are still seen.
func (s *FileIndexingService) WatchFile(ctx context.Context, pdfPath string) error {
	absPath, err := filepath.Abs(pdfPath)
	if err != nil {
		return fmt.Errorf("could not resolve %s: %w", pdfPath, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(absPath)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(absPath), err)
	}
	s.log.Infof("Watching %s", absPath)

	// Content hash of the last ingested version. Many editors emit several
	// events for one save; unchanged content is skipped.
	lastHash, _ := calculateFileHash(absPath)

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != absPath {
				continue
			}
			s.log.Debugf("Event: %s", event)

			switch {
			case event.Has(fsnotify.Write) || event.Has(fsnotify.Create):
				hash, err := calculateFileHash(absPath)
				if err != nil {
					s.log.Warnf("Could not hash file %s: %v", absPath, err)
					continue
				}
				if hash == lastHash {
					continue
				}
				s.log.Infof("File modified/created: %s. Re-indexing...", absPath)
				resp, err := s.ragService.Ingest(ctx, absPath)
				if err != nil {
					s.log.Errorf("Failed to re-index %s: %v", absPath, err)
					continue
				}
				lastHash = hash
				s.log.Infof("Re-indexed %d chunks from %d pages", resp.Chunks, resp.Pages)
			case event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename):
				s.log.Warnf("File removed/renamed: %s. Keeping the current index.", absPath)
				lastHash = ""
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.log.Errorf("Watcher error: %v", err)

		case <-ctx.Done():
			s.log.Info("Context cancelled, shutting down watcher.")
			return nil
		}
	}
}

func calculateFileHash(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()
	hash := sha256.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", err
	}
	return hex.EncodeToString(hash.Sum(nil)), nil
}
