package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"brickscan/internal/config"
	"brickscan/internal/dto"
	"brickscan/internal/logger"
	"brickscan/internal/model"
	"brickscan/internal/repository"
)

const timestampLayout = "2006-01-02_15-04-05.000000"

// BufferService buffers scans in memory and periodically flushes them to disk.
type BufferService struct {
	scansDir       string
	limit          int
	flushInterval  time.Duration
	scans          []dto.BufferedScan
	mu             sync.Mutex
	logger         *logger.Logger
	scanRepo       repository.ScanRepository
	predictionRepo repository.PredictionRepository
}

// NewBufferService creates a BufferService writing to the configured scan directory.
// Repositories may be nil, in which case only files are written.
func NewBufferService(cfg *config.Config, logger *logger.Logger, scanRepo repository.ScanRepository, predictionRepo repository.PredictionRepository) *BufferService {
	return &BufferService{
		scansDir:       cfg.ImageDirectory,
		limit:          cfg.ScanBufferLimit,
		flushInterval:  time.Duration(cfg.FlushInterval) * time.Second,
		scans:          make([]dto.BufferedScan, 0, cfg.ScanBufferLimit),
		logger:         logger,
		scanRepo:       scanRepo,
		predictionRepo: predictionRepo,
	}
}

// Run flushes on a ticker until ctx is cancelled, then flushes once more.
func (s *BufferService) Run(ctx context.Context) {
	ticker := time.NewTicker(s.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.FlushScans()
			return
		case <-ticker.C:
			s.FlushScans()
		}
	}
}

// AddScan appends a scan to the buffer. It returns false when the buffer is
// full and the scan was dropped.
func (s *BufferService) AddScan(scan dto.BufferedScan) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.scans) >= s.limit {
		s.logger.Warning("Scan buffer full (%d), dropping scan", s.limit)
		return false
	}

	if scan.Timestamp.IsZero() {
		scan.Timestamp = time.Now()
	}
	s.scans = append(s.scans, scan)
	s.logger.Info("Scan buffer size: %d/%d", len(s.scans), s.limit)
	return true
}

// Pending returns the number of scans waiting to be flushed.
func (s *BufferService) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.scans)
}

// Filename builds the file name for a buffered scan from its time and best label.
func Filename(scan dto.BufferedScan) string {
	label := "unknown"
	if len(scan.Predictions) > 0 && scan.Predictions[0].Label != "" {
		label = sanitize(scan.Predictions[0].Label)
	}
	return fmt.Sprintf("%s_%s.jpg", scan.Timestamp.Format(timestampLayout), label)
}

// ParseFilename recovers the scan time and label from a name built by Filename.
// The label is empty for scans stored without a prediction.
func ParseFilename(name string) (time.Time, string, error) {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	if len(base) < len(timestampLayout)+2 || base[len(timestampLayout)] != '_' {
		return time.Time{}, "", fmt.Errorf("unexpected scan filename: %s", name)
	}

	ts, err := time.ParseInLocation(timestampLayout, base[:len(timestampLayout)], time.Local)
	if err != nil {
		return time.Time{}, "", fmt.Errorf("invalid timestamp in %s: %w", name, err)
	}

	label := base[len(timestampLayout)+1:]
	if label == "unknown" {
		label = ""
	}
	return ts, label, nil
}

func sanitize(label string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '.':
			return r
		default:
			return '-'
		}
	}, label)
}

// FlushScans writes buffered scans to disk and the database, then resets the buffer.
func (s *BufferService) FlushScans() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.scans) == 0 {
		return
	}

	if err := os.MkdirAll(s.scansDir, 0755); err != nil {
		s.logger.Error("Error creating directory: %v", err)
		return
	}

	savedCount := 0
	for _, scan := range s.scans {
		filename := Filename(scan)
		fullpath := filepath.Join(s.scansDir, filename)

		if err := os.WriteFile(fullpath, scan.Data, 0644); err != nil {
			s.logger.Error("Error saving scan %s: %v", filename, err)
			continue
		}

		if s.scanRepo != nil {
			if err := s.store(scan, filename, fullpath); err != nil {
				s.logger.Error("Error saving scan %s to database: %v", filename, err)
				continue
			}
		}

		savedCount++
	}

	s.logger.Info("Flushed %d scans to disk", savedCount)
	s.scans = s.scans[:0]
}

func (s *BufferService) store(scan dto.BufferedScan, filename, fullpath string) error {
	scanID, err := s.scanRepo.Insert(&model.Scan{
		Filename:    filename,
		Timestamp:   scan.Timestamp,
		FilePath:    fullpath,
		FileSize:    int64(len(scan.Data)),
		X:           scan.Region.Min.X,
		Y:           scan.Region.Min.Y,
		Width:       scan.Region.Dx(),
		Height:      scan.Region.Dy(),
		Sensitivity: scan.Sensitivity,
	})
	if err != nil {
		return err
	}

	if s.predictionRepo == nil || len(scan.Predictions) == 0 {
		return nil
	}

	predictions := make([]model.Prediction, 0, len(scan.Predictions))
	for i, p := range scan.Predictions {
		predictions = append(predictions, model.Prediction{
			ScanID: scanID,
			Rank:   i,
			Label:  p.Label,
			Score:  p.Score,
		})
	}
	return s.predictionRepo.InsertBatch(predictions)
}
