package repository

import (
	"brickscan/internal/dto"
	"brickscan/internal/model"
)

// ScanRepository defines the interface for scan data operations.
type ScanRepository interface {
	// Create operations
	Insert(scan *model.Scan) (int64, error)

	// Read operations
	GetByID(id int64) (*model.Scan, error)
	GetByFilename(filename string) (*model.Scan, error)
	GetAll(filter *dto.ScanFilters) ([]model.Scan, error)
	GetTotalCount(filter *dto.ScanFilters) (int, error)
	GetTotalSize() (int64, error)

	// Delete operations
	Delete(id int64) error
	DeleteByFilename(filename string) error
	DeleteAll() error
}

// PredictionRepository defines the interface for prediction data operations.
type PredictionRepository interface {
	// Create operations
	Insert(p *model.Prediction) (int64, error)
	InsertBatch(predictions []model.Prediction) error

	// Read operations
	GetByScanID(scanID int64) ([]model.Prediction, error)
	GetAllLabels() ([]string, error)

	// Delete operations
	DeleteByScanID(scanID int64) error
}
