package repository

import (
	"dashcam/internal/dto"
	"dashcam/internal/model"
)

// FrameRepository defines the interface for frame catalog operations.
// Lookups that find nothing return (nil, nil).
type FrameRepository interface {
	// Create operations
	Insert(frame *model.Frame) (int64, error)
	BulkInsert(frames []model.Frame) (int, error)

	// Read operations
	GetByID(id int64) (*model.Frame, error)
	GetByFilename(filename string) (*model.Frame, error)
	GetAll(filter *dto.FrameFilters) ([]model.Frame, error)
	GetTotalCount(filter *dto.FrameFilters) (int, error)
	GetCameras() ([]string, error)
	GetStats() (*model.FrameStats, error)

	// Delete operations
	DeleteByFilename(filename string) error
	DeleteAll() error
}
