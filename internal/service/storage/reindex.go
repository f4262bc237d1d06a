package storage

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"dashcam/internal/model"
	"dashcam/internal/service/darkness"
)

// ClassifyFunc classifies an encoded frame.
type ClassifyFunc func(data []byte) (darkness.Verdict, error)

// ScanResult lists catalog rows rebuilt from an image directory.
type ScanResult struct {
	Frames  []model.Frame
	Skipped []string
}

// ScanFrames rebuilds catalog rows for every frame file in dir. Timestamp and
// camera come from the filename; luminance and verdict are recomputed with
// classify when it is non-nil. Files that do not parse or classify are
// reported in Skipped.
func ScanFrames(dir string, classify ClassifyFunc) (*ScanResult, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read images directory: %w", err)
	}

	res := &ScanResult{}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != frameExt {
			continue
		}

		ts, camera, err := ParseFrameFilename(entry.Name())
		if err != nil {
			res.Skipped = append(res.Skipped, entry.Name())
			continue
		}

		info, err := entry.Info()
		if err != nil {
			res.Skipped = append(res.Skipped, entry.Name())
			continue
		}

		path := filepath.Join(dir, entry.Name())
		frame := model.Frame{
			UID:       uuid.NewString(),
			Filename:  entry.Name(),
			Camera:    camera,
			Timestamp: ts,
			FilePath:  path,
			FileSize:  info.Size(),
		}

		if classify != nil {
			data, err := os.ReadFile(path)
			if err != nil {
				res.Skipped = append(res.Skipped, entry.Name())
				continue
			}
			verdict, err := classify(data)
			if err != nil {
				res.Skipped = append(res.Skipped, entry.Name())
				continue
			}
			frame.Luminance = verdict.Average
			frame.Dark = verdict.Dark
		}

		res.Frames = append(res.Frames, frame)
	}
	return res, nil
}
