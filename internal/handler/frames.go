package handler

import (
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"dashcam/internal/config"
	"dashcam/internal/dto"
	"dashcam/internal/logger"
	"dashcam/internal/repository"
	"dashcam/internal/service"
	"dashcam/internal/service/darkness"
	"dashcam/internal/service/storage"
)

const (
	maxUploadSize = 16 << 20
	defaultLimit  = 24
	maxLimit      = 200
)

// UploadFrameHandler classifies a JPEG posted as the request body and
// buffers it for saving unless it is discarded.
func UploadFrameHandler(manager *service.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		camera := storage.SanitizeCamera(r.URL.Query().Get("camera"))

		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxUploadSize))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				http.Error(w, "Frame too large", http.StatusRequestEntityTooLarge)
				return
			}
			http.Error(w, "Unable to read frame", http.StatusBadRequest)
			return
		}
		if len(body) == 0 {
			http.Error(w, "Empty frame", http.StatusBadRequest)
			return
		}

		manager.SendToViewers(body, camera)

		out, err := manager.ProcessFrame(body, camera)
		if err != nil {
			if errors.Is(err, darkness.ErrEmptyFrame) || errors.Is(err, darkness.ErrInvalidInput) {
				http.Error(w, "Unable to decode frame", http.StatusUnprocessableEntity)
				return
			}
			logger.Error("Error processing uploaded frame from %s: %v", camera, err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		writeJSON(w, logger, http.StatusAccepted, out)
	}
}

// ListFramesHandler returns a filtered, paginated list of catalogued frames.
func ListFramesHandler(cfg *config.Config, logger *logger.Logger, frameRepo repository.FrameRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		page := atoiDefault(q.Get("page"), 1)
		limit := min(atoiDefault(q.Get("limit"), defaultLimit), maxLimit)
		if page-1 > math.MaxInt32/limit {
			http.Error(w, "page out of range", http.StatusBadRequest)
			return
		}

		verdict := q.Get("verdict")
		switch verdict {
		case dto.VerdictAny, dto.VerdictDark, dto.VerdictBright:
		default:
			http.Error(w, "verdict must be dark or bright", http.StatusBadRequest)
			return
		}

		filter := &dto.FrameFilters{
			Camera:     q.Get("camera"),
			Verdict:    verdict,
			DateAfter:  parseDate(q.Get("dateAfter")),
			DateBefore: parseDate(q.Get("dateBefore")),
			TimeAfter:  parseTimeOfDay(q.Get("timeAfter")),
			TimeBefore: parseTimeOfDay(q.Get("timeBefore")),
			Limit:      limit,
			Offset:     (page - 1) * limit,
		}

		frames, err := frameRepo.GetAll(filter)
		if err != nil {
			logger.Error("Error querying frames from database: %v", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		totalCount, err := frameRepo.GetTotalCount(filter)
		if err != nil {
			logger.Error("Error counting frames: %v", err)
			totalCount = len(frames)
		}

		data := dto.FramesData{
			Frames:      make([]dto.FrameInfo, 0, len(frames)),
			ImagesDir:   cfg.ImageDirectory,
			Length:      totalCount,
			TotalPages:  (totalCount + limit - 1) / limit,
			CurrentPage: page,
			Limit:       limit,
		}

		if stats, err := frameRepo.GetStats(); err != nil {
			logger.Error("Error reading frame stats: %v", err)
		} else {
			data.Size = stats.TotalSizeBytes
			data.DarkFrames = stats.DarkFrames
		}

		for _, f := range frames {
			data.Frames = append(data.Frames, dto.FrameInfo{
				UID:       f.UID,
				Name:      f.Filename,
				Date:      f.Timestamp,
				TimeOfDay: f.Timestamp,
				Camera:    f.Camera,
				Luminance: f.Luminance,
				Dark:      f.Dark,
			})
		}

		writeJSON(w, logger, http.StatusOK, data)
	}
}

// FrameStatsHandler returns catalog totals.
func FrameStatsHandler(logger *logger.Logger, frameRepo repository.FrameRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := frameRepo.GetStats()
		if err != nil {
			logger.Error("Error reading frame stats: %v", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, logger, http.StatusOK, stats)
	}
}

// ViewFrameHandler serves a single saved frame named by the "image" query
// parameter.
func ViewFrameHandler(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name, ok := frameName(r.URL.Query().Get("image"))
		if !ok {
			http.Error(w, "Image parameter is required", http.StatusBadRequest)
			return
		}
		http.ServeFile(w, r, filepath.Join(cfg.ImageDirectory, name))
	}
}

// DeleteFrameHandler removes a frame from disk and from the catalog.
func DeleteFrameHandler(cfg *config.Config, logger *logger.Logger, frameRepo repository.FrameRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filename, ok := frameName(r.URL.Query().Get("filename"))
		if !ok {
			http.Error(w, "Filename required", http.StatusBadRequest)
			return
		}

		filePath := filepath.Join(cfg.ImageDirectory, filename)
		if err := os.Remove(filePath); err != nil && !os.IsNotExist(err) {
			logger.Error("Failed to delete file %s: %v", filePath, err)
			http.Error(w, "Unable to delete frame", http.StatusInternalServerError)
			return
		}

		if err := frameRepo.DeleteByFilename(filename); err != nil {
			logger.Error("Failed to delete from database: %v", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		logger.Info("Deleted frame: %s", filename)
		writeJSON(w, logger, http.StatusOK, map[string]string{"status": "deleted", "filename": filename})
	}
}

// ClearFramesHandler deletes every saved frame and empties the catalog.
func ClearFramesHandler(cfg *config.Config, logger *logger.Logger, frameRepo repository.FrameRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		files, err := os.ReadDir(cfg.ImageDirectory)
		if err != nil && !os.IsNotExist(err) {
			logger.Error("Error reading frames directory: %v", err)
			http.Error(w, "Unable to read frames directory", http.StatusInternalServerError)
			return
		}

		for _, file := range files {
			if file.IsDir() {
				continue
			}
			if err := os.Remove(filepath.Join(cfg.ImageDirectory, file.Name())); err != nil {
				logger.Error("Error deleting file %s: %v", file.Name(), err)
			}
		}

		if err := frameRepo.DeleteAll(); err != nil {
			logger.Error("Error clearing database: %v", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		logger.Info("All frames cleared from directory: %s", cfg.ImageDirectory)
		w.WriteHeader(http.StatusNoContent)
	}
}

// frameName reduces a user-supplied name to a bare file name.
func frameName(v string) (string, bool) {
	name := filepath.Base(filepath.Clean("/" + v))
	if v == "" || name == "/" || name == "." || name == ".." {
		return "", false
	}
	return name, true
}

func writeJSON(w http.ResponseWriter, logger *logger.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Error encoding JSON response: %v", err)
	}
}

// atoiDefault converts string to int or returns a default when conversion fails or value <= 0.
func atoiDefault(s string, def int) int {
	if v, err := strconv.Atoi(s); err == nil && v > 0 {
		return v
	}
	return def
}

// parseDate parses a date string in the format "2006-01-02" (HTML input format).
func parseDate(v string) time.Time {
	if v == "" {
		return time.Time{}
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return time.Time{}
	}
	return t
}

// parseTimeOfDay parses a time-of-day string in the format "15:04" (HTML input format).
func parseTimeOfDay(v string) time.Time {
	if v == "" {
		return time.Time{}
	}
	t, err := time.Parse("15:04", v)
	if err != nil {
		return time.Time{}
	}
	return t
}
