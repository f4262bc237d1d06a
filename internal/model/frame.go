package model

import "time"

// Frame represents a saved camera frame.
type Frame struct {
	ID        int64     `json:"id"`
	UID       string    `json:"uid"`
	Filename  string    `json:"filename"`
	Camera    string    `json:"camera"`
	Timestamp time.Time `json:"timestamp"`
	FilePath  string    `json:"filepath"`
	FileSize  int64     `json:"filesize"`
	Luminance int       `json:"luminance"`
	Dark      bool      `json:"dark"`
}

// FrameStats summarizes the frame catalog.
type FrameStats struct {
	TotalFrames    int            `json:"totalFrames"`
	DarkFrames     int            `json:"darkFrames"`
	TotalSizeBytes int64          `json:"totalSizeBytes"`
	PerCamera      map[string]int `json:"perCamera"`
}
