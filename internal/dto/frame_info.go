package dto

import (
	"encoding/json"
	"time"
)

// FrameInfo is the listing view of a saved frame.
type FrameInfo struct {
	UID       string    `json:"uid"`
	Name      string    `json:"name"`
	Date      time.Time `json:"date"`
	TimeOfDay time.Time `json:"timeOfDay"`
	Camera    string    `json:"camera"`
	Luminance int       `json:"luminance"`
	Dark      bool      `json:"dark"`
}

// MarshalJSON formats date and time-of-day the way the gallery renders them.
func (f FrameInfo) MarshalJSON() ([]byte, error) {
	type Alias FrameInfo
	return json.Marshal(&struct {
		Date      string `json:"date"`
		TimeOfDay string `json:"timeOfDay"`
		Alias
	}{
		Date:      f.Date.Format("02-01-2006"),
		TimeOfDay: f.TimeOfDay.Format("15:04:05"),
		Alias:     (Alias)(f),
	})
}
