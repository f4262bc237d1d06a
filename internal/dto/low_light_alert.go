package dto

import "time"

// AlertLowLight is the alert type sent to viewers for dark frames.
const AlertLowLight = "low_light"

// LowLightAlert is broadcast to viewers when a frame is classified dark.
type LowLightAlert struct {
	Type      string    `json:"type"`
	Title     string    `json:"title"`
	Camera    string    `json:"camera"`
	UID       string    `json:"uid,omitempty"`
	Luminance int       `json:"luminance"`
	Threshold int       `json:"threshold"`
	Discarded bool      `json:"discarded"`
	Timestamp time.Time `json:"timestamp"`
}
