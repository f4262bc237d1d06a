package dto

import "time"

// BufferedFrame holds a classified frame before it is flushed to disk.
type BufferedFrame struct {
	UID       string
	Timestamp time.Time
	Camera    string
	Luminance int
	Dark      bool
	Data      []byte
}
