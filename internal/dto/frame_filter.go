// FrameFilters describe user-provided filters to narrow the frame list.
package dto

import "time"

// Verdict filter values.
const (
	VerdictAny    = ""
	VerdictDark   = "dark"
	VerdictBright = "bright"
)

type FrameFilters struct {
	Camera     string
	Verdict    string
	DateAfter  time.Time
	DateBefore time.Time
	TimeAfter  time.Time
	TimeBefore time.Time
	Limit      int
	Offset     int
}
