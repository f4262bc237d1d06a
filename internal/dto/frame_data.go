// FramesData is a paginated response payload for the frame catalog.
package dto

type FramesData struct {
	Frames      []FrameInfo `json:"frames"`
	ImagesDir   string      `json:"imagesDir"`
	Size        int64       `json:"size"`
	DarkFrames  int         `json:"darkFrames"`
	Length      int         `json:"length"`
	TotalPages  int         `json:"totalPages"`
	CurrentPage int         `json:"currentPage"`
	Limit       int         `json:"pageSize"`
}
