package track

// Detection is one raw observation from the acquisition layer: the channel
// (antenna) that produced it and a 2D position estimate in metres. The
// engine consumes detections one at a time; it never fuses simultaneous
// detections into a single estimate.
type Detection struct {
	Channel  uint8 `json:"channel"`
	Position Vec2  `json:"position"`
}
