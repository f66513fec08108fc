// Package ld2450 decodes the data-frame protocol of LD2450-family radar
// sensors. A data frame carries up to three target slots; empty slots are
// all zeroes. Coordinates use a sign-magnitude encoding: the high bit set
// means positive, clear means negative, with the magnitude in the low 15
// bits. Units on the wire are millimetres (coordinates), cm/s (speed).
package ld2450

import (
	"errors"
	"fmt"

	"github.com/hexar-systems/hexar/internal/track"
	"github.com/hexar-systems/hexar/internal/units"
)

// Data frame layout: header, three 8-byte target slots, tail.
var (
	frameHeader = []byte{0xAA, 0xFF, 0x03, 0x00}
	frameTail   = []byte{0x55, 0xCC}
)

const (
	targetSlots    = 3
	targetSlotSize = 8
	payloadSize    = targetSlots * targetSlotSize
	// FrameSize is the full length of one data frame on the wire.
	FrameSize = len("\xAA\xFF\x03\x00") + payloadSize + len("\x55\xCC")
)

var (
	// ErrShortFrame means the buffer does not hold a full frame.
	ErrShortFrame = errors.New("buffer too short for data frame")
	// ErrBadHeader means the buffer does not start with the data-frame header.
	ErrBadHeader = errors.New("invalid data frame header")
	// ErrBadTail means the frame terminator bytes are wrong.
	ErrBadTail = errors.New("invalid data frame tail")
)

// RawTarget is one decoded target slot in sensor units.
type RawTarget struct {
	XMillimetres int    // Lateral offset, positive right
	YMillimetres int    // Distance from sensor, positive away
	SpeedCmS     int    // Radial speed, positive away
	Resolution   uint16 // Distance resolution in millimetres
}

// SpeedMPS returns the radial speed in m/s.
func (t RawTarget) SpeedMPS() float64 {
	return units.CentimetresPerSecondToMPS(t.SpeedCmS)
}

// Frame is one decoded data frame. Only occupied target slots appear.
type Frame struct {
	Targets []RawTarget
}

// signMagnitude decodes the sensor's 16-bit sign-magnitude little-endian
// value: high bit set is positive, clear is negative.
func signMagnitude(lo, hi byte) int {
	v := int(uint16(lo) | uint16(hi&0x7F)<<8)
	if hi&0x80 != 0 {
		return v
	}
	return -v
}

// DecodeFrame decodes one complete data frame from buf.
func DecodeFrame(buf []byte) (*Frame, error) {
	if len(buf) < FrameSize {
		return nil, fmt.Errorf("%w: need %d bytes, have %d", ErrShortFrame, FrameSize, len(buf))
	}
	for i, b := range frameHeader {
		if buf[i] != b {
			return nil, fmt.Errorf("%w: byte %d is %#02x", ErrBadHeader, i, buf[i])
		}
	}
	tailStart := len(frameHeader) + payloadSize
	if buf[tailStart] != frameTail[0] || buf[tailStart+1] != frameTail[1] {
		return nil, fmt.Errorf("%w: got %#02x %#02x", ErrBadTail, buf[tailStart], buf[tailStart+1])
	}

	f := &Frame{}
	payload := buf[len(frameHeader):tailStart]
	for slot := 0; slot < targetSlots; slot++ {
		raw := payload[slot*targetSlotSize : (slot+1)*targetSlotSize]

		occupied := false
		for _, b := range raw {
			if b != 0 {
				occupied = true
				break
			}
		}
		if !occupied {
			continue
		}

		f.Targets = append(f.Targets, RawTarget{
			XMillimetres: signMagnitude(raw[0], raw[1]),
			YMillimetres: signMagnitude(raw[2], raw[3]),
			SpeedCmS:     signMagnitude(raw[4], raw[5]),
			Resolution:   uint16(raw[6]) | uint16(raw[7])<<8,
		})
	}
	return f, nil
}

// Detections converts the frame's targets to engine detections in metres on
// the given acquisition channel.
func (f *Frame) Detections(channel uint8) []track.Detection {
	out := make([]track.Detection, 0, len(f.Targets))
	for _, t := range f.Targets {
		out = append(out, track.Detection{
			Channel: channel,
			Position: track.Vec2{
				X: units.MillimetresToMetres(t.XMillimetres),
				Y: units.MillimetresToMetres(t.YMillimetres),
			},
		})
	}
	return out
}
