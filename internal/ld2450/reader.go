package ld2450

import (
	"bufio"
	"context"
	"errors"
	"io"
	"sync/atomic"

	"github.com/hexar-systems/hexar/internal/monitoring"
	"github.com/hexar-systems/hexar/internal/track"
)

// Reader pulls data frames out of a byte stream, resynchronising on the
// frame header after garbage or partial frames. Malformed frames are
// counted and skipped; a read error from the underlying stream ends the
// stream.
type Reader struct {
	br        *bufio.Reader
	channel   uint8
	malformed atomic.Uint64
}

// NewReader wraps r as a frame reader. All detections it produces carry the
// given channel id.
func NewReader(r io.Reader, channel uint8) *Reader {
	return &Reader{
		br:      bufio.NewReaderSize(r, 4*FrameSize),
		channel: channel,
	}
}

// Malformed returns the number of frames discarded during resync.
func (r *Reader) Malformed() uint64 { return r.malformed.Load() }

// Next returns the next well-formed data frame, skipping past any bytes
// that do not decode. io.EOF (or any transport error) is returned when the
// stream ends.
func (r *Reader) Next() (*Frame, error) {
	for {
		if err := r.sync(); err != nil {
			return nil, err
		}

		buf, err := r.br.Peek(FrameSize)
		if err != nil {
			if errors.Is(err, io.ErrUnexpectedEOF) {
				return nil, io.EOF
			}
			return nil, err
		}

		f, err := DecodeFrame(buf)
		if err != nil {
			// Bad tail after a valid header. Drop a single byte so sync
			// can hunt for a real header inside what we just peeked.
			r.malformed.Add(1)
			monitoring.Logf("ld2450: discarding malformed frame: %v", err)
			if _, err := r.br.Discard(1); err != nil {
				return nil, err
			}
			continue
		}
		if _, err := r.br.Discard(FrameSize); err != nil {
			return nil, err
		}
		return f, nil
	}
}

// sync discards bytes until the stream is positioned at a frame header.
func (r *Reader) sync() error {
	for {
		peek, err := r.br.Peek(len(frameHeader))
		if err != nil {
			if errors.Is(err, io.ErrUnexpectedEOF) {
				return io.EOF
			}
			return err
		}
		match := true
		for i, b := range frameHeader {
			if peek[i] != b {
				match = false
				break
			}
		}
		if match {
			return nil
		}
		if _, err := r.br.Discard(1); err != nil {
			return err
		}
	}
}

// Stream decodes frames until the reader is exhausted or the context is
// cancelled, sending each frame's detections to out. It returns the
// transport error that ended the stream, or nil on clean EOF.
func (r *Reader) Stream(ctx context.Context, out chan<- track.Detection) error {
	for {
		f, err := r.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		for _, d := range f.Detections(r.channel) {
			select {
			case out <- d:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}
