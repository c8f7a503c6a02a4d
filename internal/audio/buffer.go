// Package audio holds the hand-off queue between a client connection and the
// speech recognizer.
package audio

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned by Push once the buffer has been closed.
var ErrClosed = errors.New("audio: buffer closed")

// DefaultSize is used when NewBuffer is given a non-positive capacity.
const DefaultSize = 64

// Buffer is a bounded single-producer/single-consumer frame queue.
//
// The producer calls Push and, when the source ends, Close. Close delivers the
// end-of-stream marker: ranging over Frames terminates once every queued frame
// has been received. Push and Close must be called from the producer goroutine.
type Buffer struct {
	frames chan []byte
	once   sync.Once
	closed chan struct{}
}

func NewBuffer(size int) *Buffer {
	if size <= 0 {
		size = DefaultSize
	}
	return &Buffer{
		frames: make(chan []byte, size),
		closed: make(chan struct{}),
	}
}

// Push enqueues a frame, blocking while the buffer is full.
func (b *Buffer) Push(ctx context.Context, frame []byte) error {
	select {
	case <-b.closed:
		return ErrClosed
	default:
	}

	select {
	case b.frames <- frame:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close marks the end of the stream. Calling it more than once is a no-op.
func (b *Buffer) Close() {
	b.once.Do(func() {
		close(b.closed)
		close(b.frames)
	})
}

// Frames is the consumer side of the queue.
func (b *Buffer) Frames() <-chan []byte {
	return b.frames
}

// Len reports how many frames are waiting.
func (b *Buffer) Len() int {
	return len(b.frames)
}
