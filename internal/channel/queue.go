package channel

import "agora/internal/models"

// outboundQueue holds frames issued while the channel is not open.
// Unbounded, strictly FIFO; drained only after a successful flush.
type outboundQueue struct {
	frames []models.Frame
}

func (q *outboundQueue) push(f models.Frame) {
	q.frames = append(q.frames, f)
}

// drain returns the queued frames in enqueue order and empties the queue.
func (q *outboundQueue) drain() []models.Frame {
	out := q.frames
	q.frames = nil
	return out
}

func (q *outboundQueue) restore(frames []models.Frame) {
	q.frames = append(frames, q.frames...)
}

func (q *outboundQueue) len() int {
	return len(q.frames)
}
