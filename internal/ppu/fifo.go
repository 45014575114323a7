package ppu

// fifoCapacity is the ring buffer's total capacity: up to 8 resident pixels
// plus room for the next 8-pixel group fetched ahead of them, per spec.md
// §9's "fixed-capacity ring buffer of 16 entries" design note.
const fifoCapacity = 16

// residentLimit is the maximum number of pixels the FIFO may hold before a
// PUSH attempt must wait (spec.md §4.9: "The FIFO accepts at most 8
// resident pixels; if full, stay in PUSH").
const residentLimit = 8

// bgPixel is a single queued BG/window pixel: its raw 2-bit color index.
// Sprite overlay and palette lookup are resolved against it when it is
// popped for output, since that is when its final screen column (and thus
// which sprites may cover it) is known exactly.
type bgPixel struct {
	colorIndex byte
}

// pixelFIFO is a small ring buffer of pending BG/window pixels awaiting
// sprite compositing and output.
type pixelFIFO struct {
	buf        [fifoCapacity]bgPixel
	head, size int
}

func (q *pixelFIFO) Clear()   { q.head, q.size = 0, 0 }
func (q *pixelFIFO) Len() int { return q.size }

// TryPush8 enqueues 8 pixels atomically, returning false (and changing
// nothing) if there isn't room because the FIFO already holds a full
// resident group.
func (q *pixelFIFO) TryPush8(px [8]bgPixel) bool {
	if q.size >= residentLimit {
		return false
	}
	if q.size+8 > fifoCapacity {
		return false
	}
	tail := (q.head + q.size) % fifoCapacity
	for i := 0; i < 8; i++ {
		q.buf[(tail+i)%fifoCapacity] = px[i]
	}
	q.size += 8
	return true
}

// Pop removes and returns the oldest pixel. ok is false on underflow, which
// per spec.md §7 indicates a programming bug — callers only pop when Len()>0.
func (q *pixelFIFO) Pop() (bgPixel, bool) {
	if q.size == 0 {
		return bgPixel{}, false
	}
	v := q.buf[q.head]
	q.head = (q.head + 1) % fifoCapacity
	q.size--
	return v, true
}
