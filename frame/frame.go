package frame

// Frame is one transient media buffer moving through the pipeline:
// a decoded chunk owned by whoever currently holds the pointer.
// Frames are recycled through a pool, so Reset must return every
// field to its canonical empty state.
type Frame struct {
	StreamID uint32
	PTS      int64
	Keyframe bool
	Payload  []byte
}

// Reset clears the frame for reuse. The payload's backing array is
// kept so refilling does not reallocate.
func (f *Frame) Reset() {
	f.StreamID = 0
	f.PTS = 0
	f.Keyframe = false
	f.Payload = f.Payload[:0]
}
