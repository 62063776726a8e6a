package queue

type config struct {
	segmentSize int
	maxSegments int
}

func defaultConfig() config {
	return config{
		segmentSize: DefaultSegmentSize,
		maxSegments: DefaultMaxSegments,
	}
}

// Option configures a Queue at construction.
type Option func(*config)

// WithSegmentSize sets the capacity of the first segment. Later
// segments double in size from the previous one.
func WithSegmentSize(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.segmentSize = n
		}
	}
}

// WithMaxSegments sets the hard ceiling on live segments. Retired
// segments count back down, so growth can resume after a drain.
func WithMaxSegments(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.maxSegments = n
		}
	}
}
