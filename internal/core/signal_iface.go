package core

// Frame is a raw message payload ready for the wire.
type Frame []byte

// SignalConn abstracts a participant's messaging transport.
// Owned by the adapter; the adapter must Close() it.
type SignalConn interface {
	TrySend(Frame) error
	Close()
}

// PublishResult reports delivery stats for a broadcast.
type PublishResult struct {
	SentTo  int
	Dropped int
}
