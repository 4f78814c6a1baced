package at

// Framer accumulates bytes from the modem into CRLF terminated lines.
//
// Only one line is buffered at a time. A line is complete when the terminator
// has been seen or when the buffer is full; in the latter case the line is
// handed out at exactly the buffer capacity, without a terminator, rather
// than growing the buffer.
type Framer struct {
	buf     []byte
	n       int
	matched int
}

// NewFramer returns a Framer whose lines are at most capacity bytes long.
func NewFramer(capacity int) *Framer {
	if capacity < 1 {
		capacity = 1
	}
	return &Framer{buf: make([]byte, capacity)}
}

// Feed appends b to the current line. It returns the completed line,
// including the terminator when one was matched, or nil when the line is
// still incomplete. The returned slice aliases the framer's buffer and is
// only valid until the next call to Feed.
func (f *Framer) Feed(b byte) []byte {
	f.buf[f.n] = b
	f.n++

	// Any mismatch restarts the terminator match from scratch
	if b == CRLF[f.matched] {
		f.matched++
	} else {
		f.matched = 0
	}

	if f.matched < len(CRLF) && f.n < len(f.buf) {
		return nil
	}

	line := f.buf[:f.n]
	f.n = 0
	f.matched = 0
	return line
}

// Buffered returns the number of bytes of the incomplete line held so far.
func (f *Framer) Buffered() int {
	return f.n
}

// Capacity returns the maximum line length.
func (f *Framer) Capacity() int {
	return len(f.buf)
}

// Reset discards any partially accumulated line.
func (f *Framer) Reset() {
	f.n = 0
	f.matched = 0
}
