package at

import "bytes"

// Kind is the outcome of classifying one modem line.
type Kind int

const (
	KindNone         Kind = iota // No complete line yet
	KindOK                       // Generic success, "OK"
	KindError                    // Generic failure, "ERROR"
	KindExpected                 // Line matches the prefix the caller waits for
	KindUnrecognized             // Complete line, but nothing the caller waits for
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindOK:
		return "ok"
	case KindError:
		return "error"
	case KindExpected:
		return "expected"
	case KindUnrecognized:
		return "unrecognized"
	default:
		return "unknown"
	}
}

// Response is the classification of a single line.
type Response struct {
	Kind Kind
	// Line is a private copy of the line for KindExpected, truncated to the
	// classifier capacity. It is nil for every other kind.
	Line []byte
	// Matched is the length of the expected prefix that was compared.
	Matched int
}

// Classifier decides what a completed modem line means for the wait in
// progress.
//
// By default an expected prefix matches any line at least as long as the
// prefix whose leading bytes sort at or after it. Set Strict to require the
// leading bytes to be equal.
type Classifier struct {
	// Capacity bounds the copy returned in Response.Line; zero means no bound.
	Capacity int
	// Strict switches expected-prefix matching to a plain prefix test.
	Strict bool
}

// Classify evaluates line against OK, ERROR and, when expected is not
// empty, the expected prefix, in that order.
func (c Classifier) Classify(line []byte, expected string) Response {
	if len(line) == 0 {
		return Response{Kind: KindNone}
	}
	if string(line) == OK {
		return Response{Kind: KindOK}
	}
	if string(line) == ERROR {
		return Response{Kind: KindError}
	}
	if expected != "" && c.matches(line, expected) {
		n := len(line)
		if c.Capacity > 0 && n > c.Capacity {
			n = c.Capacity
		}
		return Response{
			Kind:    KindExpected,
			Line:    bytes.Clone(line[:n]),
			Matched: len(expected),
		}
	}
	return Response{Kind: KindUnrecognized}
}

func (c Classifier) matches(line []byte, expected string) bool {
	if len(line) < len(expected) {
		return false
	}
	head := line[:len(expected)]
	if c.Strict {
		return string(head) == expected
	}
	return bytes.Compare(head, []byte(expected)) >= 0
}
