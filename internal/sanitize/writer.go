package sanitize

import (
	"io"
	"regexp"
	"sync"
)

// incompleteTail matches a sequence that was cut off at the end of a chunk.
var incompleteTail = regexp.MustCompile(`\x1b(?:\[[0-9;?<=>]*|\][^\x07\x1b]*)?$`)

// Writer strips control sequences before writing to the underlying writer.
// A sequence split across two writes is held back until it completes.
type Writer struct {
	mu      sync.Mutex
	w       io.Writer
	strip   func(string) string
	pending string
}

// NewWriter returns a Writer that strips with mode before forwarding to w.
func NewWriter(w io.Writer, mode Mode) *Writer {
	return &Writer{w: w, strip: mode.Func()}
}

func (w *Writer) Write(p []byte) (n int, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	data := w.pending + string(p)
	w.pending = ""
	if loc := incompleteTail.FindStringIndex(data); loc != nil {
		w.pending = data[loc[0]:]
		data = data[:loc[0]]
	}
	if data != "" {
		if _, err := io.WriteString(w.w, w.strip(data)); err != nil {
			return 0, err
		}
	}
	return len(p), nil
}

// Flush writes any held-back partial sequence as stripped text.
func (w *Writer) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.pending == "" {
		return nil
	}
	data := w.strip(w.pending)
	w.pending = ""
	_, err := io.WriteString(w.w, data)
	return err
}
