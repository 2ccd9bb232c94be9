package relay

import (
	"encoding/json"
	"fmt"
	"io"
)

// Frame types written to the client.
const (
	FrameText  = "text"
	FrameDone  = "done"
	FrameError = "error"
)

// defaultFrameError fills an error frame whose message is empty so the
// "error" key is always present.
const defaultFrameError = "upstream error"

// Frame is the JSON payload of one client event.
type Frame struct {
	Type  string `json:"type"`
	Text  string `json:"text,omitempty"`
	Error string `json:"error,omitempty"`
}

// WriteFrame writes f as a single "data: <json>\n\n" event.
func WriteFrame(w io.Writer, f Frame) error {
	if f.Type == FrameError && f.Error == "" {
		f.Error = defaultFrameError
	}
	payload, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("encoding frame: %w", err)
	}

	buf := make([]byte, 0, len(payload)+8)
	buf = append(buf, "data: "...)
	buf = append(buf, payload...)
	buf = append(buf, '\n', '\n')

	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("writing frame: %w", err)
	}
	return nil
}
