package stream

import (
	"io"
	"net/http"
)

// Writer encodes frames onto an HTTP response, flushing after every frame so
// the client renders deltas as they arrive. It performs no buffering or
// coalescing beyond line framing.
type Writer struct {
	w       io.Writer
	flusher http.Flusher
}

// NewWriter wraps w. If w also implements http.Flusher, every frame is
// flushed immediately after it is written.
func NewWriter(w io.Writer) *Writer {
	sw := &Writer{w: w}
	if f, ok := w.(http.Flusher); ok {
		sw.flusher = f
	}
	return sw
}

// Start emits the stream start frame carrying the message ID.
func (w *Writer) Start(messageID string) error {
	return w.emit(TagStart, StartPayload{MessageID: messageID})
}

// Delta emits one incremental text fragment.
func (w *Writer) Delta(text string) error {
	return w.emit(TagDelta, text)
}

// Error emits the terminal error frame. The message must already be generic;
// provider detail never reaches the wire.
func (w *Writer) Error(message string) error {
	return w.emit(TagError, message)
}

// Finish emits the finish-step and finish-message frames that close a
// successfully completed stream.
func (w *Writer) Finish(finishReason string, usage Usage) error {
	if finishReason == "" {
		finishReason = "stop"
	}
	if err := w.emit(TagFinishStep, FinishStepPayload{
		FinishReason: finishReason,
		Usage:        usage,
	}); err != nil {
		return err
	}
	return w.emit(TagFinishMessage, FinishMessagePayload{
		FinishReason: finishReason,
		Usage:        usage,
	})
}

func (w *Writer) emit(tag byte, payload any) error {
	line, err := encodeLine(tag, payload)
	if err != nil {
		return err
	}
	if _, err := w.w.Write(line); err != nil {
		return err
	}
	if w.flusher != nil {
		w.flusher.Flush()
	}
	return nil
}
