package stream

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// Decoder reads frames from a stream. Incomplete trailing lines are buffered
// across reads, so the decoder is safe to run over arbitrary chunk boundaries.
type Decoder struct {
	r *bufio.Reader
}

// NewDecoder creates a decoder over r.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: bufio.NewReader(r)}
}

// Next returns the next recognized frame. Unknown tags and blank lines are
// skipped. Returns io.EOF once the stream is exhausted; a truncated final
// line without a newline is surfaced as io.ErrUnexpectedEOF.
func (d *Decoder) Next() (Frame, error) {
	for {
		line, err := d.r.ReadBytes('\n')
		if err == io.EOF {
			if len(bytes.TrimSpace(line)) > 0 {
				return Frame{}, io.ErrUnexpectedEOF
			}
			return Frame{}, io.EOF
		}
		if err != nil {
			return Frame{}, err
		}

		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}

		frame, ok, err := decodeLine(line)
		if err != nil {
			return Frame{}, err
		}
		if ok {
			return frame, nil
		}
	}
}

func decodeLine(line []byte) (Frame, bool, error) {
	if len(line) < 2 || line[1] != ':' {
		return Frame{}, false, fmt.Errorf("malformed frame: %q", line)
	}

	tag := line[0]
	body := line[2:]

	switch tag {
	case TagDelta, TagError:
		var text string
		if err := json.Unmarshal(body, &text); err != nil {
			return Frame{}, false, fmt.Errorf("decoding %c frame: %w", tag, err)
		}
		return Frame{Tag: tag, Text: text}, true, nil

	case TagStart:
		var p StartPayload
		if err := json.Unmarshal(body, &p); err != nil {
			return Frame{}, false, fmt.Errorf("decoding start frame: %w", err)
		}
		return Frame{Tag: tag, MessageID: p.MessageID}, true, nil

	case TagFinishStep:
		var p FinishStepPayload
		if err := json.Unmarshal(body, &p); err != nil {
			return Frame{}, false, fmt.Errorf("decoding finish-step frame: %w", err)
		}
		return Frame{Tag: tag, FinishReason: p.FinishReason, Usage: p.Usage}, true, nil

	case TagFinishMessage:
		var p FinishMessagePayload
		if err := json.Unmarshal(body, &p); err != nil {
			return Frame{}, false, fmt.Errorf("decoding finish frame: %w", err)
		}
		return Frame{Tag: tag, FinishReason: p.FinishReason, Usage: p.Usage}, true, nil

	default:
		// Forward compatibility: unknown tags are metadata a minimal
		// consumer may ignore.
		return Frame{}, false, nil
	}
}
