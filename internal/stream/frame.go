// Package stream implements the line-delimited answer streaming protocol.
//
// Each frame is one newline-terminated line: a single-character type tag, a
// colon, and a JSON payload. A minimal consumer only needs text deltas and
// the error tag; the start/finish tags carry metadata it may ignore.
//
//	0:"answer fragment"
//	f:{"messageId":"..."}
//	e:{"finishReason":"stop","usage":{...},"isContinued":false}
//	d:{"finishReason":"stop","usage":{...}}
//	3:"generic error message"
package stream

import "encoding/json"

// Frame type tags.
const (
	TagDelta         = '0' // incremental text fragment
	TagError         = '3' // terminal error, generic message only
	TagStart         = 'f' // stream start metadata
	TagFinishStep    = 'e' // completion-step finish metadata
	TagFinishMessage = 'd' // end of stream metadata
)

// Usage reports token consumption for a completed stream.
type Usage struct {
	PromptTokens     int `json:"promptTokens"`
	CompletionTokens int `json:"completionTokens"`
}

// StartPayload is the payload of a TagStart frame.
type StartPayload struct {
	MessageID string `json:"messageId"`
}

// FinishStepPayload is the payload of a TagFinishStep frame.
type FinishStepPayload struct {
	FinishReason string `json:"finishReason"`
	Usage        Usage  `json:"usage"`
	IsContinued  bool   `json:"isContinued"`
}

// FinishMessagePayload is the payload of a TagFinishMessage frame.
type FinishMessagePayload struct {
	FinishReason string `json:"finishReason"`
	Usage        Usage  `json:"usage"`
}

// Frame is one decoded protocol line.
type Frame struct {
	Tag byte

	// Text carries the delta for TagDelta and the message for TagError.
	Text string

	// MessageID is set for TagStart frames.
	MessageID string

	// FinishReason and Usage are set for finish frames.
	FinishReason string
	Usage        Usage
}

func encodeLine(tag byte, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	line := make([]byte, 0, len(body)+3)
	line = append(line, tag, ':')
	line = append(line, body...)
	line = append(line, '\n')
	return line, nil
}
