// ABOUTME: SSE reader turning a streaming chat completion body into fragments.
// ABOUTME: Handles both delta-JSON frames and the gateway's raw-text fallback.

package gateway

import (
	"bufio"
	"encoding/json"
	"io"
	"net/http"
	"strings"
)

// streamFrame covers both frame payload shapes the gateway emits:
// OpenAI streaming deltas (choices[0].delta.content) and the gateway's
// native {"text": "..."} shape.
type streamFrame struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
	Text string `json:"text"`
}

// Stream is an in-progress streaming response. Fragments arrive in receipt
// order, one per SSE frame, never buffered across frames.
type Stream struct {
	resp   *http.Response
	reader *bufio.Reader
	done   bool
}

func newStream(resp *http.Response) *Stream {
	return &Stream{
		resp:   resp,
		reader: bufio.NewReader(resp.Body),
	}
}

// Recv returns the next content fragment. It returns io.EOF exactly once,
// when the [DONE] sentinel is seen or the stream ends naturally; no
// fragments are delivered after that. A transport failure mid-stream is
// returned as a *NetworkError.
//
// Frame leniency: a payload that fails to parse as JSON is treated as a raw
// text fragment (the gateway's plain-text fallback); valid JSON carrying
// neither a delta nor a text field is dropped as noise.
func (s *Stream) Recv() (string, error) {
	if s.done {
		return "", io.EOF
	}

	for {
		line, err := s.reader.ReadString('\n')
		if err != nil {
			s.done = true
			if err == io.EOF {
				return "", io.EOF
			}
			return "", &NetworkError{Err: err}
		}

		line = strings.TrimRight(line, "\r\n")

		// Skip blank separators and SSE comments.
		if line == "" || strings.HasPrefix(line, ":") {
			continue
		}

		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimPrefix(line, "data:")
		data = strings.TrimPrefix(data, " ")

		if data == "[DONE]" {
			s.done = true
			return "", io.EOF
		}

		var frame streamFrame
		if err := json.Unmarshal([]byte(data), &frame); err != nil {
			// Raw text chunk.
			return data, nil
		}

		if len(frame.Choices) > 0 && frame.Choices[0].Delta.Content != "" {
			return frame.Choices[0].Delta.Content, nil
		}
		if frame.Text != "" {
			return frame.Text, nil
		}
		// Parseable but empty frame: noise, keep reading.
	}
}

// Close releases the underlying response body. Safe to call after Recv
// returned io.EOF.
func (s *Stream) Close() error {
	if s.resp != nil && s.resp.Body != nil {
		return s.resp.Body.Close()
	}
	return nil
}
