package ops

import (
	"github.com/steveyegge/mcp-tasks/internal/gitsync"
)

// Chunk is one element of a response: human-readable text or a structured
// payload. Exactly one field is set.
type Chunk struct {
	Text string `json:"text,omitempty" edn:"text,omitempty"`
	Data any    `json:"data,omitempty" edn:"data,omitempty"`
}

// Response is the result of one operation: ordered content chunks plus an
// error flag. Adapters render the chunks in order and never add their own.
type Response struct {
	Content []Chunk `json:"content" edn:"content"`
	IsError bool    `json:"is-error" edn:"is-error"`
}

// Message returns the first text chunk, the response's human summary.
func (r *Response) Message() string {
	for _, c := range r.Content {
		if c.Text != "" {
			return c.Text
		}
	}
	return ""
}

// respond builds a success response: message first, then the payload, then
// the git outcome when a mutation ran.
func respond(message string, payload any, st *gitsync.Status) *Response {
	resp := &Response{Content: []Chunk{{Text: message}}}
	if payload != nil {
		resp.Content = append(resp.Content, Chunk{Data: payload})
	}
	if st != nil {
		resp.Content = append(resp.Content, gitStatusChunk(st))
	}
	return resp
}

// gitStatusChunk renders the commit outcome of a mutation. A failed commit
// reports git-status error with the detail; push failures never surface
// here, the commit rides along with the next push.
func gitStatusChunk(st *gitsync.Status) Chunk {
	data := map[string]any{"git-status": "success"}
	if !st.Ok {
		data["git-status"] = "error"
		data["git-error"] = st.Error
	} else if st.Commit != "" {
		data["git-commit"] = st.Commit
	}
	return Chunk{Data: data}
}

// ErrorResponse renders err as a response with IsError set: the error text
// first, then the structured payload adapters forward to callers.
func ErrorResponse(err error) *Response {
	oe := AsOpError(err)
	return &Response{
		IsError: true,
		Content: []Chunk{
			{Text: oe.Error()},
			{Data: oe.Payload()},
		},
	}
}
