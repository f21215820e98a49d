package completion

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync/atomic"
	"testing"

	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/grovetools/socratic/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type messageResponse struct {
	ID           string         `json:"id"`
	Type         string         `json:"type"`
	Role         string         `json:"role"`
	Model        string         `json:"model"`
	Content      []contentBlock `json:"content"`
	StopReason   string         `json:"stop_reason"`
	StopSequence string         `json:"stop_sequence"`
	Usage        struct {
		InputTokens  int64 `json:"input_tokens"`
		OutputTokens int64 `json:"output_tokens"`
	} `json:"usage"`
}

type stubHTTPClient struct {
	responder func(req *http.Request, call int32) *http.Response
	calls     int32
	lastBody  []byte
}

func (s *stubHTTPClient) Do(req *http.Request) (*http.Response, error) {
	call := atomic.AddInt32(&s.calls, 1)
	if req.Body != nil {
		s.lastBody, _ = io.ReadAll(req.Body)
	}
	return s.responder(req, call), nil
}

func okResponse(t *testing.T, blocks ...contentBlock) func(*http.Request, int32) *http.Response {
	t.Helper()
	resp := messageResponse{
		ID:         "msg_test",
		Type:       "message",
		Role:       "assistant",
		Model:      "claude-test",
		Content:    blocks,
		StopReason: "end_turn",
	}
	resp.Usage.InputTokens = 1
	resp.Usage.OutputTokens = 1

	body, err := json.Marshal(resp)
	require.NoError(t, err)

	return func(req *http.Request, call int32) *http.Response {
		return &http.Response{
			StatusCode: http.StatusOK,
			Header:     http.Header{"Content-Type": []string{"application/json"}},
			Body:       io.NopCloser(bytes.NewReader(body)),
		}
	}
}

func TestCompleteWithoutKeyIsUnavailable(t *testing.T) {
	c := New(Config{Model: "claude-test"})
	assert.False(t, c.Available())

	_, err := c.Complete(context.Background(), Request{Turns: []Turn{{Role: RoleUser, Content: "hi"}}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeCompletionUnavailable))
}

func TestCompleteJoinsTextBlocks(t *testing.T) {
	stub := &stubHTTPClient{responder: okResponse(t,
		contentBlock{Type: "text", Text: "  first"},
		contentBlock{Type: "text", Text: "second  "},
	)}
	c := New(Config{APIKey: "test-key", Model: "claude-test", MaxTokens: 10}, option.WithHTTPClient(stub))
	require.True(t, c.Available())

	got, err := c.Complete(context.Background(), Request{
		System: "be socratic",
		Turns: []Turn{
			{Role: RoleUser, Content: "2+2?"},
			{Role: RoleAssistant, Content: "What do you think?"},
			{Role: RoleUser, Content: "4"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "first\nsecond", got)

	var sent struct {
		Model     string `json:"model"`
		MaxTokens int    `json:"max_tokens"`
		System    []struct {
			Text string `json:"text"`
		} `json:"system"`
		Messages []struct {
			Role string `json:"role"`
		} `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(stub.lastBody, &sent))
	assert.Equal(t, "claude-test", sent.Model)
	assert.Equal(t, 10, sent.MaxTokens)
	require.Len(t, sent.System, 1)
	assert.Equal(t, "be socratic", sent.System[0].Text)
	require.Len(t, sent.Messages, 3)
	assert.Equal(t, "assistant", sent.Messages[1].Role)
}

func TestCompleteAttachesImagesToLastUserTurn(t *testing.T) {
	stub := &stubHTTPClient{responder: okResponse(t, contentBlock{Type: "text", Text: "x^2 = 4"})}
	c := New(Config{APIKey: "test-key", Model: "claude-test"}, option.WithHTTPClient(stub))

	got, err := c.Complete(context.Background(), Request{
		Model:  "claude-vision",
		Turns:  []Turn{{Role: RoleUser, Content: "transcribe"}},
		Images: []Image{{MediaType: "image/jpeg", Base64: "aGVsbG8="}},
	})
	require.NoError(t, err)
	assert.Equal(t, "x^2 = 4", got)

	var sent struct {
		Model    string `json:"model"`
		Messages []struct {
			Content []struct {
				Type   string `json:"type"`
				Source struct {
					MediaType string `json:"media_type"`
					Data      string `json:"data"`
				} `json:"source"`
			} `json:"content"`
		} `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(stub.lastBody, &sent))
	assert.Equal(t, "claude-vision", sent.Model)
	require.Len(t, sent.Messages, 1)
	require.Len(t, sent.Messages[0].Content, 2)
	assert.Equal(t, "image", sent.Messages[0].Content[0].Type)
	assert.Equal(t, "image/jpeg", sent.Messages[0].Content[0].Source.MediaType)
	assert.Equal(t, "text", sent.Messages[0].Content[1].Type)
}

func TestCompleteWrapsAPIErrors(t *testing.T) {
	stub := &stubHTTPClient{responder: func(req *http.Request, call int32) *http.Response {
		return &http.Response{
			StatusCode: http.StatusBadRequest,
			Header:     http.Header{"Content-Type": []string{"application/json"}},
			Body:       io.NopCloser(bytes.NewReader([]byte(`{"type":"error","error":{"type":"invalid_request_error","message":"bad"}}`))),
		}
	}}
	c := New(Config{APIKey: "test-key", Model: "claude-test"}, option.WithHTTPClient(stub))

	_, err := c.Complete(context.Background(), Request{Turns: []Turn{{Role: RoleUser, Content: "hi"}}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeCompletionFailed))
	assert.Equal(t, int32(1), atomic.LoadInt32(&stub.calls), "4xx responses are not retried")
}

func TestCompleterFunc(t *testing.T) {
	var f Completer = CompleterFunc(func(ctx context.Context, req Request) (string, error) {
		return req.Turns[0].Content, nil
	})
	assert.True(t, f.Available())
	got, err := f.Complete(context.Background(), Request{Turns: []Turn{{Role: RoleUser, Content: "echo"}}})
	require.NoError(t, err)
	assert.Equal(t, "echo", got)
}
