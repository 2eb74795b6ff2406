// ABOUTME: HTTP client for the gateway's OpenAI-compatible chat completion API.
// ABOUTME: One client serves both whole-response and SSE-streamed exchanges.

package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/lifeos/companion/internal/agents"
)

// Gateway request headers. The agent id header tells the gateway which
// persona to route to; the channel header distinguishes interactive chat
// from background sync traffic.
const (
	headerAgentID = "x-clawdbot-agent-id"
	headerChannel = "x-clawdbot-channel"

	channelChat = "mobile"
	channelSync = "mobile-sync"
)

// pingTimeout bounds the reachability probe. Deliberately small: a probe
// that takes longer than this is as good as unreachable.
const pingTimeout = 3 * time.Second

// Options configures a Client.
type Options struct {
	BaseURL string
	Token   string
	Model   string
	UserID  string
	Timeout time.Duration
}

// Client talks to the gateway. It is stateless: every call carries the
// full request and the gateway owns any server-side memory.
type Client struct {
	rest    *resty.Client
	streams *http.Client
	baseURL string
	token   string
	model   string
	userID  string
}

// New creates a gateway client from options.
func New(opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 75 * time.Second
	}

	rest := resty.New().
		SetBaseURL(opts.BaseURL).
		SetHeader("Content-Type", "application/json").
		SetTimeout(timeout)
	if opts.Token != "" {
		rest.SetAuthToken(opts.Token)
	}

	return &Client{
		rest: rest,
		// Streams bypass resty: it buffers response bodies, and SSE
		// needs the live reader. Longer budget since a stream spans
		// the whole generation.
		streams: &http.Client{Timeout: 2 * timeout},
		baseURL: opts.BaseURL,
		token:   opts.Token,
		model:   opts.Model,
		userID:  opts.UserID,
	}
}

// ChatMessage is one entry in a chat completion request or response.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatRequest is the OpenAI-shaped request body for /v1/chat/completions.
type chatRequest struct {
	Model    string        `json:"model"`
	Messages []ChatMessage `json:"messages"`
	User     string        `json:"user"`
	Stream   bool          `json:"stream,omitempty"`
}

// chatResponse is the non-streaming response body.
type chatResponse struct {
	Choices []struct {
		Message ChatMessage `json:"message"`
	} `json:"choices"`
}

// Session is one active gateway session, as reported by /api/sessions.
type Session struct {
	ID           string `json:"id"`
	Label        string `json:"label,omitempty"`
	AgentID      string `json:"agentId,omitempty"`
	Model        string `json:"model,omitempty"`
	CreatedAt    string `json:"createdAt"`
	LastActivity string `json:"lastActivity,omitempty"`
}

// buildMessages assembles the request messages: exactly one system entry
// when the agent has a configured prompt, then the user's message. System
// prompts are never accumulated across turns.
func buildMessages(agent agents.Config, message string) []ChatMessage {
	var msgs []ChatMessage
	if agent.SystemPrompt != "" {
		msgs = append(msgs, ChatMessage{Role: "system", Content: agent.SystemPrompt})
	}
	return append(msgs, ChatMessage{Role: "user", Content: message})
}

// Send issues a single non-streaming chat completion to the given agent
// and returns the full response text. A non-2xx status yields a
// *GatewayError; a transport failure yields a *NetworkError.
func (c *Client) Send(ctx context.Context, agent agents.Config, message string) (string, error) {
	return c.complete(ctx, agent.ID, channelChat, c.userID+"-"+agent.ID, buildMessages(agent, message))
}

// SyncMessage submits a background sync payload to the main agent over the
// sync channel and returns the gateway's reply text.
func (c *Client) SyncMessage(ctx context.Context, content string) (string, error) {
	msgs := []ChatMessage{{Role: "user", Content: content}}
	return c.complete(ctx, agents.MainAgentID, channelSync, c.userID+"-sync", msgs)
}

// complete runs one non-streaming chat completion.
func (c *Client) complete(ctx context.Context, agentID, channel, user string, msgs []ChatMessage) (string, error) {
	var completion chatResponse
	resp, err := c.rest.R().
		SetContext(ctx).
		SetHeader(headerAgentID, agentID).
		SetHeader(headerChannel, channel).
		SetBody(chatRequest{
			Model:    c.model,
			Messages: msgs,
			User:     user,
		}).
		SetResult(&completion).
		Post("/v1/chat/completions")
	if err != nil {
		return "", &NetworkError{Err: err}
	}
	if resp.IsError() {
		return "", &GatewayError{Status: resp.StatusCode(), Body: resp.String()}
	}

	if len(completion.Choices) == 0 {
		return "", nil
	}
	return completion.Choices[0].Message.Content, nil
}

// SendStream issues a streaming chat completion. The returned Stream
// yields one content fragment per SSE frame; callers must Close it.
func (c *Client) SendStream(ctx context.Context, agent agents.Config, message string) (*Stream, error) {
	body, err := json.Marshal(chatRequest{
		Model:    c.model,
		Messages: buildMessages(agent, message),
		User:     c.userID + "-" + agent.ID,
		Stream:   true,
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set(headerAgentID, agent.ID)
	req.Header.Set(headerChannel, channelChat)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.streams.Do(req)
	if err != nil {
		return nil, &NetworkError{Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, &GatewayError{Status: resp.StatusCode, Body: string(respBody)}
	}

	return newStream(resp), nil
}

// Ping is a best-effort reachability probe. It never propagates errors:
// any failure, including a non-2xx status, reports the gateway as down.
func (c *Client) Ping(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	resp, err := c.rest.R().
		SetContext(ctx).
		Get("/v1/models")
	if err != nil {
		return false
	}
	return resp.IsSuccess()
}

// Sessions lists the gateway's active sessions.
func (c *Client) Sessions(ctx context.Context) ([]Session, error) {
	var sessions []Session
	resp, err := c.rest.R().
		SetContext(ctx).
		SetResult(&sessions).
		Get("/api/sessions")
	if err != nil {
		return nil, &NetworkError{Err: err}
	}
	if resp.IsError() {
		return nil, &GatewayError{Status: resp.StatusCode(), Body: resp.String()}
	}
	return sessions, nil
}
