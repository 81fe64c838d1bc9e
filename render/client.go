//
// Tencent is pleased to support the open source community by making trpc-gameasset-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-gameasset-go is licensed under the Apache License Version 2.0.
//
//

package render

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg" // register decoder
	_ "image/png"  // register decoder
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"trpc.group/trpc-go/trpc-gameasset-go/log"
)

const (
	defaultTimeout = 5 * time.Minute
	// binaryHeaderLen is the preamble in front of every binary frame:
	// 4 bytes event type followed by 4 bytes image format.
	binaryHeaderLen = 8
	maxErrorBody    = 4 << 10
)

// Message types sent on the status channel.
const (
	msgExecutionStart = "execution_start"
	msgExecuting      = "executing"
	msgExecutionError = "execution_error"
)

var (
	// ErrNoPromptID is returned when the server accepts a job without an id.
	ErrNoPromptID = errors.New("render: response carries no prompt_id")
	// ErrShortFrame is returned for binary frames shorter than the preamble.
	ErrShortFrame = errors.New("render: binary frame shorter than header")
)

// StatusError is returned when the server rejects a submission.
type StatusError struct {
	Code   int
	Reason string
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("render: submit failed: %d %s: %s", e.Code, e.Reason, e.Body)
}

// ExecutionError is reported by the server when a job fails.
type ExecutionError struct {
	PromptID string
	NodeID   string
	Message  string
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("render: prompt %s failed at node %s: %s", e.PromptID, e.NodeID, e.Message)
}

// Image is a rendered image.
type Image struct {
	Data []byte
	// Format is the decoder name, e.g. "png".
	Format string
}

// ContentType returns the MIME type of the image.
func (i *Image) ContentType() string {
	return "image/" + i.Format
}

type options struct {
	httpClient *http.Client
	dialer     *websocket.Dialer
	clientID   string
	timeout    time.Duration
}

// Option configures a Client.
type Option func(*options)

// WithHTTPClient sets the client used for submissions.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// WithDialer sets the websocket dialer.
func WithDialer(d *websocket.Dialer) Option {
	return func(o *options) { o.dialer = d }
}

// WithClientID sets the id the client announces on both channels.
func WithClientID(id string) Option {
	return func(o *options) { o.clientID = id }
}

// WithTimeout bounds Await and Render when the context has no earlier
// deadline. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// Client talks to one render server.
type Client struct {
	httpBase string
	wsBase   string
	opts     options
}

// NewClient creates a client for address, which is either "host:port" or
// a full http(s) URL.
func NewClient(address string, opts ...Option) (*Client, error) {
	o := options{
		httpClient: http.DefaultClient,
		dialer:     websocket.DefaultDialer,
		clientID:   uuid.NewString(),
		timeout:    defaultTimeout,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if !strings.Contains(address, "://") {
		address = "http://" + address
	}
	u, err := url.Parse(address)
	if err != nil {
		return nil, fmt.Errorf("render: parse address: %w", err)
	}
	ws := *u
	switch u.Scheme {
	case "http":
		ws.Scheme = "ws"
	case "https":
		ws.Scheme = "wss"
	default:
		return nil, fmt.Errorf("render: unsupported scheme %q", u.Scheme)
	}
	return &Client{
		httpBase: strings.TrimSuffix(u.String(), "/"),
		wsBase:   strings.TrimSuffix(ws.String(), "/"),
		opts:     o,
	}, nil
}

// ClientID returns the id announced to the server.
func (c *Client) ClientID() string {
	return c.opts.clientID
}

type submitRequest struct {
	Prompt   Graph  `json:"prompt"`
	ClientID string `json:"client_id"`
}

type submitResponse struct {
	PromptID   string          `json:"prompt_id"`
	Number     int             `json:"number"`
	NodeErrors json.RawMessage `json:"node_errors,omitempty"`
}

// Submit queues job and returns its prompt id. Submissions are never retried.
func (c *Client) Submit(ctx context.Context, job *Job) (string, error) {
	body, err := json.Marshal(submitRequest{Prompt: job.Graph, ClientID: c.opts.clientID})
	if err != nil {
		return "", fmt.Errorf("render: encode job: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.httpBase+"/prompt", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("render: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.opts.httpClient.Do(req)
	if err != nil {
		job.State = StateFailed
		return "", fmt.Errorf("render: submit: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		job.State = StateFailed
		return "", &StatusError{
			Code:   resp.StatusCode,
			Reason: http.StatusText(resp.StatusCode),
			Body:   strings.TrimSpace(string(b)),
		}
	}
	var out submitResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		job.State = StateFailed
		return "", fmt.Errorf("render: decode submit response: %w", err)
	}
	if out.PromptID == "" {
		job.State = StateFailed
		return "", ErrNoPromptID
	}
	job.PromptID = out.PromptID
	job.State = StateSubmitted
	log.Infof("render: queued prompt %s (position %d)", out.PromptID, out.Number)
	return out.PromptID, nil
}

// Await waits on a fresh connection for the image of promptID.
func (c *Client) Await(ctx context.Context, promptID string) (*Image, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	conn, err := c.dial(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()
	return c.receive(ctx, conn, promptID, nil)
}

// Render submits job and waits for its image. The message channel is
// opened before submission so that no status event is missed.
func (c *Client) Render(ctx context.Context, job *Job) (*Image, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	conn, err := c.dial(ctx)
	if err != nil {
		job.State = StateFailed
		return nil, err
	}
	defer conn.Close()
	promptID, err := c.Submit(ctx, job)
	if err != nil {
		return nil, err
	}
	img, err := c.receive(ctx, conn, promptID, job)
	if err != nil {
		job.State = StateFailed
		return nil, err
	}
	job.State = StateCompleted
	return img, nil
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.opts.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.opts.timeout)
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	u := c.wsBase + "/ws?clientId=" + url.QueryEscape(c.opts.clientID)
	conn, resp, err := c.opts.dialer.DialContext(ctx, u, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("render: dial %s: %w", u, err)
	}
	return conn, nil
}

type statusMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type executingData struct {
	Node     *string `json:"node"`
	PromptID string  `json:"prompt_id"`
}

type executionErrorData struct {
	PromptID         string `json:"prompt_id"`
	NodeID           string `json:"node_id"`
	ExceptionMessage string `json:"exception_message"`
}

// receive reads frames until the first binary frame arrives. Status events
// for promptID update job, when given. The connection is closed if ctx ends
// so that a blocked read returns.
func (c *Client) receive(ctx context.Context, conn *websocket.Conn, promptID string, job *Job) (*Image, error) {
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-stop:
		}
	}()

	completed := false
	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, fmt.Errorf("render: read message: %w", err)
		}
		switch mt {
		case websocket.BinaryMessage:
			return decodeFrame(data)
		case websocket.TextMessage:
			if completed {
				continue
			}
			var msg statusMessage
			if err := json.Unmarshal(data, &msg); err != nil {
				log.Warnf("render: skip malformed status message: %v", err)
				continue
			}
			finished, err := handleStatus(msg, promptID, job)
			if err != nil {
				return nil, err
			}
			if finished {
				log.Infof("render: prompt %s executed, waiting for image", promptID)
				completed = true
			}
		}
	}
}

func handleStatus(msg statusMessage, promptID string, job *Job) (bool, error) {
	switch msg.Type {
	case msgExecutionStart:
		var d executingData
		if json.Unmarshal(msg.Data, &d) == nil && d.PromptID == promptID && job != nil {
			job.State = StateExecuting
		}
	case msgExecuting:
		var d executingData
		if err := json.Unmarshal(msg.Data, &d); err != nil || d.PromptID != promptID {
			return false, nil
		}
		if d.Node == nil {
			return true, nil
		}
		if job != nil {
			job.State = StateExecuting
		}
		log.Debugf("render: prompt %s executing node %s", promptID, *d.Node)
	case msgExecutionError:
		var d executionErrorData
		if err := json.Unmarshal(msg.Data, &d); err != nil || d.PromptID != promptID {
			return false, nil
		}
		return false, &ExecutionError{PromptID: d.PromptID, NodeID: d.NodeID, Message: d.ExceptionMessage}
	}
	return false, nil
}

func decodeFrame(frame []byte) (*Image, error) {
	if len(frame) < binaryHeaderLen {
		return nil, ErrShortFrame
	}
	data := frame[binaryHeaderLen:]
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("render: decode image: %w", err)
	}
	return &Image{Data: data, Format: format}, nil
}
