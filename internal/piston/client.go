package piston

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"code-exec-service/internal/config"
)

// Sentinel errors for typed error checking.
var (
	// ErrTimeout means no response arrived within the configured deadline.
	ErrTimeout = errors.New("piston request timed out")
	// ErrRemote means Piston was reachable but returned an error status or a
	// payload that does not match the expected shape.
	ErrRemote = errors.New("piston remote error")
)

// RemoteError wraps ErrRemote with the raw diagnostic from the service.
// Detail is safe for display; it never carries a stack trace.
type RemoteError struct {
	Detail string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("piston remote error: %s", e.Detail)
}

func (e *RemoteError) Unwrap() error { return ErrRemote }

// Result is the parsed outcome of one Piston execution.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Language string // language echo from Piston
	Version  string // resolved runtime version
}

// Runner is the seam the execution pipeline depends on. The HTTP client
// below is the production implementation; tests substitute fakes.
type Runner interface {
	Run(ctx context.Context, code, language string) (*Result, error)
}

// Client talks to a remote Piston instance. One call in, one result or one
// failure out — retry policy, if any, belongs to the caller.
type Client struct {
	executeURL string
	version    string
	timeout    time.Duration
	httpClient *http.Client
}

// NewClient builds a Client from the piston section of the config.
func NewClient(cfg config.PistonConfig) *Client {
	path := cfg.ExecutePath
	if path == "" {
		path = "/execute"
	}
	return &Client{
		executeURL: strings.TrimRight(cfg.BaseURL, "/") + path,
		version:    cfg.Version,
		timeout:    cfg.Timeout,
		// No Timeout on the http.Client itself: the per-request context
		// carries the deadline so callers can tighten it further.
		httpClient: &http.Client{},
	}
}

// Timeout returns the configured per-execution deadline.
func (c *Client) Timeout() time.Duration { return c.timeout }

type executeRequest struct {
	Language string        `json:"language"`
	Version  string        `json:"version"`
	Files    []requestFile `json:"files"`
}

type requestFile struct {
	Content string `json:"content"`
}

type executeResponse struct {
	Language string      `json:"language"`
	Version  string      `json:"version"`
	Run      *runSection `json:"run"`
}

type runSection struct {
	Stdout string `json:"stdout"`
	Stderr string `json:"stderr"`
	Code   *int   `json:"code"`
}

// Run executes code on the remote Piston service. The language identifier is
// mapped via MapLanguage and the code is sent as the program's sole input
// file. The call is bounded by the configured timeout even when the caller's
// context carries no deadline of its own.
func (c *Client) Run(ctx context.Context, code, language string) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	payload := executeRequest{
		Language: MapLanguage(language),
		Version:  c.version,
		Files:    []requestFile{{Content: code}},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, &RemoteError{Detail: "encoding request: " + err.Error()}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.executeURL, bytes.NewReader(body))
	if err != nil {
		return nil, &RemoteError{Detail: "building request: " + err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, ErrTimeout
		}
		return nil, &RemoteError{Detail: "request failed: " + err.Error()}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, ErrTimeout
		}
		return nil, &RemoteError{Detail: "reading response: " + err.Error()}
	}

	if resp.StatusCode != http.StatusOK {
		detail := strings.TrimSpace(string(raw))
		if detail == "" {
			detail = resp.Status
		}
		return nil, &RemoteError{Detail: detail}
	}

	var parsed executeResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, &RemoteError{Detail: "malformed response: " + err.Error()}
	}
	if parsed.Run == nil || parsed.Run.Code == nil {
		return nil, &RemoteError{Detail: "response missing run section"}
	}

	log.Debug().
		Str("language", payload.Language).
		Str("resolved_version", parsed.Version).
		Int("exit_code", *parsed.Run.Code).
		Dur("duration", time.Since(start)).
		Msg("piston execution completed")

	return &Result{
		Stdout:   parsed.Run.Stdout,
		Stderr:   parsed.Run.Stderr,
		ExitCode: *parsed.Run.Code,
		Language: parsed.Language,
		Version:  parsed.Version,
	}, nil
}
