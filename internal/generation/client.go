package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
)

// KindService tags failures reported by or talking to the service.
const KindService ftag.Kind = "resource"

type Request struct {
	Prompt       string `json:"prompt"`
	Style        string `json:"style"`
	Lyrics       string `json:"lyrics"`
	Instrumental bool   `json:"instrumental"`
}

type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusTimedOut  Status = "timed-out"
)

// Result is the state of a generation task.
type Result struct {
	TaskID   string
	Status   Status
	AudioURL string
	Title    string
	Error    string
	Attempts int
}

func (r Result) Terminal() bool {
	return r.Status == StatusCompleted || r.Status == StatusFailed || r.Status == StatusTimedOut
}

// Client starts generation tasks and reports their status.
type Client interface {
	Generate(ctx context.Context, req Request) (string, error)
	Status(ctx context.Context, taskID string) (Result, error)
}

// HTTPClient talks to the studio backend's generate-music and status
// endpoints.
type HTTPClient struct {
	BaseURL string
	HTTP    *http.Client
}

func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: 30 * time.Second},
	}
}

type generateResponse struct {
	Success bool   `json:"success"`
	TaskID  string `json:"taskId"`
	Error   string `json:"error"`
}

type statusResponse struct {
	Success  bool   `json:"success"`
	Status   string `json:"status"`
	AudioURL string `json:"audioUrl"`
	Title    string `json:"title"`
	Error    string `json:"error"`
}

func (c *HTTPClient) Generate(ctx context.Context, req Request) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", fault.Wrap(err, fmsg.With("encode request"))
	}
	var out generateResponse
	if err := c.do(ctx, http.MethodPost, c.BaseURL+"/api/generate-music", body, &out); err != nil {
		return "", err
	}
	if !out.Success || out.TaskID == "" {
		msg := out.Error
		if msg == "" {
			msg = "task id not received"
		}
		return "", fault.New(msg, ftag.With(KindService),
			fmsg.WithDesc("generation rejected", "Music generation failed: "+msg))
	}
	return out.TaskID, nil
}

func (c *HTTPClient) Status(ctx context.Context, taskID string) (Result, error) {
	var out statusResponse
	if err := c.do(ctx, http.MethodGet, c.BaseURL+"/api/status/"+url.PathEscape(taskID), nil, &out); err != nil {
		return Result{TaskID: taskID, Status: StatusPending}, err
	}
	res := Result{TaskID: taskID, AudioURL: out.AudioURL, Title: out.Title, Error: out.Error}
	switch strings.ToLower(out.Status) {
	case "completed", "success":
		res.Status = StatusCompleted
	case "failed":
		res.Status = StatusFailed
	default:
		res.Status = StatusPending
	}
	return res, nil
}

func (c *HTTPClient) do(ctx context.Context, method, target string, body []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, target, bytes.NewReader(body))
	if err != nil {
		return fault.Wrap(err, fmsg.With("build request"))
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	hc := c.HTTP
	if hc == nil {
		hc = http.DefaultClient
	}
	resp, err := hc.Do(req)
	if err != nil {
		return fault.Wrap(err, ftag.With(KindService),
			fmsg.WithDesc("request failed", "Could not reach the generation service."))
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 500 {
		return fault.New(fmt.Sprintf("service returned %s", resp.Status), ftag.With(KindService),
			fmsg.WithDesc("service unavailable", "The generation service is unavailable. Try again later."))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fault.Wrap(err, ftag.With(KindService), fmsg.With("decode response"))
	}
	return nil
}
