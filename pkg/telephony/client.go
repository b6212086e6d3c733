package telephony

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const defaultAPIBase = "https://api.twilio.com/2010-04-01"

// Carrier call status values, as delivered by the status webhook.
const (
	CallStatusQueued     = "queued"
	CallStatusInitiated  = "initiated"
	CallStatusRinging    = "ringing"
	CallStatusInProgress = "in-progress"
	CallStatusCompleted  = "completed"
	CallStatusBusy       = "busy"
	CallStatusFailed     = "failed"
	CallStatusNoAnswer   = "no-answer"
	CallStatusCanceled   = "canceled"
)

// Client originates and terminates outbound calls via the carrier REST API.
type Client struct {
	accountSID string
	authToken  string
	fromNumber string
	apiBase    string
	httpClient *http.Client
}

// ClientOption is a functional option for Client.
type ClientOption func(*Client)

// WithAPIBase overrides the carrier REST endpoint, mainly for tests.
func WithAPIBase(base string) ClientOption {
	return func(c *Client) {
		c.apiBase = strings.TrimRight(base, "/")
	}
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// NewClient creates a carrier client. All three credentials are required;
// a missing one is a configuration failure surfaced before any network
// activity.
func NewClient(accountSID, authToken, fromNumber string, opts ...ClientOption) (*Client, error) {
	if accountSID == "" {
		return nil, errors.New("telephony: accountSID must not be empty")
	}
	if authToken == "" {
		return nil, errors.New("telephony: authToken must not be empty")
	}
	if fromNumber == "" {
		return nil, errors.New("telephony: fromNumber must not be empty")
	}
	c := &Client{
		accountSID: accountSID,
		authToken:  authToken,
		fromNumber: fromNumber,
		apiBase:    defaultAPIBase,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// OriginateRequest describes one outbound call.
type OriginateRequest struct {
	// To is the destination number in E.164 form. Required.
	To string

	// StreamURL is the wss:// endpoint the carrier connects its media stream
	// to. Required.
	StreamURL string

	// StatusCallbackURL receives call lifecycle webhooks. Optional.
	StatusCallbackURL string

	// CallID is passed through as a custom stream parameter so the media
	// stream can be linked back to its session.
	CallID string
}

// callResource is the subset of the carrier's call resource we read back.
type callResource struct {
	SID    string `json:"sid"`
	Status string `json:"status"`
}

// Originate places the outbound call and returns the carrier call SID.
func (c *Client) Originate(ctx context.Context, req OriginateRequest) (string, error) {
	if req.To == "" {
		return "", errors.New("telephony: destination number must not be empty")
	}
	if req.StreamURL == "" {
		return "", errors.New("telephony: stream URL must not be empty")
	}

	form := url.Values{}
	form.Set("To", req.To)
	form.Set("From", c.fromNumber)
	form.Set("Twiml", streamTwiML(req.StreamURL, req.CallID))
	if req.StatusCallbackURL != "" {
		form.Set("StatusCallback", req.StatusCallbackURL)
		for _, ev := range []string{"initiated", "ringing", "answered", "completed"} {
			form.Add("StatusCallbackEvent", ev)
		}
	}

	endpoint := fmt.Sprintf("%s/Accounts/%s/Calls.json", c.apiBase, c.accountSID)
	res, err := c.postForm(ctx, endpoint, form)
	if err != nil {
		return "", fmt.Errorf("telephony: originate: %w", err)
	}
	return res.SID, nil
}

// Hangup asks the carrier to terminate an in-progress call. Terminating an
// already-completed call is not an error.
func (c *Client) Hangup(ctx context.Context, callSID string) error {
	if callSID == "" {
		return errors.New("telephony: callSID must not be empty")
	}
	form := url.Values{}
	form.Set("Status", "completed")

	endpoint := fmt.Sprintf("%s/Accounts/%s/Calls/%s.json", c.apiBase, c.accountSID, callSID)
	if _, err := c.postForm(ctx, endpoint, form); err != nil {
		return fmt.Errorf("telephony: hangup %s: %w", callSID, err)
	}
	return nil
}

func (c *Client) postForm(ctx context.Context, endpoint string, form url.Values) (*callResource, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	httpReq.SetBasicAuth(c.accountSID, c.authToken)
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("carrier returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var res callResource
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, fmt.Errorf("decode call resource: %w", err)
	}
	return &res, nil
}

// streamTwiML renders the call instructions that bridge the answered call to
// our media-stream endpoint, tagging the stream with the session's call ID.
func streamTwiML(streamURL, callID string) string {
	var b strings.Builder
	b.WriteString(`<Response><Connect><Stream url="`)
	xmlEscape(&b, streamURL)
	b.WriteString(`">`)
	if callID != "" {
		b.WriteString(`<Parameter name="callId" value="`)
		xmlEscape(&b, callID)
		b.WriteString(`"/>`)
	}
	b.WriteString(`</Stream></Connect></Response>`)
	return b.String()
}

func xmlEscape(b *strings.Builder, s string) {
	for _, r := range s {
		switch r {
		case '&':
			b.WriteString("&amp;")
		case '<':
			b.WriteString("&lt;")
		case '>':
			b.WriteString("&gt;")
		case '"':
			b.WriteString("&quot;")
		default:
			b.WriteRune(r)
		}
	}
}

// StatusUpdate is one call-lifecycle webhook from the carrier, delivered as an
// HTML form post.
type StatusUpdate struct {
	CallSID  string
	Status   string
	Duration time.Duration
}

// ParseStatusUpdate extracts a StatusUpdate from webhook form values.
func ParseStatusUpdate(form url.Values) (StatusUpdate, error) {
	sid := form.Get("CallSid")
	status := form.Get("CallStatus")
	if sid == "" || status == "" {
		return StatusUpdate{}, errors.New("telephony: status webhook missing CallSid or CallStatus")
	}
	upd := StatusUpdate{CallSID: sid, Status: status}
	if d := form.Get("CallDuration"); d != "" {
		if secs, err := strconv.Atoi(d); err == nil {
			upd.Duration = time.Duration(secs) * time.Second
		}
	}
	return upd, nil
}

// IsTerminalStatus reports whether a carrier status ends the call lifecycle.
func IsTerminalStatus(status string) bool {
	switch status {
	case CallStatusCompleted, CallStatusBusy, CallStatusFailed, CallStatusNoAnswer, CallStatusCanceled:
		return true
	}
	return false
}
