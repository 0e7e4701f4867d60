package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/voicewire/call-control-plane/models"
	"go.uber.org/zap"
)

// KindTelephony identifies the telephony bridge transport
const KindTelephony = "telephony"

// TelephonyConnector adapts a telephony bridge that posts form-encoded call
// events and accepts responses on per-call callback URLs.
type TelephonyConnector struct {
	callbackBase string
	client       *http.Client
	logger       *zap.Logger
}

// NewTelephonyConnector creates a telephony transport adapter. callbackBase is
// the bridge's API root for delivering responses and hangups.
func NewTelephonyConnector(callbackBase string, logger *zap.Logger) *TelephonyConnector {
	return &TelephonyConnector{
		callbackBase: callbackBase,
		client:       &http.Client{Timeout: 10 * time.Second},
		logger:       logger,
	}
}

// Kind returns the telephony transport kind
func (t *TelephonyConnector) Kind() string { return KindTelephony }

// Validate checks a form-encoded bridge event for the required fields
func (t *TelephonyConnector) Validate(raw []byte) error {
	values, err := url.ParseQuery(string(raw))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrEventInvalid, err)
	}
	if values.Get("CallId") == "" {
		return fmt.Errorf("%w: missing CallId", ErrEventInvalid)
	}
	if values.Get("From") == "" {
		return fmt.Errorf("%w: missing From", ErrEventInvalid)
	}
	return nil
}

// ExtractCallData normalizes a validated bridge event
func (t *TelephonyConnector) ExtractCallData(raw []byte) (*CallData, error) {
	if err := t.Validate(raw); err != nil {
		return nil, err
	}
	values, err := url.ParseQuery(string(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEventInvalid, err)
	}

	direction := models.DirectionInbound
	if values.Get("Direction") == "outbound" {
		direction = models.DirectionOutbound
	}

	return &CallData{
		ConnectionID:  values.Get("CallId"),
		CallerAddress: values.Get("From"),
		Direction:     direction,
		Status:        values.Get("CallStatus"),
		LanguageHint:  values.Get("Language"),
		DialectHint:   values.Get("Dialect"),
	}, nil
}

// SendResponse posts the response to the bridge's per-call endpoint
func (t *TelephonyConnector) SendResponse(ctx context.Context, session *models.CallSession, resp *Response) error {
	payload := map[string]interface{}{
		"text":         resp.Text,
		"audio_format": resp.AudioFormat,
		"metadata":     resp.Metadata,
	}
	return t.post(ctx, t.callURL(session, "respond"), payload)
}

// EndCall asks the bridge to hang up the call
func (t *TelephonyConnector) EndCall(ctx context.Context, session *models.CallSession) error {
	return t.post(ctx, t.callURL(session, "hangup"), map[string]interface{}{})
}

func (t *TelephonyConnector) callURL(session *models.CallSession, action string) string {
	return fmt.Sprintf("%s/calls/%s/%s", t.callbackBase, session.Transport.ConnectionID, action)
}

func (t *TelephonyConnector) post(ctx context.Context, target string, payload map[string]interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding bridge payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building bridge request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("calling telephony bridge: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode >= 300 {
		return fmt.Errorf("telephony bridge returned %d for %s", res.StatusCode, target)
	}
	return nil
}
