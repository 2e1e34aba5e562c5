package outreach

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadflow/internal/model"
	"github.com/sells-group/leadflow/internal/resilience"
)

// dispatchPayload is the wire format posted to the outreach provider.
type dispatchPayload struct {
	LeadID  string               `json:"lead_id"`
	Company string               `json:"company"`
	Email   string               `json:"email,omitempty"`
	Phone   string               `json:"phone,omitempty"`
	Steps   []model.OutreachStep `json:"steps"`
}

// WebhookExecutor posts outreach sequences to an external scheduler endpoint.
// Transient delivery failures are retried; 4xx responses are not.
type WebhookExecutor struct {
	url    string
	client *http.Client
	retry  resilience.RetryConfig
}

// NewWebhookExecutor creates an executor targeting the given endpoint.
func NewWebhookExecutor(url string, retry resilience.RetryConfig) *WebhookExecutor {
	return &WebhookExecutor{
		url:    url,
		client: &http.Client{Timeout: 15 * time.Second},
		retry:  retry,
	}
}

func (e *WebhookExecutor) Dispatch(ctx context.Context, lead model.Lead, seq []model.OutreachStep) error {
	if len(seq) == 0 {
		return nil
	}

	payload, err := json.Marshal(dispatchPayload{
		LeadID:  lead.ID,
		Company: lead.Company,
		Email:   lead.Email,
		Phone:   lead.Phone,
		Steps:   seq,
	})
	if err != nil {
		return eris.Wrap(err, "outreach: marshal dispatch")
	}

	err = resilience.Do(ctx, e.retry, func(ctx context.Context) error {
		return e.post(ctx, payload)
	})
	if err != nil {
		return eris.Wrapf(err, "outreach: dispatch lead %s", lead.ID)
	}

	zap.L().Info("outreach: sequence dispatched",
		zap.String("lead_id", lead.ID),
		zap.Int("steps", len(seq)),
	)
	return nil
}

func (e *WebhookExecutor) post(ctx context.Context, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "outreach: create request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return resilience.NewTransientError(err, 0)
	}
	defer resp.Body.Close() //nolint:errcheck

	switch {
	case resp.StatusCode < 300:
		return nil
	case resilience.IsTransientHTTPStatus(resp.StatusCode):
		return resilience.NewTransientError(
			eris.Errorf("outreach: endpoint returned status %d", resp.StatusCode), resp.StatusCode)
	default:
		return eris.Errorf("outreach: endpoint returned status %d", resp.StatusCode)
	}
}
