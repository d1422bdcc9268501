package normative

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"dga-engine/internal/dga"
)

// Client asks a remote normative service for verdicts. The remote side serves
// POST {base}/api/v1/normative/{method} with a gas reading as JSON body and
// answers with a Diagnosis.
type Client struct {
	base string
	rest *resty.Client
}

func NewClient(base string, timeout time.Duration) *Client {
	r := resty.New()
	if timeout > 0 {
		r.SetTimeout(timeout)
	} else {
		r.SetTimeout(5 * time.Second)
	}
	r.SetHeader("Content-Type", "application/json")
	return &Client{base: strings.TrimRight(base, "/"), rest: r}
}

type errorResp struct {
	Error string `json:"error"`
}

func (c *Client) Evaluate(ctx context.Context, method Method, reading dga.GasReading) (Diagnosis, error) {
	var result Diagnosis
	var apiErr errorResp
	resp, err := c.rest.R().
		SetContext(ctx).
		SetBody(reading).
		SetResult(&result).
		SetError(&apiErr).
		Post(c.base + "/api/v1/normative/" + string(method))
	if err != nil {
		return Diagnosis{}, fmt.Errorf("normative request failed: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		msg := apiErr.Error
		if msg == "" {
			msg = resp.String()
		}
		return Diagnosis{}, fmt.Errorf("normative service: status %d: %s", resp.StatusCode(), msg)
	}
	if !result.Label.Valid() {
		return Diagnosis{}, fmt.Errorf("normative service returned invalid label %d", int(result.Label))
	}
	return result, nil
}

func (c *Client) Diagnose(ctx context.Context, method Method, reading dga.GasReading) (dga.FaultLabel, error) {
	d, err := c.Evaluate(ctx, method, reading)
	if err != nil {
		return 0, err
	}
	return d.Label, nil
}
