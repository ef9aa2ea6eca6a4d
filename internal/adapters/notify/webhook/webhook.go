// Package webhook entrega acciones por HTTP POST a un endpoint del cuidador.
package webhook

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"medication-adherence/internal/platform/httpclient"
	"medication-adherence/internal/ports/notify"
)

type Options struct {
	URL     string
	Token   string
	Secret  string // firma HMAC del body (httpclient.SignatureHeader)
	Timeout time.Duration

	// Transport opcional (tests).
	Transport http.RoundTripper
}

type Dispatcher struct {
	client *httpclient.Client
	url    string
	token  string
}

// Payload es el cuerpo que recibe el endpoint.
type Payload struct {
	PatientID string          `json:"patient_id"`
	SentAt    time.Time       `json:"sent_at"`
	Actions   []notify.Action `json:"actions"`
}

func New(opts Options) (*Dispatcher, error) {
	if opts.URL == "" {
		return nil, errors.New("webhook: url is required")
	}
	if err := httpclient.ValidateURL(opts.URL); err != nil {
		return nil, fmt.Errorf("webhook: %w", err)
	}
	c := httpclient.New(httpclient.Options{Timeout: opts.Timeout, Transport: opts.Transport, Secret: opts.Secret})
	return &Dispatcher{client: c, url: opts.URL, token: opts.Token}, nil
}

func (d *Dispatcher) Dispatch(ctx context.Context, patientID string, actions []notify.Action) error {
	if len(actions) == 0 {
		return nil
	}

	headers := map[string]string{}
	if d.token != "" {
		headers["Authorization"] = "Bearer " + d.token
	}

	body := Payload{PatientID: patientID, SentAt: time.Now().UTC(), Actions: actions}
	if err := d.client.PostJSON(ctx, d.url, headers, body, nil); err != nil {
		return fmt.Errorf("webhook dispatch %s: %w", patientID, err)
	}
	return nil
}
