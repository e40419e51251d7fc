package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// VAPIDKeys identify this sender to the push gateways.
type VAPIDKeys struct {
	PublicKey  string
	PrivateKey string
	Subject    string
}

// Configured reports whether both halves of the key pair are present.
func (k VAPIDKeys) Configured() bool {
	return k.PublicKey != "" && k.PrivateKey != ""
}

// PushTarget is the subscriber side of a Web Push delivery.
type PushTarget struct {
	Endpoint string
	P256dh   string
	Auth     string
}

// Transport delivers an opaque payload to one push endpoint. Implementations
// wrap ErrEndpointGone when the gateway reports the subscription as gone.
type Transport interface {
	Send(ctx context.Context, target PushTarget, payload []byte, keys VAPIDKeys) error
}

// PayloadMeta is the constant part of every notification payload.
type PayloadMeta struct {
	Icon     string
	Badge    string
	Tag      string
	ClickURL string
}

var DefaultPayloadMeta = PayloadMeta{
	Icon:     "/icons/icon-192.png",
	Badge:    "/icons/badge-72.png",
	Tag:      "proxy-nudge",
	ClickURL: "/",
}

// Payload is the JSON document the service worker renders.
type Payload struct {
	Title string      `json:"title"`
	Body  string      `json:"body"`
	Icon  string      `json:"icon"`
	Badge string      `json:"badge"`
	Tag   string      `json:"tag"`
	Data  PayloadData `json:"data"`
}

type PayloadData struct {
	URL string `json:"url"`
}

// DeliveryResult classifies a single delivery attempt.
type DeliveryResult struct {
	Delivered bool
	Gone      bool
	Err       error
}

// Deliverer is the push delivery unit. It makes exactly one attempt per call.
type Deliverer struct {
	transport Transport
	keys      VAPIDKeys
	meta      PayloadMeta
}

// NewDeliverer sends through transport with the process-wide keys and
// payload metadata.
func NewDeliverer(transport Transport, keys VAPIDKeys, meta PayloadMeta) *Deliverer {
	return &Deliverer{transport: transport, keys: keys, meta: meta}
}

// Keys returns the configured sender credentials.
func (d *Deliverer) Keys() VAPIDKeys {
	return d.keys
}

// BuildPayload renders the notification document for one subscriber.
func (d *Deliverer) BuildPayload(persona Persona, body string) Payload {
	return Payload{
		Title: strings.ToUpper(persona.Name),
		Body:  body,
		Icon:  d.meta.Icon,
		Badge: d.meta.Badge,
		Tag:   d.meta.Tag,
		Data:  PayloadData{URL: d.meta.ClickURL},
	}
}

// Deliver sends body to the subscription and classifies the outcome.
func (d *Deliverer) Deliver(ctx context.Context, sub Subscription, persona Persona, body string) DeliveryResult {
	payload, err := json.Marshal(d.BuildPayload(persona, body))
	if err != nil {
		return DeliveryResult{Err: fmt.Errorf("marshal payload: %w", err)}
	}

	target := PushTarget{Endpoint: sub.Endpoint, P256dh: sub.P256dh, Auth: sub.Auth}
	if err := d.transport.Send(ctx, target, payload, d.keys); err != nil {
		return DeliveryResult{
			Gone: errors.Is(err, ErrEndpointGone),
			Err:  err,
		}
	}
	return DeliveryResult{Delivered: true}
}
