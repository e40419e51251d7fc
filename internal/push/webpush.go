// Package push delivers encrypted Web Push messages with VAPID credentials.
package push

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"

	"github.com/proxyhq/nudge-engine/internal/notification"
)

const (
	DefaultTTL     = 24 * time.Hour
	DefaultTimeout = 10 * time.Second
	DefaultSubject = "mailto:hello@proxy.app"

	maxErrorBody = 512
)

// StatusError is returned for any non-2xx gateway response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("push gateway returned %d", e.StatusCode)
	}
	return fmt.Sprintf("push gateway returned %d: %s", e.StatusCode, e.Body)
}

// Unwrap lets callers test for notification.ErrEndpointGone on 404 and 410.
func (e *StatusError) Unwrap() error {
	if IsGone(e.StatusCode) {
		return notification.ErrEndpointGone
	}
	return nil
}

// IsGone reports whether the gateway status means the subscription no
// longer exists.
func IsGone(status int) bool {
	return status == http.StatusNotFound || status == http.StatusGone
}

type Options struct {
	TTL time.Duration
	// Urgency is one of very-low, low, normal or high.
	Urgency string
	Timeout time.Duration
}

// WebPushTransport implements notification.Transport.
type WebPushTransport struct {
	client  *http.Client
	ttl     time.Duration
	urgency webpush.Urgency
}

func NewWebPushTransport(opts Options) *WebPushTransport {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	urgency := webpush.Urgency(opts.Urgency)
	if urgency == "" {
		urgency = webpush.UrgencyNormal
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	return &WebPushTransport{
		client:  &http.Client{Timeout: opts.Timeout},
		ttl:     opts.TTL,
		urgency: urgency,
	}
}

func (t *WebPushTransport) Send(ctx context.Context, target notification.PushTarget, payload []byte, keys notification.VAPIDKeys) error {
	sub := &webpush.Subscription{
		Endpoint: target.Endpoint,
		Keys: webpush.Keys{
			P256dh: target.P256dh,
			Auth:   target.Auth,
		},
	}

	resp, err := webpush.SendNotificationWithContext(ctx, payload, sub, &webpush.Options{
		HTTPClient:      t.client,
		Subscriber:      subscriber(keys.Subject),
		VAPIDPublicKey:  keys.PublicKey,
		VAPIDPrivateKey: keys.PrivateKey,
		TTL:             int(t.ttl.Seconds()),
		Urgency:         t.urgency,
	})
	if err != nil {
		return fmt.Errorf("send to %s: %w", shortEndpoint(target.Endpoint), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
}

// subscriber strips the mailto: scheme; webpush-go adds it back for
// anything that is not an https URL.
func subscriber(subject string) string {
	if subject == "" {
		subject = DefaultSubject
	}
	return strings.TrimPrefix(subject, "mailto:")
}

func shortEndpoint(endpoint string) string {
	if len(endpoint) > 50 {
		return endpoint[:50]
	}
	return endpoint
}

// GenerateVAPIDKeys returns a fresh key pair for configuration.
func GenerateVAPIDKeys() (publicKey, privateKey string, err error) {
	privateKey, publicKey, err = webpush.GenerateVAPIDKeys()
	return publicKey, privateKey, err
}
