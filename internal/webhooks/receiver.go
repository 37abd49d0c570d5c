package webhooks

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"appgate/pkg/logger"
	"appgate/pkg/metrics"
	"appgate/pkg/problems"
)

// MaxBodyBytes caps a delivery body.
const MaxBodyBytes = 1 << 20

// Receiver is the HTTP endpoint the provider posts deliveries to.
type Receiver struct {
	secret     string
	dispatcher *Dispatcher
	ledger     Ledger
	log        *zap.SugaredLogger
	metrics    *metrics.Metrics
}

// NewReceiver wires verification, the dispatcher and an optional delivery ledger.
func NewReceiver(secret string, d *Dispatcher, ledger Ledger, log *zap.SugaredLogger, m *metrics.Metrics) *Receiver {
	return &Receiver{secret: secret, dispatcher: d, ledger: ledger, log: logger.OrNop(log), metrics: metrics.OrDiscard(m)}
}

func (rc *Receiver) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	topic := strings.TrimSpace(r.Header.Get(HeaderTopic))
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			rc.count("", "too_large")
			problems.Write(w, http.StatusRequestEntityTooLarge, "payload-too-large", "Payload Too Large", "")
			return
		}
		rc.count("", "bad_request")
		problems.Write(w, http.StatusBadRequest, "bad-request", "Bad Request", "could not read body")
		return
	}

	sig := r.Header.Get(HeaderHMAC)
	if !Verify(raw, sig, rc.secret) {
		rc.count("", "invalid_signature")
		rc.log.Warnw("webhook signature rejected", "topic", topic, "shop", r.Header.Get(HeaderShopDomain))
		problems.Unauthorized(w, "invalid-webhook-signature", "webhook signature does not match")
		return
	}

	ev := Event{
		Topic:      topic,
		TenantID:   strings.ToLower(strings.TrimSpace(r.Header.Get(HeaderShopDomain))),
		DeliveryID: strings.TrimSpace(r.Header.Get(HeaderWebhookID)),
		Payload:    raw,
		Signature:  sig,
	}
	if ev.Topic == "" {
		rc.count("", "bad_request")
		problems.Write(w, http.StatusBadRequest, "bad-request", "Bad Request", "missing "+HeaderTopic)
		return
	}

	if rc.ledger != nil && ev.DeliveryID != "" {
		seen, err := rc.ledger.Seen(r.Context(), ev.DeliveryID)
		if err != nil {
			// Dispatching again is safe; refusing would make the provider retry forever.
			rc.log.Warnw("webhook ledger unavailable", "delivery", ev.DeliveryID, "err", err)
		} else if seen {
			rc.count(topic, "duplicate")
			w.WriteHeader(http.StatusOK)
			return
		}
	}

	if err := rc.dispatcher.Dispatch(r.Context(), ev); err != nil {
		rc.count(topic, "error")
		rc.log.Errorw("webhook handler failed", "topic", topic, "shop", ev.TenantID, "delivery", ev.DeliveryID, "err", err)
		problems.Write(w, http.StatusInternalServerError, "webhook-failed", "Internal Server Error", "handler failed")
		return
	}

	if rc.ledger != nil && ev.DeliveryID != "" {
		if err := rc.ledger.Record(r.Context(), ev.DeliveryID); err != nil {
			rc.log.Warnw("webhook ledger record failed", "delivery", ev.DeliveryID, "err", err)
		}
	}
	if rc.dispatcher.Handles(topic) {
		rc.count(topic, "ok")
	} else {
		rc.count(topic, "unhandled")
	}
	w.WriteHeader(http.StatusOK)
}

// count labels unverified deliveries as "unverified" so forged topic headers cannot grow the series set.
func (rc *Receiver) count(topic, result string) {
	if topic == "" {
		topic = "unverified"
	}
	rc.metrics.Webhooks.WithLabelValues(strings.ToLower(topic), result).Inc()
}
