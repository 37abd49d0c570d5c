// Package webhooks authenticates provider event deliveries and routes them to topic handlers.
package webhooks

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"strings"
)

const (
	HeaderHMAC       = "X-Shopify-Hmac-Sha256"
	HeaderTopic      = "X-Shopify-Topic"
	HeaderShopDomain = "X-Shopify-Shop-Domain"
	HeaderWebhookID  = "X-Shopify-Webhook-Id"
)

// Verify reports whether signature is the base64 HMAC-SHA256 of raw under secret.
// raw must be the body exactly as received; re-encoded JSON will not match.
func Verify(raw []byte, signature, secret string) bool {
	signature = strings.TrimSpace(signature)
	if signature == "" || secret == "" {
		return false
	}
	// Strict: the non-strict decoder ignores the padding bits of the last character, so
	// distinct headers would decode to the same digest.
	want, err := base64.StdEncoding.Strict().DecodeString(signature)
	if err != nil {
		return false
	}
	return hmac.Equal(Sign(raw, secret), want)
}

// Sign computes the raw HMAC-SHA256 digest the provider sends (before base64).
func Sign(raw []byte, secret string) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(raw)
	return mac.Sum(nil)
}

// SignatureHeader is Sign encoded the way it travels in HeaderHMAC.
func SignatureHeader(raw []byte, secret string) string {
	return base64.StdEncoding.EncodeToString(Sign(raw, secret))
}
