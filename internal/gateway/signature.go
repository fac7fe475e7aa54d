package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Sign returns the hex HMAC-SHA256 the provider attaches to a checkout
// callback: HMAC(secret, orderRef + "|" + paymentRef).
func Sign(orderRef, paymentRef, secret string) string {
	return sum([]byte(orderRef+"|"+paymentRef), secret)
}

// VerifySignature reports whether signature authenticates the pair. It never
// fails: anything that does not match is simply false.
func VerifySignature(orderRef, paymentRef, signature, secret string) bool {
	if secret == "" || signature == "" {
		return false
	}
	return equalHex(Sign(orderRef, paymentRef, secret), signature)
}

// SignWebhook returns the hex HMAC-SHA256 of a raw webhook body.
func SignWebhook(body []byte, secret string) string {
	return sum(body, secret)
}

func VerifyWebhook(body []byte, signature, secret string) bool {
	if secret == "" || signature == "" {
		return false
	}
	return equalHex(SignWebhook(body, secret), signature)
}

func sum(msg []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(msg)
	return hex.EncodeToString(mac.Sum(nil))
}

func equalHex(expected, got string) bool {
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(got)))
}
