package webhooks

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestVerify(t *testing.T) {
	body := []byte(`{"id":1,"domain":"demo.myshopify.com"}`)
	sig := SignatureHeader(body, "whsec")
	require.True(t, Verify(body, sig, "whsec"))
	require.True(t, Verify(body, " "+sig+" ", "whsec"))

	require.False(t, Verify(body, sig, "other"))
	require.False(t, Verify(body, "", "whsec"))
	require.False(t, Verify(body, sig, ""))
	require.False(t, Verify(body, "%%%not-base64", "whsec"))
	require.False(t, Verify(body, base64.StdEncoding.EncodeToString([]byte("short")), "whsec"))
}

func TestVerifyIsSensitiveToEveryBit(t *testing.T) {
	body := []byte(`{"current":["read_products"]}`)
	sig := SignatureHeader(body, "whsec")
	for i := range body {
		for bit := 0; bit < 8; bit++ {
			flipped := append([]byte(nil), body...)
			flipped[i] ^= 1 << bit
			require.False(t, Verify(flipped, sig, "whsec"), "byte %d bit %d", i, bit)
		}
	}
}

func TestVerifyRejectsEveryFlippedSignatureBit(t *testing.T) {
	body := []byte(`{"id":1,"domain":"demo.myshopify.com"}`)
	for _, secret := range []string{"a", "b", "e", "whsec", "shpss_0123456789", "k3y", "x", "another-secret"} {
		sig := []byte(SignatureHeader(body, secret))
		for i := range sig {
			for bit := 0; bit < 8; bit++ {
				flipped := append([]byte(nil), sig...)
				flipped[i] ^= 1 << bit
				require.False(t, Verify(body, string(flipped), secret), "secret %q byte %d bit %d: %s", secret, i, bit, flipped)
			}
		}
	}
}
