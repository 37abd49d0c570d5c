package install

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeShop(t *testing.T) {
	ok := map[string]string{
		"demo":                          "demo.myshopify.com",
		"Demo.MyShopify.com":            "demo.myshopify.com",
		"https://demo.myshopify.com/":   "demo.myshopify.com",
		"demo-2.myshopify.com/admin?x=": "demo-2.myshopify.com",
	}
	for in, want := range ok {
		got, err := NormalizeShop(in, "")
		require.NoError(t, err, in)
		require.Equal(t, want, got)
	}
	for _, in := range []string{"", "demo.example.com", "-demo", "a.b.myshopify.com", "demo.myshopify.com.evil.io"} {
		_, err := NormalizeShop(in, ".myshopify.com")
		require.ErrorIs(t, err, ErrInvalidShop, in)
	}
	got, err := NormalizeShop("local", "test.local")
	require.NoError(t, err)
	require.Equal(t, "local.test.local", got)
}

func TestVerifyCallbackQuery(t *testing.T) {
	q := url.Values{"shop": {"demo.myshopify.com"}, "code": {"abc"}, "timestamp": {"1"}}
	q.Set("hmac", SignCallbackQuery(q, "s3cret"))
	require.True(t, VerifyCallbackQuery(q, "s3cret"))
	require.False(t, VerifyCallbackQuery(q, "other"))

	// "signature" is excluded from the signed message.
	q.Set("signature", "ignored")
	require.True(t, VerifyCallbackQuery(q, "s3cret"))

	q.Set("code", "abd")
	require.False(t, VerifyCallbackQuery(q, "s3cret"))

	bad := url.Values{"hmac": {"zz"}}
	require.False(t, VerifyCallbackQuery(bad, "s3cret"))
	require.False(t, VerifyCallbackQuery(url.Values{}, "s3cret"))
}
