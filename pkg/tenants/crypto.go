package tenants

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
)

const (
	blobPlain byte = 0x00
	blobGCMv1 byte = 0x01
)

// Sealer protects access tokens at rest. With an empty key tokens are stored as-is
// (tagged 0x00) so a dev database stays readable.
type Sealer struct {
	key []byte
}

func NewSealer(secret string) Sealer {
	if secret == "" {
		return Sealer{}
	}
	h := sha256.Sum256([]byte(secret))
	return Sealer{key: h[:]}
}

// Seal returns 0x00|plain or 0x01|nonce|ciphertext[GCM].
func (s Sealer) Seal(plain string) ([]byte, error) {
	if len(s.key) == 0 {
		return append([]byte{blobPlain}, plain...), nil
	}
	gcm, err := s.gcm()
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	ct := gcm.Seal(nil, nonce, []byte(plain), nil)
	out := make([]byte, 1+len(nonce)+len(ct))
	out[0] = blobGCMv1
	copy(out[1:1+len(nonce)], nonce)
	copy(out[1+len(nonce):], ct)
	return out, nil
}

func (s Sealer) Open(blob []byte) (string, error) {
	if len(blob) == 0 {
		return "", errors.New("empty credential blob")
	}
	switch blob[0] {
	case blobPlain:
		return string(blob[1:]), nil
	case blobGCMv1:
	default:
		return "", fmt.Errorf("unsupported credential blob version %d", blob[0])
	}
	if len(s.key) == 0 {
		return "", errors.New("credential is encrypted but no ENCRYPTION_KEY is configured")
	}
	gcm, err := s.gcm()
	if err != nil {
		return "", err
	}
	if len(blob) < 1+gcm.NonceSize() {
		return "", errors.New("short nonce")
	}
	nonce := blob[1 : 1+gcm.NonceSize()]
	plain, err := gcm.Open(nil, nonce, blob[1+gcm.NonceSize():], nil)
	if err != nil {
		return "", err
	}
	return string(plain), nil
}

func (s Sealer) gcm() (cipher.AEAD, error) {
	block, err := aes.NewCipher(s.key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
