package signer

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

var lowerHex64 = regexp.MustCompile(`^[0-9a-f]{64}$`)

func TestSign(t *testing.T) {
	body := []byte(`{"events":[{"message":"boom"}]}`)
	secret := []byte("shared-secret")

	t.Run("should be deterministic", func(t *testing.T) {
		first := Sign(body, secret)
		second := Sign(body, secret)
		assert.Equal(t, first, second)
		assert.Regexp(t, lowerHex64, first)
	})

	t.Run("should change when one byte of the body changes", func(t *testing.T) {
		altered := append([]byte{}, body...)
		altered[len(altered)-3] = 'X'
		assert.NotEqual(t, Sign(body, secret), Sign(altered, secret))
	})

	t.Run("should change with the secret", func(t *testing.T) {
		assert.NotEqual(t, Sign(body, secret), Sign(body, []byte("other")))
	})

	t.Run("should match the RFC 4231 test vector", func(t *testing.T) {
		got := Sign([]byte("what do ya want for nothing?"), []byte("Jefe"))
		assert.Equal(t, "5bdcc146bf60754e6a042426089575c75a003f089d2739839dec58b964ec3843", got)
	})
}

func TestVerify(t *testing.T) {
	body := []byte("payload")
	secret := []byte("s3cr3t")

	t.Run("should accept a matching signature", func(t *testing.T) {
		assert.True(t, Verify(body, secret, Sign(body, secret)))
	})

	t.Run("should reject a tampered body", func(t *testing.T) {
		assert.False(t, Verify([]byte("payload!"), secret, Sign(body, secret)))
	})

	t.Run("should reject malformed hex", func(t *testing.T) {
		assert.False(t, Verify(body, secret, "not-hex"))
	})
}
