package registration

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// ActivatedSentinel replaces the activation key once it has been
// consumed, so a spent key can never validate again.
const ActivatedSentinel = "ACTIVATED"

const defaultKeySalt = "activation"

// KeyCodec derives and validates opaque activation keys. Keys are a pure
// function of the process-wide secret and the username: nothing random is
// persisted and the same key can be re-derived for resends.
//
// Rotating the secret invalidates every outstanding unconsumed key at
// once. That is a documented limitation, not something the codec tries
// to work around.
type KeyCodec struct {
	secret []byte
	salt   string
}

// KeyCodecOption customizes codec construction.
type KeyCodecOption func(*KeyCodec)

// WithKeySalt overrides the default derivation salt.
func WithKeySalt(salt string) KeyCodecOption {
	return func(c *KeyCodec) {
		if salt != "" {
			c.salt = salt
		}
	}
}

// NewKeyCodec builds a codec. A missing secret is a configuration error
// surfaced here, at startup, never per request.
func NewKeyCodec(secret []byte, opts ...KeyCodecOption) (*KeyCodec, error) {
	if len(secret) == 0 {
		return nil, ErrMissingSigningSecret
	}

	c := &KeyCodec{
		secret: secret,
		salt:   defaultKeySalt,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	return c, nil
}

// Derive computes the activation key for a username. Deterministic: two
// calls always produce the same key.
func (c *KeyCodec) Derive(username string) string {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write([]byte(c.salt))
	mac.Write([]byte(":"))
	mac.Write([]byte(username))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify checks that key is the activation key for username. Comparison
// is constant time.
func (c *KeyCodec) Verify(key, username string) bool {
	if key == "" || key == ActivatedSentinel {
		return false
	}
	expected := c.Derive(username)
	return hmac.Equal([]byte(key), []byte(expected))
}
