package cloudinary

import (
	"crypto/sha1"
	"encoding/hex"
	"testing"
)

func TestSign(t *testing.T) {
	c := New("demo", "key", "shhh", "campustrack/students")

	params := map[string]string{
		"timestamp": "1700000000",
		"folder":    "campustrack/students",
	}
	got := c.sign(params)

	// Sorted params joined with & and the secret appended, SHA1-hexed.
	sum := sha1.Sum([]byte("folder=campustrack/students&timestamp=1700000000shhh"))
	want := hex.EncodeToString(sum[:])
	if got != want {
		t.Fatalf("signature mismatch: got %s, want %s", got, want)
	}
}

func TestSignExcludesAPIKey(t *testing.T) {
	c := New("demo", "key", "shhh", "")
	base := c.sign(map[string]string{"timestamp": "1700000000"})

	// The signature is computed before api_key is added to the form, so
	// the same params must always sign the same regardless of key config.
	c.APIKey = "different"
	if got := c.sign(map[string]string{"timestamp": "1700000000"}); got != base {
		t.Fatalf("signature depends on api key: %s vs %s", got, base)
	}
}
