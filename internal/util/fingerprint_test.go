package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFingerprint(t *testing.T) {
	a := Fingerprint("no2", "2020-01-01", "2020-12-31")
	assert.Len(t, a, 8)
	assert.Equal(t, a, Fingerprint("no2", "2020-01-01", "2020-12-31"))
	assert.NotEqual(t, a, Fingerprint("no2", "2020-01-01", "2021-12-31"))
	assert.NotEqual(t, Fingerprint("ab", "c"), Fingerprint("a", "bc"))
}
