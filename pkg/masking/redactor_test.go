package masking

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRedactMasksAPIKey(t *testing.T) {
	out := Redact(`config: api_key="not-a-real-key-0000000000"`)
	assert.NotContains(t, out, "not-a-real-key-0000000000")
	assert.Contains(t, out, "[REDACTED]")
}

func TestRedactMasksPassword(t *testing.T) {
	out := Redact(`password: hunter2-super-secret`)
	assert.Contains(t, out, "[REDACTED]")
}

func TestRedactMasksBearerToken(t *testing.T) {
	out := Redact(`Authorization: bearer=eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9`)
	assert.Contains(t, out, "[REDACTED]")
}

func TestRedactLeavesUnrelatedTextAlone(t *testing.T) {
	in := "disk usage at 95% on host api-1"
	assert.Equal(t, in, Redact(in))
}

func TestRedactIgnoresShortValues(t *testing.T) {
	in := `api_key=short`
	assert.Equal(t, in, Redact(in))
}
