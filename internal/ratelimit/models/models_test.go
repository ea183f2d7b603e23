package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKey(t *testing.T) {
	assert.Equal(t, "ekyc:ratelimit:SanctionsScreeningService", Key("SanctionsScreeningService"))
}
