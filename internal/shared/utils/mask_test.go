package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaskSecret(t *testing.T) {
	assert.Equal(t, "", MaskSecret(""))
	assert.Equal(t, "***", MaskSecret("key"))
	assert.Equal(t, "sk_l***", MaskSecret("sk_live_abc123"))
}
