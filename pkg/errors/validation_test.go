package errors

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateNodeID(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"valid simple", "conv1", false},
		{"valid keras style", "block1_conv/BiasAdd", false},
		{"valid unicode", "schicht_ä", false},

		{"empty", "", true},
		{"too long", strings.Repeat("a", 600), true},
		{"null byte", "foo\x00bar", true},
		{"control char", "foo\x01bar", true},
		{"newline", "foo\nbar", true},
		{"leading space", " conv1", true},
		{"trailing space", "conv1 ", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateNodeID(tt.input)
			if tt.wantErr {
				assert.True(t, Is(err, ErrCodeInvalidNodeID), "ValidateNodeID(%q) = %v", tt.input, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateModelPath(t *testing.T) {
	assert.NoError(t, ValidateModelPath("models/resnet.json"))
	assert.True(t, Is(ValidateModelPath(""), ErrCodeInvalidInput))
	assert.True(t, Is(ValidateModelPath("a\x00b"), ErrCodeInvalidInput))
}
