package errors

import (
	stderrors "errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeErrorMessage(t *testing.T) {
	err := NewConfigurationError("oracle returned no decision", io.ErrUnexpectedEOF).At("novel", "p1.png", 42, 3)
	assert.Equal(t,
		"CONFIGURATION: oracle returned no decision [document=novel image=p1.png group=42 unit=3] (caused by: unexpected EOF)",
		err.Error())
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)

	assert.Equal(t, "LOGIC: empty beam", NewLogicError("empty beam", nil).Error())
}

func TestAtKeepsExistingLocation(t *testing.T) {
	base := NewStorageError("lookup failed", nil).At("novel", "", 7, -1)
	moved := base.At("", "p2.png", 0, 1)

	assert.Equal(t, "novel", moved.Document)
	assert.Equal(t, "p2.png", moved.Image)
	assert.Equal(t, int64(7), moved.Group)
	assert.Equal(t, 1, moved.Unit)
	assert.Equal(t, -1, base.Unit, "At must not modify the receiver")
}

func TestCodeOfAndIsFatal(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantCode  ErrorCode
		wantCoded bool
		fatal     bool
	}{
		{"nil", nil, "", false, false},
		{"plain", stderrors.New("boom"), "", false, true},
		{"configuration", NewConfigurationError("x", nil), ErrorConfiguration, true, true},
		{"logic", NewLogicError("x", nil), ErrorLogic, true, true},
		{"storage", NewStorageError("x", nil), ErrorStorage, true, true},
		{"data quality", NewDataQualityError("bad letter", nil), ErrorDataQuality, true, false},
		{"wrapped", fmt.Errorf("decoding: %w", NewDataQualityError("x", nil)), ErrorDataQuality, true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, ok := CodeOf(tt.err)
			require.Equal(t, tt.wantCoded, ok)
			assert.Equal(t, tt.wantCode, code)
			assert.Equal(t, tt.fatal, IsFatal(tt.err))
		})
	}
}
