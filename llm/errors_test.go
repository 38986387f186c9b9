package llm_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/c360studio/semprompt/llm"
	"github.com/stretchr/testify/assert"
)

func TestErrorClassification(t *testing.T) {
	base := errors.New("boom")

	tests := []struct {
		name          string
		err           error
		wantTransient bool
		wantFatal     bool
	}{
		{
			name:          "transient",
			err:           llm.NewTransientError(base),
			wantTransient: true,
		},
		{
			name:      "fatal",
			err:       llm.NewFatalError(base),
			wantFatal: true,
		},
		{
			name:          "wrapped transient survives fmt.Errorf",
			err:           fmt.Errorf("outer: %w", llm.NewTransientError(base)),
			wantTransient: true,
		},
		{
			name:      "wrapped fatal survives fmt.Errorf",
			err:       fmt.Errorf("outer: %w", llm.NewFatalError(base)),
			wantFatal: true,
		},
		{
			name: "plain error is neither",
			err:  base,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantTransient, llm.IsTransient(tt.err))
			assert.Equal(t, tt.wantFatal, llm.IsFatal(tt.err))
		})
	}
}

func TestErrorUnwrap(t *testing.T) {
	base := errors.New("root cause")

	assert.ErrorIs(t, llm.NewTransientError(base), base)
	assert.ErrorIs(t, llm.NewFatalError(base), base)
	assert.Equal(t, "root cause", llm.NewTransientError(base).Error())
}
