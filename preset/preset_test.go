package preset

import (
	"testing"

	"github.com/c360studio/semprompt/enhance"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultPreset(t *testing.T) {
	p := DefaultPreset()

	assert.Equal(t, DefaultPresetName, p.Name)
	assert.NotEmpty(t, p.Role)
	assert.NotEmpty(t, p.Context)
	assert.NotEmpty(t, p.Task)
	assert.NoError(t, p.Validate())
}

func TestPresetValidate(t *testing.T) {
	temp := func(v float64) *float64 { return &v }

	tests := []struct {
		name    string
		preset  Preset
		wantErr bool
	}{
		{
			name:    "valid",
			preset:  Preset{Name: "reviewer", Role: "a reviewer", Task: "review"},
			wantErr: false,
		},
		{
			name:    "missing name",
			preset:  Preset{Role: "a reviewer"},
			wantErr: true,
		},
		{
			name:    "whitespace name",
			preset:  Preset{Name: "   ", Role: "a reviewer"},
			wantErr: true,
		},
		{
			name:    "no content fields",
			preset:  Preset{Name: "empty"},
			wantErr: true,
		},
		{
			name:    "temperature in range",
			preset:  Preset{Name: "warm", Task: "t", Temperature: temp(1.0)},
			wantErr: false,
		},
		{
			name:    "temperature too high",
			preset:  Preset{Name: "hot", Task: "t", Temperature: temp(1.5)},
			wantErr: true,
		},
		{
			name:    "temperature negative",
			preset:  Preset{Name: "cold", Task: "t", Temperature: temp(-0.1)},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.preset.Validate()
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestPresetFill(t *testing.T) {
	p := Preset{
		Name:    "tutor",
		Role:    "preset role",
		Context: "preset context",
		Task:    "preset task",
	}

	tests := []struct {
		name string
		in   enhance.PromptInputs
		want enhance.PromptInputs
	}{
		{
			name: "all empty takes preset",
			in:   enhance.PromptInputs{},
			want: enhance.PromptInputs{Role: "preset role", Context: "preset context", Task: "preset task"},
		},
		{
			name: "explicit fields win",
			in:   enhance.PromptInputs{Role: "my role"},
			want: enhance.PromptInputs{Role: "my role", Context: "preset context", Task: "preset task"},
		},
		{
			name: "whitespace counts as empty",
			in:   enhance.PromptInputs{Role: "  \n", Task: "my task"},
			want: enhance.PromptInputs{Role: "preset role", Context: "preset context", Task: "my task"},
		},
		{
			name: "all explicit untouched",
			in:   enhance.PromptInputs{Role: "r", Context: "c", Task: "t"},
			want: enhance.PromptInputs{Role: "r", Context: "c", Task: "t"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.Fill(tt.in))
		})
	}
}

func TestPatternBase(t *testing.T) {
	tests := []struct {
		pattern string
		want    string
	}{
		{"presets/**/*.yaml", "presets"},
		{"presets/*.yaml", "presets"},
		{"*.yaml", "."},
		{"/etc/semprompt/presets/*.yml", "/etc/semprompt/presets"},
		{"/*.yaml", "/"},
		{"presets/team.yaml", "presets"},
		{"team.yaml", "."},
	}

	for _, tt := range tests {
		t.Run(tt.pattern, func(t *testing.T) {
			assert.Equal(t, tt.want, patternBase(tt.pattern))
		})
	}
}
