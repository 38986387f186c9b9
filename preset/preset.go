// Package preset manages reusable role/context/task templates. A built-in
// default preset is always available; additional presets are loaded from
// YAML files and can be reloaded while the service runs.
package preset

import (
	"fmt"
	"strings"

	"github.com/c360studio/semprompt/enhance"
)

// DefaultPresetName is the name of the built-in preset.
const DefaultPresetName = "default"

// Preset is a named template for the three enhancement inputs. Model and
// Temperature are optional generation hints a caller may honor.
type Preset struct {
	Name        string   `yaml:"name" json:"name"`
	Description string   `yaml:"description,omitempty" json:"description,omitempty"`
	Role        string   `yaml:"role" json:"role"`
	Context     string   `yaml:"context" json:"context"`
	Task        string   `yaml:"task" json:"task"`
	Model       string   `yaml:"model,omitempty" json:"model,omitempty"`
	Temperature *float64 `yaml:"temperature,omitempty" json:"temperature,omitempty"`
}

// Validate checks that the preset is usable
func (p *Preset) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("preset name is required")
	}
	if p.Role == "" && p.Context == "" && p.Task == "" {
		return fmt.Errorf("preset %q has no role, context, or task", p.Name)
	}
	if p.Temperature != nil && (*p.Temperature < 0 || *p.Temperature > 1.2) {
		return fmt.Errorf("preset %q temperature must be between 0 and 1.2", p.Name)
	}
	return nil
}

// Fill populates empty input fields from the preset. Fields the caller
// set explicitly always win; whitespace-only fields count as empty.
func (p *Preset) Fill(in enhance.PromptInputs) enhance.PromptInputs {
	if strings.TrimSpace(in.Role) == "" {
		in.Role = p.Role
	}
	if strings.TrimSpace(in.Context) == "" {
		in.Context = p.Context
	}
	if strings.TrimSpace(in.Task) == "" {
		in.Task = p.Task
	}
	return in
}

// DefaultPreset returns the built-in preset that is available even when
// no preset files are configured.
func DefaultPreset() Preset {
	return Preset{
		Name:        DefaultPresetName,
		Description: "Beginner building an app with AI assistance",
		Role:        "You are an experienced Python developer.",
		Context:     "I am a complete beginner who does not know coding but am learning to use AI for coding.",
		Task:        "Help me build a Python app in Streamlit that enhances prompts based on Role, Context, and Task.",
	}
}
