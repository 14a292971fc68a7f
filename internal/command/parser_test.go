package command

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name       string
		text       string
		action     Action
		deviceType string
		location   string
		value      *float64
		valid      bool
	}{
		{
			name:       "turn on with location",
			text:       "turn on the lights in the living room",
			action:     ActionOn,
			deviceType: "light",
			location:   "living room",
			valid:      true,
		},
		{
			name:       "turn off",
			text:       "Turn off the kitchen lamp",
			action:     ActionOff,
			deviceType: "light",
			location:   "kitchen",
			valid:      true,
		},
		{
			name:       "set with value",
			text:       "set the thermostat to 22 degrees",
			action:     ActionSet,
			deviceType: "thermostat",
			value:      floatPtr(22),
			valid:      true,
		},
		{
			name:       "dim maps to decrease",
			text:       "dim the bedroom lights",
			action:     ActionDecrease,
			deviceType: "light",
			location:   "bedroom",
			valid:      true,
		},
		{
			name:       "increase with value",
			text:       "increase the volume by 10",
			action:     ActionIncrease,
			deviceType: "speaker",
			value:      floatPtr(10),
			valid:      true,
		},
		{
			name:       "toggle",
			text:       "toggle the office fan",
			action:     ActionToggle,
			deviceType: "fan",
			location:   "office",
			valid:      true,
		},
		{
			name:       "set without value is not actionable",
			text:       "set the lights",
			action:     "",
			deviceType: "light",
			valid:      false,
		},
		{
			name:  "unrelated text",
			text:  "make me a sandwich",
			valid: false,
		},
		{
			name:       "action without device",
			text:       "turn on everything please",
			action:     ActionOn,
			deviceType: "",
			valid:      false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Parse(tt.text)

			assert.Equal(t, tt.action, p.Action)
			assert.Equal(t, tt.deviceType, p.DeviceType)
			assert.Equal(t, tt.location, p.Location)
			assert.Equal(t, tt.valid, p.Valid())
			if tt.value != nil {
				require.NotNil(t, p.Value)
				assert.Equal(t, *tt.value, *p.Value)
			}
		})
	}
}

func TestParseIsCaseInsensitive(t *testing.T) {
	p := Parse("TURN ON THE LIGHTS")
	assert.Equal(t, ActionOn, p.Action)
	assert.Equal(t, "light", p.DeviceType)
	assert.True(t, p.Valid())
}

func TestParsePrefersMultiWordPhrases(t *testing.T) {
	// "turn off" must not match the "on" hidden inside it.
	p := Parse("turn off the lights")
	assert.Equal(t, ActionOff, p.Action)
}

func TestSanitize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "turn on the lights", "turn on the lights"},
		{"collapses whitespace", "  turn   on\tthe lights  ", "turn on the lights"},
		{"strips control characters", "turn\x00 on\x1b the lights", "turn on the lights"},
		{"escapes html", "<script>alert(1)</script>", "&lt;script&gt;alert(1)&lt;/script&gt;"},
		{"empty", "   ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Sanitize(tt.in))
		})
	}
}

func TestSanitizeCapsLength(t *testing.T) {
	long := strings.Repeat("a", 1000)
	got := Sanitize(long)
	assert.Len(t, []rune(got), 500)
}

func floatPtr(v float64) *float64 { return &v }
