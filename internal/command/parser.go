package command

import (
	"regexp"
	"strconv"
	"strings"
)

// Action is the normalized intent extracted from a spoken command.
type Action string

const (
	ActionOn       Action = "on"
	ActionOff      Action = "off"
	ActionToggle   Action = "toggle"
	ActionSet      Action = "set"
	ActionIncrease Action = "increase"
	ActionDecrease Action = "decrease"
)

// Keyword tables are matched in declaration order; the first phrase found in
// the text wins, so multi-word phrases come before their single-word
// prefixes.
var actionKeywords = []struct {
	action  Action
	phrases []string
}{
	{ActionOff, []string{"turn off", "switch off", "shut down", "power off", "off"}},
	{ActionOn, []string{"turn on", "switch on", "power on", "start", "on"}},
	{ActionToggle, []string{"toggle", "flip"}},
	{ActionIncrease, []string{"increase", "raise", "brighten", "louder", "warmer", "up"}},
	{ActionDecrease, []string{"decrease", "lower", "dim", "quieter", "cooler", "down"}},
	{ActionSet, []string{"set", "change", "adjust"}},
}

var deviceKeywords = []struct {
	deviceType string
	phrases    []string
}{
	{"light", []string{"light", "lights", "lamp", "bulb"}},
	{"thermostat", []string{"thermostat", "temperature", "heating", "heater", "ac", "air conditioner"}},
	{"speaker", []string{"speaker", "music", "volume"}},
	{"tv", []string{"tv", "television"}},
	{"fan", []string{"fan"}},
	{"blinds", []string{"blinds", "curtains", "shades"}},
	{"lock", []string{"lock", "door"}},
	{"outlet", []string{"outlet", "plug", "socket"}},
}

var locations = []string{
	"living room", "dining room", "bedroom", "kitchen", "bathroom",
	"office", "hallway", "garage", "basement", "attic", "garden",
}

var valueRegex = regexp.MustCompile(`(?:\bto\b|\bat\b|\bby\b)?\s*(\d+(?:\.\d+)?)\s*(?:%|percent|degrees?)?`)

// ParsedCommand is the structured form of a spoken command. Zero fields mean
// the corresponding part was not found in the text.
type ParsedCommand struct {
	Action     Action
	DeviceType string
	Location   string
	Value      *float64
}

// Valid reports whether enough was extracted to act on: at minimum an action
// and a device type.
func (p ParsedCommand) Valid() bool {
	return p.Action != "" && p.DeviceType != ""
}

// Parse extracts action, device type, location and a numeric value from
// free-form English text. Matching is keyword based and case insensitive.
func Parse(text string) ParsedCommand {
	lowered := " " + strings.ToLower(text) + " "
	var p ParsedCommand

	for _, entry := range actionKeywords {
		if containsPhrase(lowered, entry.phrases) {
			p.Action = entry.action
			break
		}
	}

	for _, entry := range deviceKeywords {
		if containsPhrase(lowered, entry.phrases) {
			p.DeviceType = entry.deviceType
			break
		}
	}

	for _, loc := range locations {
		if strings.Contains(lowered, " "+loc+" ") {
			p.Location = loc
			break
		}
	}

	if match := valueRegex.FindStringSubmatch(lowered); match != nil {
		if v, err := strconv.ParseFloat(match[1], 64); err == nil {
			p.Value = &v
		}
	}

	// "set" without a target value is not actionable.
	if p.Action == ActionSet && p.Value == nil {
		p.Action = ""
	}

	return p
}

func containsPhrase(lowered string, phrases []string) bool {
	for _, phrase := range phrases {
		if strings.Contains(lowered, " "+phrase+" ") {
			return true
		}
	}
	return false
}
