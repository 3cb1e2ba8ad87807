// Package screens maps what the user is currently looking at to the text a
// voice session uses as context.
package screens

import (
	"fmt"
	"strings"
)

// Screen identifies one view of the dossier.
type Screen string

const (
	Landing      Screen = "LANDING"
	CaseAnalysis Screen = "CASE_ANALYSIS"
	Threads      Screen = "THREADS"
	Medical      Screen = "MEDICAL"
	Media        Screen = "MEDIA"
)

// ParseScreen accepts screen IDs case-insensitively, with dashes or spaces in
// place of underscores.
func ParseScreen(s string) (Screen, error) {
	normalized := strings.ToUpper(strings.TrimSpace(s))
	normalized = strings.NewReplacer("-", "_", " ", "_").Replace(normalized)
	if normalized == "" {
		return "", fmt.Errorf("empty screen id")
	}
	return Screen(normalized), nil
}

func (s Screen) String() string { return string(s) }

// Entry is one screen with its display title and context block.
type Entry struct {
	ID      Screen `yaml:"id" json:"id"`
	Title   string `yaml:"title" json:"title"`
	Context string `yaml:"context" json:"context"`
}

// Instructions are the prompt templates wrapped around screen context.
// {screen} and {context} are substituted where they appear.
type Instructions struct {
	Base                 string `yaml:"base" json:"base"`
	InitialContextHeader string `yaml:"initial_context_header" json:"initialContextHeader"`
	Greeting             string `yaml:"greeting" json:"greeting"`
	ContextUpdate        string `yaml:"context_update" json:"contextUpdate"`
}

func (i Instructions) render(template string, screen Screen, context string) string {
	return strings.NewReplacer("{screen}", string(screen), "{context}", context).Replace(template)
}

// merge fills every empty field of i from fallback.
func (i Instructions) merge(fallback Instructions) Instructions {
	if i.Base == "" {
		i.Base = fallback.Base
	}
	if i.InitialContextHeader == "" {
		i.InitialContextHeader = fallback.InitialContextHeader
	}
	if i.Greeting == "" {
		i.Greeting = fallback.Greeting
	}
	if i.ContextUpdate == "" {
		i.ContextUpdate = fallback.ContextUpdate
	}
	return i
}
