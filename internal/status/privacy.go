package status

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
)

const (
	pipewireNode     = "PipeWire:Interface:Node"
	classAudioInput  = "Stream/Input/Audio"
	classVideoInput  = "Stream/Input/Video"
	unknownApp       = "Unknown Application"
	glyphMicrophone  = "󰍬"
	glyphScreenShare = "\uf50e"
)

// Audio tools that hold a capture stream open without recording anything.
var micIgnored = []string{"pavucontrol", "WirePlumber", "PipeWire", "cava"}

// PrivacyState lists the applications capturing the microphone or the screen.
type PrivacyState struct {
	Mic    []string
	Screen []string
}

// Active reports whether anything is being captured.
func (p PrivacyState) Active() bool {
	return len(p.Mic) > 0 || len(p.Screen) > 0
}

// Glyphs returns the indicator icons, screen share first.
func (p PrivacyState) Glyphs() []string {
	var out []string
	if len(p.Screen) > 0 {
		out = append(out, glyphScreenShare)
	}
	if len(p.Mic) > 0 {
		out = append(out, glyphMicrophone)
	}
	return out
}

// Privacy inspects the PipeWire graph for capture streams.
type Privacy struct {
	runner  commandRunner
	command string
}

// NewPrivacy returns a reader using command (pw-dump compatible).
func NewPrivacy(command string) *Privacy {
	if command == "" {
		command = "pw-dump"
	}
	return &Privacy{runner: execRunner{}, command: command}
}

// Read runs the dump and collects the capturing applications.
func (p *Privacy) Read(ctx context.Context) (PrivacyState, error) {
	out, err := p.runner.CombinedOutput(ctx, p.command)
	if err != nil {
		return PrivacyState{}, fmt.Errorf("%s: %w", p.command, err)
	}
	return parsePipewireDump(out)
}

type pipewireObject struct {
	Type string `json:"type"`
	Info struct {
		Props map[string]any `json:"props"`
	} `json:"info"`
}

func parsePipewireDump(raw []byte) (PrivacyState, error) {
	var objects []pipewireObject
	if err := json.Unmarshal(raw, &objects); err != nil {
		return PrivacyState{}, fmt.Errorf("decode pw-dump: %w", err)
	}

	var state PrivacyState
	for _, obj := range objects {
		if obj.Type != pipewireNode {
			continue
		}
		props := obj.Info.Props
		name := nodeAppName(props)
		switch propString(props, "media.class") {
		case classAudioInput:
			if !slices.Contains(micIgnored, name) {
				state.Mic = appendUnique(state.Mic, name)
			}
		case classVideoInput:
			state.Screen = appendUnique(state.Screen, name)
		}
	}
	return state, nil
}

func nodeAppName(props map[string]any) string {
	for _, key := range []string{"application.name", "node.description", "node.nick", "media.name"} {
		if name := strings.TrimSpace(propString(props, key)); name != "" {
			return name
		}
	}
	return unknownApp
}

func propString(props map[string]any, key string) string {
	s, _ := props[key].(string)
	return s
}

func appendUnique(list []string, name string) []string {
	if slices.Contains(list, name) {
		return list
	}
	return append(list, name)
}
