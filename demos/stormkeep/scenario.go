package main

// Scripted scenario driver for unattended runs. A scenario is a JSON
// file of steps executed one per frame; wait steps burn the given
// number of frames before the next step fires. Example:
//
//	{"steps": [
//	  {"action": "wait", "frames": 120},
//	  {"action": "storm"},
//	  {"action": "wait", "frames": 300},
//	  {"action": "screenshot", "label": "storm-peak"},
//	  {"action": "quit"}
//	]}
//
// A scenario that runs out of steps without a quit action hands control
// back to the keyboard.

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
)

type scenarioStep struct {
	Action  string  `json:"action"`
	Label   string  `json:"label,omitempty"`
	Effect  string  `json:"effect,omitempty"`
	Mode    string  `json:"mode,omitempty"`
	Enabled *bool   `json:"enabled,omitempty"`
	Hour    float64 `json:"hour,omitempty"`
	Value   float64 `json:"value,omitempty"`
	Frames  int     `json:"frames,omitempty"`
}

type scenarioScript struct {
	Steps []scenarioStep `json:"steps"`
}

type scenario struct {
	steps     []scenarioStep
	cursor    int
	waitCount int
	done      bool
}

func loadScenario(path string) (*scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var script scenarioScript
	if err := json.Unmarshal(data, &script); err != nil {
		return nil, fmt.Errorf("parse scenario %s: %w", path, err)
	}
	if len(script.Steps) == 0 {
		return nil, fmt.Errorf("scenario %s has no steps", path)
	}
	return &scenario{steps: script.Steps}, nil
}

// step advances the scenario by one frame.
func (sc *scenario) step(g *game) {
	if sc.done {
		return
	}
	if sc.waitCount > 0 {
		sc.waitCount--
		return
	}
	if sc.cursor >= len(sc.steps) {
		sc.done = true
		return
	}
	st := sc.steps[sc.cursor]
	sc.cursor++

	on := true
	if st.Enabled != nil {
		on = *st.Enabled
	}
	switch st.Action {
	case "wait":
		if st.Frames > 1 {
			sc.waitCount = st.Frames - 1 // this frame counts as one
		}
	case "screenshot":
		g.shots.Request(st.Label)
	case "toggle":
		g.setEffectEnabled(st.Effect, on)
	case "storm":
		g.setStorm(on)
	case "timeofday":
		g.setTimeOfDay(st.Hour)
	case "darkness":
		g.setDarkness(st.Value)
	case "doors":
		g.toggleDoors()
	case "vision":
		g.setVisionMode(st.Mode)
	case "quit":
		g.quit = true
	default:
		log.Printf("scenario: unknown action %q", st.Action)
	}
}
