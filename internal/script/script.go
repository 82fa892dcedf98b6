// Package script loads YAML motion scripts and plays them against a robot.
//
// A script looks like:
//
//	name: patrol
//	mode: program
//	steps:
//	  - stand
//	  - rotate: {pitch: 10, yaw: 5, roll: 0}
//	  - walk: {x: 1, y: 0, z: 0}
//	  - wait: {time: 2}
//	  - sit
//
// Each step is either a bare verb or a single-key mapping from verb to
// arguments. Every step is validated before anything is sent.
package script

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/saker-ai/spot-sdk/pkg/spot"
)

// Mode selects how a script is delivered.
type Mode string

const (
	ModeProgram Mode = "program"
	ModeLive    Mode = "live"
)

// Step is one scripted motion.
type Step struct {
	Verb string
	Args map[string]any
	Line int
}

// UnmarshalYAML accepts "stand" or "rotate: {pitch: 1, ...}".
func (s *Step) UnmarshalYAML(node *yaml.Node) error {
	s.Line = node.Line
	switch node.Kind {
	case yaml.ScalarNode:
		s.Verb = node.Value
		return nil
	case yaml.MappingNode:
		if len(node.Content) != 2 {
			return fmt.Errorf("line %d: step must have exactly one verb", node.Line)
		}
		s.Verb = node.Content[0].Value
		value := node.Content[1]
		if value.Kind == yaml.ScalarNode && (value.Tag == "!!null" || value.Value == "") {
			return nil
		}
		if value.Kind != yaml.MappingNode {
			return fmt.Errorf("line %d: arguments of %q must be a mapping", value.Line, s.Verb)
		}
		var args map[string]any
		if err := value.Decode(&args); err != nil {
			return err
		}
		s.Args = args
		return nil
	default:
		return fmt.Errorf("line %d: unsupported step", node.Line)
	}
}

// Script is a parsed motion script.
type Script struct {
	Name  string `yaml:"name"`
	Mode  Mode   `yaml:"mode"`
	Steps []Step `yaml:"steps"`
}

// Load reads and parses a script file.
func Load(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Parse decodes a script and validates its header.
func Parse(data []byte) (*Script, error) {
	var s Script
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	s.Name = strings.TrimSpace(s.Name)
	s.Mode = Mode(strings.ToLower(strings.TrimSpace(string(s.Mode))))
	switch s.Mode {
	case "":
		s.Mode = ModeProgram
	case ModeProgram, ModeLive:
	default:
		return nil, fmt.Errorf("unknown mode %q", s.Mode)
	}
	if s.Mode == ModeProgram && s.Name == "" {
		return nil, errors.New("program scripts need a name")
	}
	return &s, nil
}

// Commands builds every step, failing on the first invalid one.
func (s *Script) Commands() ([]spot.Command, error) {
	commands := make([]spot.Command, 0, len(s.Steps))
	for i, step := range s.Steps {
		verb, err := spot.ParseVerb(step.Verb)
		if err != nil {
			return nil, fmt.Errorf("step %d (line %d): %w", i+1, step.Line, err)
		}
		cmd, err := spot.Build(verb, step.Args)
		if err != nil {
			return nil, fmt.Errorf("step %d (line %d): %w", i+1, step.Line, err)
		}
		commands = append(commands, cmd)
	}
	return commands, nil
}

// Target is what a script drives; *spot.Robot satisfies it.
type Target interface {
	StartProgram(name string) error
	FlushProgram(ctx context.Context) (bool, error)
	Send(ctx context.Context, cmd spot.Command) error
}

// Result summarises a run.
type Result struct {
	Mode     Mode
	Commands int
	// Valid is the server verdict for program scripts.
	Valid bool
}

// Run validates every step, then records them into a program and flushes
// it, or sends them live one by one with the robot's settle pauses.
func (s *Script) Run(ctx context.Context, target Target) (Result, error) {
	commands, err := s.Commands()
	if err != nil {
		return Result{}, err
	}
	res := Result{Mode: s.Mode, Commands: len(commands)}

	if s.Mode == ModeProgram {
		if err := target.StartProgram(s.Name); err != nil {
			return res, err
		}
	}
	for _, cmd := range commands {
		if err := target.Send(ctx, cmd); err != nil {
			return res, err
		}
	}
	if s.Mode == ModeProgram {
		valid, err := target.FlushProgram(ctx)
		res.Valid = valid
		return res, err
	}
	return res, nil
}
