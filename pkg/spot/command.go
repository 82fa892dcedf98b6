package spot

import (
	"encoding/json"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/saker-ai/spot-sdk/internal/protocol"
)

// Verb names a motion command.
type Verb string

const (
	VerbStand  Verb = "stand"
	VerbSit    Verb = "sit"
	VerbRotate Verb = "rotate"
	VerbWalk   Verb = "walk"
	VerbWait   Verb = "wait"
)

// wireWalk is the name the control server uses for walking.
const wireWalk = "move"

var verbParams = map[Verb][]string{
	VerbStand:  nil,
	VerbSit:    nil,
	VerbRotate: {"pitch", "yaw", "roll"},
	VerbWalk:   {"x", "y", "z"},
	VerbWait:   {"time"},
}

// ParseVerb accepts a verb name or its wire name, case-insensitively.
func ParseVerb(raw string) (Verb, error) {
	name := strings.ToLower(strings.TrimSpace(raw))
	if name == wireWalk {
		return VerbWalk, nil
	}
	verb := Verb(name)
	if _, ok := verbParams[verb]; !ok {
		return "", invalidArgument("unknown verb %q", raw)
	}
	return verb, nil
}

// Params returns the parameter names the verb requires, in wire order.
func (v Verb) Params() []string {
	params := verbParams[v]
	out := make([]string, len(params))
	copy(out, params)
	return out
}

// Wire returns the command name transmitted to the control server.
func (v Verb) Wire() string {
	if v == VerbWalk {
		return wireWalk
	}
	return string(v)
}

// Command is an immutable motion command.
type Command struct {
	verb Verb
	args map[string]float64
}

// Build validates params for verb and coerces each required parameter to
// float64. Strings are parsed; parameters the verb does not use are ignored.
func Build(verb Verb, params map[string]any) (Command, error) {
	names, ok := verbParams[verb]
	if !ok {
		return Command{}, invalidArgument("unknown verb %q", verb)
	}
	if len(names) == 0 {
		return Command{verb: verb}, nil
	}
	args := make(map[string]float64, len(names))
	for _, name := range names {
		raw, ok := params[name]
		if !ok {
			return Command{}, invalidArgument("%s: missing parameter %q", verb, name)
		}
		value, err := toFloat(raw)
		if err != nil {
			return Command{}, invalidArgument("%s: parameter %q: %v", verb, name, err)
		}
		args[name] = value
	}
	return Command{verb: verb, args: args}, nil
}

// Stand builds a stand command.
func Stand() Command { return Command{verb: VerbStand} }

// Sit builds a sit command.
func Sit() Command { return Command{verb: VerbSit} }

// Rotate builds a body rotation in degrees.
func Rotate(pitch, yaw, roll float64) Command {
	return Command{verb: VerbRotate, args: map[string]float64{"pitch": pitch, "yaw": yaw, "roll": roll}}
}

// Walk builds a walk command; x and y are velocity components, z the body turn.
func Walk(x, y, z float64) Command {
	return Command{verb: VerbWalk, args: map[string]float64{"x": x, "y": y, "z": z}}
}

// Wait builds a server-side delay of the given number of seconds.
func Wait(seconds float64) Command {
	return Command{verb: VerbWait, args: map[string]float64{"time": seconds}}
}

// Verb returns the command verb.
func (c Command) Verb() Verb {
	return c.verb
}

// Args returns a copy of the command arguments, or nil for verbs without
// parameters.
func (c Command) Args() map[string]float64 {
	if c.args == nil {
		return nil
	}
	out := make(map[string]float64, len(c.args))
	for k, v := range c.args {
		out[k] = v
	}
	return out
}

// Arg returns a single argument.
func (c Command) Arg(name string) (float64, bool) {
	v, ok := c.args[name]
	return v, ok
}

func (c Command) String() string {
	if len(c.args) == 0 {
		return string(c.verb)
	}
	keys := make([]string, 0, len(c.args))
	for k := range c.args {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	b.WriteString(string(c.verb))
	for _, k := range keys {
		b.WriteByte(' ')
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(strconv.FormatFloat(c.args[k], 'g', -1, 64))
	}
	return b.String()
}

// validate rejects commands Build would not produce, such as the zero value.
func (c Command) validate() error {
	names, ok := verbParams[c.verb]
	if !ok {
		return invalidArgument("unknown verb %q", c.verb)
	}
	if len(c.args) != len(names) {
		return invalidArgument("%s: want parameters %v, got %d", c.verb, names, len(c.args))
	}
	for _, name := range names {
		value, ok := c.args[name]
		if !ok {
			return invalidArgument("%s: missing parameter %q", c.verb, name)
		}
		if math.IsNaN(value) || math.IsInf(value, 0) {
			return invalidArgument("%s: parameter %q is not finite", c.verb, name)
		}
	}
	return nil
}

func (c Command) record() protocol.CommandRecord {
	return protocol.CommandRecord{Command: c.verb.Wire(), Args: c.Args()}
}

func (c Command) frame() protocol.CommandFrame {
	return protocol.NewCommandFrame(c.verb.Wire(), c.Args())
}

// MarshalJSON encodes the command as a program entry.
func (c Command) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.record())
}

// UnmarshalJSON decodes a program entry and validates it.
func (c *Command) UnmarshalJSON(data []byte) error {
	var rec protocol.CommandRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return err
	}
	verb, err := ParseVerb(rec.Command)
	if err != nil {
		return err
	}
	params := make(map[string]any, len(rec.Args))
	for k, v := range rec.Args {
		params[k] = v
	}
	built, err := Build(verb, params)
	if err != nil {
		return err
	}
	*c = built
	return nil
}

func toFloat(raw any) (float64, error) {
	var value float64
	switch v := raw.(type) {
	case nil:
		return 0, strconv.ErrSyntax
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, err
		}
		value = parsed
	case json.Number:
		parsed, err := v.Float64()
		if err != nil {
			return 0, err
		}
		value = parsed
	default:
		rv := reflect.ValueOf(raw)
		switch rv.Kind() {
		case reflect.Float32, reflect.Float64:
			value = rv.Float()
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			value = float64(rv.Int())
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			value = float64(rv.Uint())
		default:
			return 0, &strconv.NumError{Func: "toFloat", Num: rv.Kind().String(), Err: strconv.ErrSyntax}
		}
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, strconv.ErrRange
	}
	return value, nil
}
