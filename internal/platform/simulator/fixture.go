package simulator

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/joeycumines/sdk-bridge/internal/codec"
)

// Fixture describes the server side the simulator pretends to be.
type Fixture struct {
	DeviceID     string `yaml:"device_id"`
	UserID       string `yaml:"user_id"`
	StartSuccess *bool  `yaml:"start_success"`

	// Variables are server overrides applied on start, keyed by variable name.
	Variables map[string]any `yaml:"variables"`

	Variants []map[string]any `yaml:"variants"`

	// Messages are keyed by message id.
	Messages map[string]Message `yaml:"messages"`

	// TriggerOnStart lists message ids whose actions fire after start.
	TriggerOnStart []string `yaml:"trigger_on_start"`
}

// Message is an in-app message whose action the simulator can trigger.
type Message struct {
	Action string         `yaml:"action"`
	Args   map[string]any `yaml:"args"`
}

// LoadFixture reads a YAML fixture from path.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fixture: %w", err)
	}
	f, err := ParseFixture(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// ParseFixture decodes a YAML fixture. Unknown fields are rejected.
func ParseFixture(data []byte) (*Fixture, error) {
	var f Fixture
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse fixture: %w", err)
	}
	if err := f.normalize(); err != nil {
		return nil, fmt.Errorf("invalid fixture: %w", err)
	}
	return &f, nil
}

// normalize converts YAML-decoded values into the codec value model and
// checks references between sections.
func (f *Fixture) normalize() error {
	for name, v := range f.Variables {
		n, err := codec.Normalize(v)
		if err != nil {
			return fmt.Errorf("variable %q: %w", name, err)
		}
		f.Variables[name] = n
	}
	for i, variant := range f.Variants {
		n, err := codec.Normalize(variant)
		if err != nil {
			return fmt.Errorf("variant %d: %w", i, err)
		}
		f.Variants[i], _ = n.(map[string]any)
	}
	for id, m := range f.Messages {
		if m.Action == "" {
			return fmt.Errorf("message %q: action is required", id)
		}
		for name, v := range m.Args {
			n, err := codec.Normalize(v)
			if err != nil {
				return fmt.Errorf("message %q argument %q: %w", id, name, err)
			}
			m.Args[name] = n
		}
	}
	for _, id := range f.TriggerOnStart {
		if _, ok := f.Messages[id]; !ok {
			return fmt.Errorf("trigger_on_start: unknown message %q", id)
		}
	}
	return nil
}

func (f *Fixture) startSuccess() bool {
	return f.StartSuccess == nil || *f.StartSuccess
}
