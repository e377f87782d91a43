// Package config loads the sdk-bridge configuration file.
//
// The format is dnsmasq style: one `option value` per line, `#` comments,
// and `[section]` headers. Options before the first header are global.
//
//	log.level debug
//	tick-interval 10ms
//
//	[simulator]
//	fixture ./fixtures/welcome.yaml
//	latency 5ms
package config

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

// SimulatorSection is the section parsed into Config.Simulator.
const SimulatorSection = "simulator"

// Config is a loaded configuration.
type Config struct {
	Global map[string]string
	// Sections holds options under [name] headers, other than [simulator].
	Sections map[string]map[string]string
	// Simulator is the typed [simulator] section.
	Simulator SimulatorConfig
	// Warnings lists schema violations; loading never fails on them.
	Warnings []string
}

// SimulatorConfig configures the in-process platform used by `run`.
type SimulatorConfig struct {
	Fixture      string
	Latency      time.Duration
	StartSuccess bool
}

func NewConfig() *Config {
	return &Config{
		Global:    make(map[string]string),
		Sections:  make(map[string]map[string]string),
		Simulator: SimulatorConfig{StartSuccess: true},
	}
}

// Load reads the file at Path. A missing file yields an empty config.
func Load() (*Config, error) {
	path, err := Path()
	if err != nil {
		return nil, fmt.Errorf("failed to get config path: %w", err)
	}
	return LoadFromPath(path)
}

// LoadFromPath loads path, refusing symlinks.
func LoadFromPath(path string) (*Config, error) {
	fi, err := os.Lstat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewConfig(), nil
		}
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if fi.Mode()&os.ModeSymlink != 0 {
		return nil, fmt.Errorf("symlink not allowed in config path: %s", path)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()
	return LoadFromReader(f)
}

func LoadFromReader(r io.Reader) (*Config, error) {
	c := NewConfig()
	var section string

	sc := bufio.NewScanner(r)
	for n := 1; sc.Scan(); n++ {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			section = strings.TrimSpace(line[1 : len(line)-1])
			if section != SimulatorSection && c.Sections[section] == nil {
				c.Sections[section] = make(map[string]string)
			}
			continue
		}

		key, value, _ := strings.Cut(line, " ")
		value = strings.TrimSpace(value)
		switch section {
		case "":
			c.Global[key] = value
		case SimulatorSection:
			if err := c.Simulator.set(key, value); err != nil {
				return nil, fmt.Errorf("line %d: [%s] %s: %w", n, section, key, err)
			}
		default:
			c.Sections[section][key] = value
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("error reading config: %w", err)
	}

	for _, issue := range ValidateConfig(c, DefaultSchema()) {
		c.addWarning("%s", issue)
	}
	return c, nil
}

func (c *Config) addWarning(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	c.Warnings = append(c.Warnings, msg)
	slog.Warn("config: " + msg)
}

func (s *SimulatorConfig) set(key, value string) error {
	switch key {
	case "fixture":
		s.Fixture = value
	case "latency":
		d, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		if d < 0 {
			return fmt.Errorf("negative latency %s", d)
		}
		s.Latency = d
	case "start-success":
		b, err := parseBool(value)
		if err != nil {
			return err
		}
		s.StartSuccess = b
	default:
		return fmt.Errorf("unknown option")
	}
	return nil
}

// parseBool accepts true/false, 1/0, yes/no and on/off in any case.
func parseBool(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "true", "1", "yes", "on":
		return true, nil
	case "false", "0", "no", "off":
		return false, nil
	}
	return false, fmt.Errorf("invalid boolean value: %s", s)
}

func (c *Config) GetGlobalOption(name string) (string, bool) {
	v, ok := c.Global[name]
	return v, ok
}

// GetSectionOption looks in [section] first, then the global options.
func (c *Config) GetSectionOption(section, name string) (string, bool) {
	if v, ok := c.Sections[section][name]; ok {
		return v, true
	}
	return c.GetGlobalOption(name)
}

func (c *Config) SetGlobalOption(name, value string) { c.Global[name] = value }

func (c *Config) HasWarnings() bool { return len(c.Warnings) > 0 }
