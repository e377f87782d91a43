package config

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// OptionType is the expected type of an option value.
type OptionType string

const (
	TypeString   OptionType = "string"
	TypeBool     OptionType = "bool"
	TypeInt      OptionType = "int"
	TypeDuration OptionType = "duration"
	TypeLevel    OptionType = "level"
)

// Option keys.
const (
	KeyLogLevel        = "log.level"
	KeyLogFile         = "log.file"
	KeyLogMaxSizeMB    = "log.max-size-mb"
	KeyLogMaxFiles     = "log.max-files"
	KeyLogBufferSize   = "log.buffer-size"
	KeyTickInterval    = "tick-interval"
	KeySyncTimeout     = "sync-timeout"
	KeyNetTimeout      = "network.timeout"
	KeyDownloadTimeout = "network.download-timeout"
	KeyDevSocketAddr   = "devsocket.addr"
)

// ConfigOption declares one option.
type ConfigOption struct {
	Key         string
	Type        OptionType
	Default     string
	Description string
	// Section is "" for global options.
	Section string
	// EnvVar, if set, overrides the file value.
	EnvVar string
}

// ConfigSchema indexes the known options, for validation, typed lookup and
// the `config schema` output.
type ConfigSchema struct {
	options []*ConfigOption
	index   map[string]map[string]*ConfigOption
}

func NewSchema() *ConfigSchema {
	return &ConfigSchema{index: make(map[string]map[string]*ConfigOption)}
}

// Register adds opt; a later registration of the same section and key
// replaces the earlier one.
func (s *ConfigSchema) Register(opts ...ConfigOption) {
	for _, opt := range opts {
		ref := &opt
		s.options = append(s.options, ref)
		if s.index[opt.Section] == nil {
			s.index[opt.Section] = make(map[string]*ConfigOption)
		}
		s.index[opt.Section][opt.Key] = ref
	}
}

// Lookup returns nil for unknown keys.
func (s *ConfigSchema) Lookup(section, key string) *ConfigOption {
	return s.index[section][key]
}

// IsKnown also accepts global keys inside a section, matching
// GetSectionOption's fallback.
func (s *ConfigSchema) IsKnown(section, key string) bool {
	return s.Lookup(section, key) != nil || s.Lookup("", key) != nil
}

// Options returns the options registered for section, in registration
// order.
func (s *ConfigSchema) Options(section string) []ConfigOption {
	var out []ConfigOption
	for _, o := range s.options {
		if o.Section == section {
			out = append(out, *o)
		}
	}
	return out
}

// Sections returns the named sections, sorted.
func (s *ConfigSchema) Sections() []string {
	var out []string
	for sec := range s.index {
		if sec != "" {
			out = append(out, sec)
		}
	}
	sort.Strings(out)
	return out
}

// Resolve returns the effective value of a global key: the environment
// override, then the file, then the default.
func (s *ConfigSchema) Resolve(c *Config, key string) string {
	opt := s.Lookup("", key)
	if opt != nil && opt.EnvVar != "" {
		if v, ok := os.LookupEnv(opt.EnvVar); ok {
			return v
		}
	}
	if v, ok := c.GetGlobalOption(key); ok {
		return v
	}
	if opt != nil {
		return opt.Default
	}
	return ""
}

// ValidateConfig returns sorted, human-readable issues: unknown options and
// values that do not parse as their declared type.
func ValidateConfig(c *Config, s *ConfigSchema) []string {
	var issues []string
	for key, value := range c.Global {
		opt := s.Lookup("", key)
		if opt == nil {
			issues = append(issues, fmt.Sprintf("unknown global option: %q (value: %q)", key, value))
			continue
		}
		if err := validateType(opt.Type, value); err != nil {
			issues = append(issues, fmt.Sprintf("global option %q: %v", key, err))
		}
	}
	for section, opts := range c.Sections {
		for key, value := range opts {
			opt := s.Lookup(section, key)
			if opt == nil {
				opt = s.Lookup("", key)
			}
			if opt == nil {
				issues = append(issues, fmt.Sprintf("unknown option in [%s]: %q (value: %q)", section, key, value))
				continue
			}
			if err := validateType(opt.Type, value); err != nil {
				issues = append(issues, fmt.Sprintf("option %q in [%s]: %v", key, section, err))
			}
		}
	}
	sort.Strings(issues)
	return issues
}

func validateType(t OptionType, value string) error {
	var err error
	switch t {
	case TypeString, "":
	case TypeBool:
		_, err = parseBool(value)
	case TypeInt:
		_, err = strconv.Atoi(value)
	case TypeDuration:
		_, err = time.ParseDuration(value)
	case TypeLevel:
		switch strings.ToLower(value) {
		case "debug", "info", "warn", "error":
		default:
			err = fmt.Errorf("not a level")
		}
	default:
		return fmt.Errorf("unknown option type %q", t)
	}
	if err != nil {
		return fmt.Errorf("expected %s, got %q", t, value)
	}
	return nil
}

// String resolves key against the default schema.
func (c *Config) String(key string) string {
	return DefaultSchema().Resolve(c, key)
}

// Int resolves key, returning 0 when it does not parse.
func (c *Config) Int(key string) int {
	n, _ := strconv.Atoi(c.String(key))
	return n
}

// Duration resolves key, returning 0 when it does not parse.
func (c *Config) Duration(key string) time.Duration {
	d, _ := time.ParseDuration(c.String(key))
	return d
}

func (c *Config) Bool(key string) bool {
	b, _ := parseBool(c.String(key))
	return b
}

// FormatHelp renders every option, grouped by section.
func (s *ConfigSchema) FormatHelp() string {
	var b strings.Builder
	b.WriteString("Global Options:\n")
	for _, o := range s.Options("") {
		writeOptionHelp(&b, o)
	}
	for _, sec := range s.Sections() {
		fmt.Fprintf(&b, "\n[%s] Options:\n", sec)
		for _, o := range s.Options(sec) {
			writeOptionHelp(&b, o)
		}
	}
	return b.String()
}

func writeOptionHelp(b *strings.Builder, o ConfigOption) {
	fmt.Fprintf(b, "  %-28s %s", o.Key, o.Description)
	var parts []string
	if o.Type != "" && o.Type != TypeString {
		parts = append(parts, "type: "+string(o.Type))
	}
	if o.Default != "" {
		parts = append(parts, "default: "+o.Default)
	}
	if o.EnvVar != "" {
		parts = append(parts, "env: "+o.EnvVar)
	}
	if len(parts) > 0 {
		fmt.Fprintf(b, " (%s)", strings.Join(parts, ", "))
	}
	b.WriteString("\n")
}

// DefaultSchema returns the shared schema of every known option. Callers
// must not register into it.
var DefaultSchema = sync.OnceValue(func() *ConfigSchema {
	s := NewSchema()
	s.Register(
		ConfigOption{Key: KeyLogLevel, Type: TypeLevel, Default: "info", Description: "Log level: debug, info, warn, error", EnvVar: "SDKBRIDGE_LOG_LEVEL"},
		ConfigOption{Key: KeyLogFile, Default: "", Description: "Also write JSON logs to this file", EnvVar: "SDKBRIDGE_LOG_FILE"},
		ConfigOption{Key: KeyLogMaxSizeMB, Type: TypeInt, Default: "10", Description: "Rotate the log file past this size"},
		ConfigOption{Key: KeyLogMaxFiles, Type: TypeInt, Default: "5", Description: "Rotated log files to keep"},
		ConfigOption{Key: KeyLogBufferSize, Type: TypeInt, Default: "1000", Description: "Log entries kept in memory for scripts"},
		ConfigOption{Key: KeyTickInterval, Type: TypeDuration, Default: "16ms", Description: "How often queued bridge work is drained"},
		ConfigOption{Key: KeySyncTimeout, Type: TypeDuration, Default: "5s", Description: "Timeout for synchronous event loop calls"},
		ConfigOption{Key: KeyNetTimeout, Type: TypeDuration, Default: "10s", Description: "Timeout for API requests"},
		ConfigOption{Key: KeyDownloadTimeout, Type: TypeDuration, Default: "30s", Description: "Timeout for asset downloads"},
		ConfigOption{Key: KeyDevSocketAddr, Default: "", Description: "Listen address for the development socket", EnvVar: "SDKBRIDGE_DEVSOCKET_ADDR"},

		ConfigOption{Key: "fixture", Section: SimulatorSection, Default: "", Description: "YAML fixture describing the simulated SDK"},
		ConfigOption{Key: "latency", Section: SimulatorSection, Type: TypeDuration, Default: "0s", Description: "Delay before simulated notifications"},
		ConfigOption{Key: "start-success", Section: SimulatorSection, Type: TypeBool, Default: "true", Description: "Result reported by start, unless the fixture says otherwise"},
	)
	return s
})
