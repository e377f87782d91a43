package config

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultSchema(t *testing.T) {
	t.Parallel()

	s := DefaultSchema()
	assert.Same(t, s, DefaultSchema())
	assert.NotNil(t, s.Lookup("", KeyTickInterval))
	assert.NotNil(t, s.Lookup(SimulatorSection, "latency"))
	assert.Nil(t, s.Lookup("", "latency"))
	assert.True(t, s.IsKnown("run", KeyLogLevel))
	assert.False(t, s.IsKnown("run", "latency"))
	assert.Equal(t, []string{SimulatorSection}, s.Sections())

	for _, o := range s.Options("") {
		assert.NoError(t, validateType(o.Type, o.Default), o.Key)
	}
}

func TestTypedGetters(t *testing.T) {
	t.Parallel()

	c := NewConfig()
	assert.Equal(t, 16*time.Millisecond, c.Duration(KeyTickInterval), "default")
	assert.Equal(t, 1000, c.Int(KeyLogBufferSize))
	assert.Equal(t, "info", c.String(KeyLogLevel))

	c.SetGlobalOption(KeyTickInterval, "4ms")
	c.SetGlobalOption(KeyLogBufferSize, "many")
	assert.Equal(t, 4*time.Millisecond, c.Duration(KeyTickInterval))
	assert.Zero(t, c.Int(KeyLogBufferSize))
	assert.Empty(t, c.String("unknown"))
}

func TestResolve_EnvOverride(t *testing.T) {
	t.Setenv("SDKBRIDGE_LOG_LEVEL", "error")

	c := NewConfig()
	c.SetGlobalOption(KeyLogLevel, "debug")
	assert.Equal(t, "error", c.String(KeyLogLevel))
}

func TestSchema_RegisterReplaces(t *testing.T) {
	t.Parallel()

	s := NewSchema()
	s.Register(ConfigOption{Key: "a", Default: "1"}, ConfigOption{Key: "a", Default: "2"})
	assert.Equal(t, "2", s.Lookup("", "a").Default)
	assert.Equal(t, "2", s.Resolve(NewConfig(), "a"))
}

func TestValidateType(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct {
		typ   OptionType
		value string
		ok    bool
	}{
		{TypeString, "anything", true},
		{TypeBool, "yes", true},
		{TypeBool, "sure", false},
		{TypeInt, "42", true},
		{TypeInt, "4.2", false},
		{TypeDuration, "1m30s", true},
		{TypeDuration, "90", false},
		{TypeLevel, "WARN", true},
		{TypeLevel, "trace", false},
		{"mystery", "x", false},
	} {
		err := validateType(tc.typ, tc.value)
		if tc.ok {
			assert.NoError(t, err, "%s %q", tc.typ, tc.value)
		} else {
			assert.Error(t, err, "%s %q", tc.typ, tc.value)
		}
	}
}

func TestFormatHelp(t *testing.T) {
	t.Parallel()

	help := DefaultSchema().FormatHelp()
	require.True(t, strings.HasPrefix(help, "Global Options:\n"))
	assert.Contains(t, help, KeyTickInterval)
	assert.Contains(t, help, "default: 16ms")
	assert.Contains(t, help, "env: SDKBRIDGE_LOG_LEVEL")
	assert.Contains(t, help, "[simulator] Options:")
}
