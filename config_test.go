package vire

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultConfigSeedsGCTunables(t *testing.T) {
	c := DefaultConfig()
	assert.Equal(t, 200, c.GetInt("gc.pause"))
	assert.Equal(t, 100, c.GetInt("gc.stepmul"))
	assert.Equal(t, 20, c.GetInt("gc.minormul"))
	assert.False(t, c.GetBool("gc.emergency"))
}

func TestConfigMapGetUnknownPathPanics(t *testing.T) {
	c := DefaultConfig()
	assert.Panics(t, func() { c.GetInt("gc.nonexistent") })
}

func TestConfigMapTypeMismatchPanics(t *testing.T) {
	c := DefaultConfig()
	assert.Panics(t, func() { c.GetBool("gc.pause") })
}

func TestConfigMapSetStringThenGet(t *testing.T) {
	m := make(ConfigMap)
	m.SetString("source.name", "chunk")
	assert.Equal(t, "chunk", m.GetString("source.name"))
}

func TestConfigMapReassigningSameTypeDoesNotPanic(t *testing.T) {
	m := make(ConfigMap)
	m.SetInt("k", 1)
	assert.NotPanics(t, func() { m.SetInt("k", 2) }, "re-setting the same type is fine")
}

func TestTwoIndependentStatesDoNotShareConfig(t *testing.T) {
	s1 := NewState(nil)
	s2 := NewState(nil)
	s1.g.Config.SetInt("gc.pause", 50)
	assert.Equal(t, 200, s2.g.Config.GetInt("gc.pause"))
}
