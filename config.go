package vire

import "fmt"

// Config is the runtime's tunable set (§6.3): a small set of
// strongly-typed embedder knobs (allocator hook, GC mode, string seed)
// plus a dotted-path settings map for the GC's numeric tunables,
// carried over from the same SetInt/GetInt/SetBool path-map pattern
// used throughout this codebase's configuration layer.
type Config struct {
	Alloc      AllocFunc
	GCMode     GCMode
	StringSeed uint32

	settings ConfigMap
}

// DefaultConfig primes every tunable with the values described in
// §4.5/§4.6: 200% pause, 100% step multiplier, generational minor
// multiplier 20%, incremental mode, OS-randomness string seed.
func DefaultConfig() *Config {
	c := &Config{
		Alloc:      defaultAlloc,
		GCMode:     ModeIncremental,
		StringSeed: RandomSeed(),
		settings:   make(ConfigMap),
	}
	c.settings.SetInt("gc.pause", 200)
	c.settings.SetInt("gc.stepmul", 100)
	c.settings.SetInt("gc.minormul", 20)
	c.settings.SetInt("gc.majorminor", 100)
	c.settings.SetBool("gc.emergency", false)
	return c
}

func (c *Config) GetInt(path string) int   { return c.settings.GetInt(path) }
func (c *Config) SetInt(path string, v int) { c.settings.SetInt(path, v) }
func (c *Config) GetBool(path string) bool   { return c.settings.GetBool(path) }
func (c *Config) SetBool(path string, v bool) { c.settings.SetBool(path, v) }

type cfgValType int

const (
	cfgValUndefined cfgValType = iota
	cfgValBool
	cfgValInt
	cfgValString
)

func (vt cfgValType) String() string {
	return map[cfgValType]string{
		cfgValUndefined: "undefined",
		cfgValBool:      "bool",
		cfgValInt:       "int",
		cfgValString:    "string",
	}[vt]
}

type cfgVal struct {
	typ      cfgValType
	asBool   bool
	asInt    int
	asString string
}

func (v *cfgVal) assignType(vt cfgValType) {
	if v.typ != vt && v.typ != cfgValUndefined {
		panic(fmt.Sprintf("vire: can't assign %q to a %q config value", vt, v.typ))
	}
	v.typ = vt
}

func (v *cfgVal) checkType(vt cfgValType) {
	if v.typ != vt {
		panic(fmt.Sprintf("vire: can't retrieve %q from a %q config value", vt, v.typ))
	}
}

// ConfigMap is the dotted-path settings table backing Config's
// numeric/boolean tunables.
type ConfigMap map[string]*cfgVal

func (c ConfigMap) SetBool(path string, v bool) {
	c[path] = &cfgVal{}
	c[path].assignType(cfgValBool)
	c[path].asBool = v
}

func (c ConfigMap) SetInt(path string, v int) {
	c[path] = &cfgVal{}
	c[path].assignType(cfgValInt)
	c[path].asInt = v
}

func (c ConfigMap) SetString(path string, v string) {
	c[path] = &cfgVal{}
	c[path].assignType(cfgValString)
	c[path].asString = v
}

func (c ConfigMap) GetBool(path string) bool {
	if val, ok := c[path]; ok {
		val.checkType(cfgValBool)
		return val.asBool
	}
	panic(fmt.Sprintf("vire: bool setting %q does not exist", path))
}

func (c ConfigMap) GetInt(path string) int {
	if val, ok := c[path]; ok {
		val.checkType(cfgValInt)
		return val.asInt
	}
	panic(fmt.Sprintf("vire: int setting %q does not exist", path))
}

func (c ConfigMap) GetString(path string) string {
	if val, ok := c[path]; ok {
		val.checkType(cfgValString)
		return val.asString
	}
	panic(fmt.Sprintf("vire: string setting %q does not exist", path))
}
