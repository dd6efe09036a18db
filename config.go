package trellis

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// Config holds the engine switches normally read from a TOML file:
//
//	partial_render = "set_damage_and_drop_op"
//	dirty_region_debug = "current_whole"
//	dirty_align_bits = 32
//
//	[container]
//	policy = "level0"
//	density = 2.0
type Config struct {
	PartialRender    PartialRenderType    `toml:"partial_render"`
	DirtyRegionDebug DirtyRegionDebugType `toml:"dirty_region_debug"`
	RenderForced     bool                 `toml:"render_forced"`
	UniRender        bool                 `toml:"uni_render"`
	Overdraw         bool                 `toml:"overdraw"`
	HighContrast     bool                 `toml:"high_contrast"`
	DirtyAlignBits   int                  `toml:"dirty_align_bits"`
	Debug            bool                 `toml:"debug"`
	Container        ContainerConfig      `toml:"container"`
}

// ContainerConfig configures container window opaque regions.
type ContainerConfig struct {
	Policy  ContainerWindowConfig `toml:"policy"`
	Density float64               `toml:"density"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() Config {
	return Config{
		PartialRender:    PartialRenderSetDamage,
		DirtyRegionDebug: DirtyDebugDisabled,
		DirtyAlignBits:   32,
		Container: ContainerConfig{
			Policy:  ContainerWindowLevel0,
			Density: defaultContainerScale,
		},
	}
}

// LoadConfig decodes TOML data over DefaultConfig and validates the result.
func LoadConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("trellis: decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadConfigFile reads and decodes the TOML file at path.
func LoadConfigFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("trellis: read config: %w", err)
	}
	return LoadConfig(data)
}

// Marshal encodes c as TOML.
func (c Config) Marshal() ([]byte, error) {
	return toml.Marshal(c)
}

// Validate reports the first out-of-range value, wrapped in
// ErrInvalidConfig.
func (c Config) Validate() error {
	switch {
	case c.PartialRender > PartialRenderSetDamageAndDropOpNotVisibleDirty:
		return fmt.Errorf("%w: partial_render %d", ErrInvalidConfig, c.PartialRender)
	case c.DirtyRegionDebug < DirtyDebugDisabled || c.DirtyRegionDebug > DirtyDebugEGLDamage:
		return fmt.Errorf("%w: dirty_region_debug %d", ErrInvalidConfig, c.DirtyRegionDebug)
	case c.DirtyAlignBits < 0:
		return fmt.Errorf("%w: dirty_align_bits %d is negative", ErrInvalidConfig, c.DirtyAlignBits)
	case c.Container.Density <= 0:
		return fmt.Errorf("%w: container density %g", ErrInvalidConfig, c.Container.Density)
	case c.Container.Policy > ContainerWindowUnfocusedLevel2:
		return fmt.Errorf("%w: container policy %d", ErrInvalidConfig, c.Container.Policy)
	}
	return nil
}

// apply pushes the process-wide parts of c.
func (c Config) apply() {
	globalDebug = c.Debug
}

// --- Text encodings ---

func (t PartialRenderType) MarshalText() ([]byte, error) {
	if int(t) >= len(partialRenderNames) {
		return nil, fmt.Errorf("%w: partial render type %d", ErrInvalidConfig, t)
	}
	return []byte(partialRenderNames[t]), nil
}

func (t *PartialRenderType) UnmarshalText(b []byte) error {
	for i, name := range partialRenderNames {
		if name == string(b) {
			*t = PartialRenderType(i)
			return nil
		}
	}
	return fmt.Errorf("%w: partial render type %q", ErrInvalidConfig, b)
}

var dirtyDebugNames = [...]string{
	DirtyDebugDisabled:                    "disabled",
	DirtyDebugCurrentSub:                  "current_sub",
	DirtyDebugCurrentWhole:                "current_whole",
	DirtyDebugMultiHistory:                "multi_history",
	DirtyDebugCurrentSubAndWhole:          "current_sub_and_whole",
	DirtyDebugCurrentWholeAndMultiHistory: "current_whole_and_multi_history",
	DirtyDebugEGLDamage:                   "egl_damage",
}

func (t DirtyRegionDebugType) String() string {
	if t >= 0 && int(t) < len(dirtyDebugNames) {
		return dirtyDebugNames[t]
	}
	return "unknown"
}

func (t DirtyRegionDebugType) MarshalText() ([]byte, error) {
	if t < 0 || int(t) >= len(dirtyDebugNames) {
		return nil, fmt.Errorf("%w: dirty region debug type %d", ErrInvalidConfig, t)
	}
	return []byte(dirtyDebugNames[t]), nil
}

func (t *DirtyRegionDebugType) UnmarshalText(b []byte) error {
	for i, name := range dirtyDebugNames {
		if name == string(b) {
			*t = DirtyRegionDebugType(i)
			return nil
		}
	}
	return fmt.Errorf("%w: dirty region debug type %q", ErrInvalidConfig, b)
}

var containerPolicyNames = [...]string{
	ContainerWindowDisabled:        "disabled",
	ContainerWindowLevel0:          "level0",
	ContainerWindowUnfocusedLevel1: "unfocused_level1",
	ContainerWindowUnfocusedLevel2: "unfocused_level2",
}

func (c ContainerWindowConfig) String() string {
	if int(c) < len(containerPolicyNames) {
		return containerPolicyNames[c]
	}
	return "unknown"
}

func (c ContainerWindowConfig) MarshalText() ([]byte, error) {
	if int(c) >= len(containerPolicyNames) {
		return nil, fmt.Errorf("%w: container policy %d", ErrInvalidConfig, c)
	}
	return []byte(containerPolicyNames[c]), nil
}

func (c *ContainerWindowConfig) UnmarshalText(b []byte) error {
	for i, name := range containerPolicyNames {
		if name == string(b) {
			*c = ContainerWindowConfig(i)
			return nil
		}
	}
	return fmt.Errorf("%w: container policy %q", ErrInvalidConfig, b)
}
