package config

import "sort"

func preset(edit func(c *Config)) *Config {
	c := DefaultConfig()
	edit(c)
	return c
}

var Presets = map[string]*Config{
	"binary": preset(func(c *Config) {
		c.Name = "binary"
		c.Steps = 500
		c.Softening = 0
		c.Init = InitConfig{Kind: "binary", NumBodies: 2, Radius: 1}
		c.Snapshot.Every = 1
	}),
	"cluster": preset(func(c *Config) {
		c.Name = "cluster"
		c.Steps = 2000
		c.Dt = 0.005
		c.LeafCapacity = 4
		c.Init = InitConfig{Kind: "sphere", NumBodies: 2000, Radius: 1, Speed: 1}
	}),
	"disk": preset(func(c *Config) {
		c.Name = "disk"
		c.Steps = 3000
		c.Dt = 0.002
		c.ZOffset = true
		c.CubeRefresh = 5
		c.Init = InitConfig{Kind: "disk", NumBodies: 4000, Radius: 1, CentralMass: 1, Speed: 1}
	}),
	"disk-mond": preset(func(c *Config) {
		c.Name = "disk-mond"
		c.Steps = 3000
		c.Dt = 0.002
		c.ZOffset = true
		c.CubeRefresh = 5
		c.ForceModel = "mond-simple"
		c.A0 = 0.1
		c.Init = InitConfig{Kind: "disk", NumBodies: 4000, Radius: 1, CentralMass: 1, Speed: 1}
	}),
}

// GetPreset returns a copy of the named preset, or nil.
func GetPreset(name string) *Config {
	cfg, ok := Presets[name]
	if !ok {
		return nil
	}
	return cfg.Clone()
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
