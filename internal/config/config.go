// SPDX-License-Identifier: MIT

// Package config loads and hot-reloads playcore's tunables, mirroring a
// FileConfig + typed sub-config + loader shape.
package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// NetworkClass is the network-quality hint fed to the scheduler.
type NetworkClass string

const (
	NetworkWifi       NetworkClass = "wifi"
	NetworkCellular   NetworkClass = "cellular"
	NetworkConstrained NetworkClass = "constrained"
	NetworkUnknown    NetworkClass = "unknown"
)

// FileConfig is the YAML-serializable configuration shape. All durations are
// strings (e.g. "8s") so the file stays human-editable and parsed at load
// time.
type FileConfig struct {
	MaxHandles          int               `yaml:"maxHandles,omitempty"`
	MaxConcurrentInits  int               `yaml:"maxConcurrentInits,omitempty"`
	InitTimeout         string            `yaml:"initTimeout,omitempty"`
	PreloadAheadByNetwork map[string]int  `yaml:"preloadAheadByNetwork,omitempty"`
	PreloadBehind       int               `yaml:"preloadBehind,omitempty"`
	CacheTargetSequence []int             `yaml:"cacheTargetSequence,omitempty"`
	DisposalDefer       string            `yaml:"disposalDefer,omitempty"`
	EvictionDistanceWeight float64        `yaml:"evictionDistanceWeight,omitempty"`
	EvictionAgeWeight   float64           `yaml:"evictionAgeWeight,omitempty"`
	SeekOnRefocus       *bool             `yaml:"seekOnRefocus,omitempty"`
	MaxRetries          int               `yaml:"maxRetries,omitempty"`
	LogLevel            string            `yaml:"logLevel,omitempty"`
	SnapshotDBPath      string            `yaml:"snapshotDbPath,omitempty"`
	ReadyQueueDBPath    string            `yaml:"readyQueueDbPath,omitempty"`
	SnapshotFlushInterval string          `yaml:"snapshotFlushInterval,omitempty"`
}

// Options is the resolved, validated runtime configuration. It is what the
// rest of playcore actually reads, FileConfig is just the wire format.
type Options struct {
	MaxHandles            int
	MaxConcurrentInits    int
	InitTimeout           time.Duration
	PreloadAheadByNetwork map[NetworkClass]int
	PreloadBehind         int
	CacheTargetSequence   []int
	CacheTargetCap        int
	DisposalDefer         time.Duration
	EvictionDistanceWeight float64
	EvictionAgeWeight      float64
	SeekOnRefocus          bool
	MaxRetries             int
	LogLevel               string

	// SnapshotDBPath and ReadyQueueDBPath enable the optional restart-survival
	// caches (C10) when non-empty. Both are off by default; losing either file
	// costs one cold start's worth of preload latency, nothing more.
	SnapshotDBPath        string
	ReadyQueueDBPath      string
	SnapshotFlushInterval time.Duration
}

// Default returns playcore's out-of-the-box tunable defaults.
func Default() Options {
	return Options{
		MaxHandles:         15,
		MaxConcurrentInits: 3,
		InitTimeout:        8 * time.Second,
		PreloadAheadByNetwork: map[NetworkClass]int{
			NetworkWifi:        5,
			NetworkCellular:    2,
			NetworkConstrained: 1,
			NetworkUnknown:     1,
		},
		PreloadBehind:          1,
		CacheTargetSequence:    []int{5, 7, 11, 17, 23},
		CacheTargetCap:         50,
		DisposalDefer:          200 * time.Millisecond,
		EvictionDistanceWeight: 10.0,
		EvictionAgeWeight:      1.0,
		SeekOnRefocus:          true,
		MaxRetries:             3,
		LogLevel:               "info",
		SnapshotFlushInterval:  5 * time.Second,
	}
}

// ConstrainedDefaults returns tunables sized for memory-constrained
// platforms (max_handles=3, max_concurrent_inits=1, init_timeout=15s).
func ConstrainedDefaults() Options {
	o := Default()
	o.MaxHandles = 3
	o.MaxConcurrentInits = 1
	o.InitTimeout = 15 * time.Second
	o.PreloadAheadByNetwork[NetworkConstrained] = 1
	return o
}

// Load reads a YAML file at path and overlays it onto Default(). A missing
// file is not an error, it simply means "use defaults", which keeps the
// demo and tests runnable without a config file on disk.
func Load(path string) (Options, error) {
	opts := Default()
	if path == "" {
		return opts, nil
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return opts, nil
	}
	if err != nil {
		return opts, err
	}

	var fc FileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return opts, err
	}
	return applyFileConfig(opts, fc), nil
}

func applyFileConfig(opts Options, fc FileConfig) Options {
	if fc.MaxHandles > 0 {
		opts.MaxHandles = fc.MaxHandles
	}
	if fc.MaxConcurrentInits > 0 {
		opts.MaxConcurrentInits = fc.MaxConcurrentInits
	}
	if fc.InitTimeout != "" {
		if d, err := time.ParseDuration(fc.InitTimeout); err == nil {
			opts.InitTimeout = d
		}
	}
	if len(fc.PreloadAheadByNetwork) > 0 {
		for k, v := range fc.PreloadAheadByNetwork {
			opts.PreloadAheadByNetwork[NetworkClass(k)] = v
		}
	}
	if fc.PreloadBehind > 0 {
		opts.PreloadBehind = fc.PreloadBehind
	}
	if len(fc.CacheTargetSequence) > 0 {
		opts.CacheTargetSequence = fc.CacheTargetSequence
	}
	if fc.DisposalDefer != "" {
		if d, err := time.ParseDuration(fc.DisposalDefer); err == nil {
			opts.DisposalDefer = d
		}
	}
	if fc.EvictionDistanceWeight > 0 {
		opts.EvictionDistanceWeight = fc.EvictionDistanceWeight
	}
	if fc.EvictionAgeWeight > 0 {
		opts.EvictionAgeWeight = fc.EvictionAgeWeight
	}
	if fc.SeekOnRefocus != nil {
		opts.SeekOnRefocus = *fc.SeekOnRefocus
	}
	if fc.MaxRetries > 0 {
		opts.MaxRetries = fc.MaxRetries
	}
	if fc.LogLevel != "" {
		opts.LogLevel = fc.LogLevel
	}
	if fc.SnapshotDBPath != "" {
		opts.SnapshotDBPath = fc.SnapshotDBPath
	}
	if fc.ReadyQueueDBPath != "" {
		opts.ReadyQueueDBPath = fc.ReadyQueueDBPath
	}
	if fc.SnapshotFlushInterval != "" {
		if d, err := time.ParseDuration(fc.SnapshotFlushInterval); err == nil {
			opts.SnapshotFlushInterval = d
		}
	}
	return opts
}
