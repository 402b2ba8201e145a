// Package config is for app wide settings that are unmarshalled from
// Viper: server defaults plus user defined color schemes layered on top
// of the built in ones.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/maquino1985/abseq/internal/selection"
)

// SchemeConfig is one user defined residue color scheme.
type SchemeConfig struct {
	// the scheme name used in API and CLI scheme lookups
	Name string `mapstructure:"name"`

	// color by region membership instead of residue letter
	ByRegion bool `mapstructure:"by-region"`

	// single letter residue code to "#rrggbb" color
	Colors map[string]string `mapstructure:"colors"`
}

// Settings is the root-level settings struct, a mix of settings available
// in abseq.yaml and those available from the command line.
type Settings struct {
	// HTTP service port
	Port int `mapstructure:"port"`

	// minutes an untouched session survives
	SessionTTLMinutes int `mapstructure:"session-ttl-minutes"`

	// local directory that dataset references resolve against
	Datasets string `mapstructure:"datasets"`

	// buckets the server may read datasets from
	Buckets []string `mapstructure:"buckets"`

	// extra color schemes to register at startup
	Schemes []SchemeConfig `mapstructure:"schemes"`
}

// Load reads settings from the given config file.  An empty path returns
// the defaults.
func Load(path string) (Settings, error) {
	v := viper.New()
	v.SetDefault("port", 8080)
	v.SetDefault("session-ttl-minutes", 30)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Settings{}, fmt.Errorf("reading config %s: %v", path, err)
		}
	}

	var settings Settings
	if err := v.Unmarshal(&settings); err != nil {
		return Settings{}, fmt.Errorf("decoding config: %v", err)
	}
	return settings, nil
}

// RegisterSchemes installs the configured color schemes into the scheme
// registry, validating residue keys.
func (s Settings) RegisterSchemes() error {
	for _, sc := range s.Schemes {
		if sc.Name == "" {
			return fmt.Errorf("color scheme with empty name")
		}
		scheme := &selection.Scheme{
			Name:     sc.Name,
			ByRegion: sc.ByRegion,
			Colors:   make(map[byte]string, len(sc.Colors)),
		}
		// Viper lowercases YAML map keys, so residue letters are matched
		// case-insensitively and stored uppercase.
		for residue, color := range sc.Colors {
			upper := strings.ToUpper(residue)
			if len(upper) != 1 || upper[0] < 'A' || upper[0] > 'Z' {
				return fmt.Errorf("scheme %s: invalid residue key %q", sc.Name, residue)
			}
			scheme.Colors[upper[0]] = color
		}
		selection.RegisterScheme(scheme)
	}
	return nil
}
