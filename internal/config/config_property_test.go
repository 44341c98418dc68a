//go:build property

package config

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/spf13/viper"
)

func TestServerConfigProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.Rng.Seed(4242)

	properties := gopter.NewProperties(parameters)

	properties.Property("ports are accepted exactly within range", prop.ForAll(
		func(port int) bool {
			v := viper.New()
			v.Set("server.port", port)
			_, err := LoadFrom(v)
			inRange := port >= 0 && port <= 65535
			return (err == nil) == inRange
		},
		gen.IntRange(-1000, 70000),
	))

	properties.Property("depth limits are accepted when not negative", prop.ForAll(
		func(depth int) bool {
			v := viper.New()
			v.Set("parser.max_depth", depth)
			cfg, err := LoadFrom(v)
			if depth < 0 {
				return err != nil
			}
			return err == nil && cfg.Parser.MaxDepth == depth
		},
		gen.IntRange(-100, 10000),
	))

	properties.Property("extensions always carry a leading dot", prop.ForAll(
		func(exts []string) bool {
			if len(exts) == 0 {
				return true
			}
			v := viper.New()
			v.Set("watch.extensions", exts)
			cfg, err := LoadFrom(v)
			if err != nil {
				return true
			}
			for _, ext := range cfg.Watch.Extensions {
				if ext == "" || ext[0] != '.' {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.AlphaString()),
	))

	properties.TestingRun(t)
}
