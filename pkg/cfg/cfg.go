package cfg

import (
	"flag"

	"github.com/grafana/dskit/flagext"
	"github.com/pkg/errors"
)

// Source is a generic configuration source. This function may do whatever is
// required to obtain the configuration. It is passed a pointer to the
// destination, which will be something compatible to `yaml.Unmarshal`. The
// obtained configuration may be written to this object, it may also contain
// data from previous sources.
type Source func(interface{}) error

// Unmarshal merges the values of the various configuration sources and sets them on
// `dst`. The object must be compatible with `yaml.Unmarshal`.
func Unmarshal(dst interface{}, sources ...Source) error {
	if len(sources) == 0 {
		panic("No sources supplied to cfg.Unmarshal(). This is most likely a programming issue and should never happen. Check the code!")
	}
	for _, source := range sources {
		if err := source(dst); err != nil {
			return errors.Wrap(err, "sourcing")
		}
	}
	return nil
}

// Parse loads dst from its flag defaults, then from the YAML file when one is
// given, then from args. Later sources take precedence.
func Parse(dst flagext.Registerer, fs *flag.FlagSet, file string, expandEnv bool, args []string) error {
	sources := []Source{Defaults(fs)}
	if file != "" {
		sources = append(sources, YAML(file, expandEnv, true))
	}
	sources = append(sources, Flags(args, fs))
	return Unmarshal(dst, sources...)
}
