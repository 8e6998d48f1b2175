package cfg

import (
	"flag"

	"github.com/grafana/dskit/flagext"
	"github.com/pkg/errors"
)

// Defaults registers flags to the flagSet using dst as the flagext.Registerer.
// Registering sets every field to its default.
func Defaults(fs *flag.FlagSet) Source {
	return func(dst interface{}) error {
		r, ok := dst.(flagext.Registerer)
		if !ok {
			return errors.New("dst does not satisfy flagext.Registerer")
		}
		r.RegisterFlags(fs)
		return nil
	}
}

// Flags parses args against the flagSet passed to Defaults, setting only
// user-supplied values.
func Flags(args []string, fs *flag.FlagSet) Source {
	return func(interface{}) error {
		return fs.Parse(args)
	}
}
