package cfg

import (
	"os"

	"github.com/drone/envsubst"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

// YAML returns a Source that opens the supplied `.yaml` file and loads it.
// When expandEnvVars is true, variables in the supplied '.yaml\ file are expanded
// using https://pkg.go.dev/github.com/drone/envsubst?tab=overview
func YAML(f string, expandEnvVars bool, strict bool) Source {
	return func(dst interface{}) error {
		y, err := os.ReadFile(f)
		if err != nil {
			return errors.Wrap(err, "Error reading config file")
		}

		if expandEnvVars {
			s, err := envsubst.EvalEnv(string(y))
			if err != nil {
				return errors.Wrap(err, "Error expanding env vars")
			}
			y = []byte(s)
		}
		return dYAML(y, strict)(dst)
	}
}

// dYAML returns a YAML source and allows dependency injection
func dYAML(y []byte, strict bool) Source {
	return func(dst interface{}) error {
		if strict {
			return yaml.UnmarshalStrict(y, dst)
		}
		return yaml.Unmarshal(y, dst)
	}
}
