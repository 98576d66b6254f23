package am

import (
	"sort"

	"github.com/joho/godotenv"

	"github.com/teranos/qconsole/errors"
)

// Environment returns the extra child environment: the entries of EnvFile
// sorted by key, then Env. Later entries override earlier ones when the
// child's environment is built.
func (k KernelConfig) Environment() ([]string, error) {
	env := make([]string, 0, len(k.Env))
	if k.EnvFile != "" {
		vars, err := godotenv.Read(k.EnvFile)
		if err != nil {
			return nil, errors.WithHint(errors.Wrapf(err, "kernel.env_file %s", k.EnvFile),
				"the file must use KEY=VALUE lines, as in a .env file")
		}
		keys := make([]string, 0, len(vars))
		for key := range vars {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			env = append(env, key+"="+vars[key])
		}
	}
	return append(env, k.Env...), nil
}
