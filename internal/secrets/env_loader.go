package secrets

import "os"

// EnvLoader builds a Loader over the given environment variables. Unset or
// empty variables are left out of the returned map so callers can fall back
// to configured values.
func EnvLoader(names ...string) Loader {
	return func() (map[string]string, error) {
		out := make(map[string]string, len(names))
		for _, name := range names {
			if val := os.Getenv(name); val != "" {
				out[name] = val
			}
		}
		return out, nil
	}
}
