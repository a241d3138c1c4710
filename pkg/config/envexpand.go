package config

import "os"

// ExpandEnv expands ${VAR} / $VAR references in data using the process
// environment. Missing variables expand to the empty string, matching
// os.ExpandEnv's behavior.
func ExpandEnv(data []byte) []byte {
	return []byte(os.Expand(string(data), os.Getenv))
}
