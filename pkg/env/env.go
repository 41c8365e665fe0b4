package env

import (
	"os"
	"strings"
)

// Prefix namespaces every variable the services read outside envconfig.
const Prefix = "ORDERFLOW_"

// Get returns the trimmed value of key, or fallback when unset or blank.
func Get(key, fallback string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}
	return fallback
}

// App reads Prefix+name.
func App(name, fallback string) string {
	return Get(Prefix+name, fallback)
}
