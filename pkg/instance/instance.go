package instance

import (
	"os"

	"github.com/angelmondragon/orderflow-backend/pkg/env"
)

const fallbackID = "worker-0"

// ID names this process among its replicas: ORDERFLOW_WORKER_ID when set,
// otherwise the host name.
func ID() string {
	if id := env.App("WORKER_ID", ""); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return fallbackID
}
