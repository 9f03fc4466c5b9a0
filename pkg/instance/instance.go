package instance

import "os"

const EnvInstanceID = "STOREFRONT_INSTANCE_ID"

// GetID identifies this process in logs: STOREFRONT_INSTANCE_ID, then the
// platform's DYNO, then the hostname, falling back to "local".
func GetID() string {
	for _, key := range []string{EnvInstanceID, "DYNO"} {
		if id := os.Getenv(key); id != "" {
			return id
		}
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "local"
}
