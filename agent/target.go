package agent

import "strings"

// ProductionHost is the public endpoint used when no container is set.
const ProductionHost = "https://icp-api.io"

// DefaultContainer is the usual address of a local development container.
const DefaultContainer = "http://127.0.0.1:5987"

// Target addresses a satellite, in production or in a local container.
type Target struct {
	SatelliteID string

	// Container is the base URL of a local container. Empty means production.
	Container string
}

// Local reports whether the target is a local container.
func (t Target) Local() bool {
	return t.Container != ""
}

// Host returns the base URL requests are sent to.
func (t Target) Host() string {
	if !t.Local() {
		return ProductionHost
	}
	return strings.TrimRight(t.Container, "/")
}
