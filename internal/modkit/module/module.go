// Package module defines the minimal contract for a modkit module
package module

import (
	phttp "socialsync/internal/platform/net/http"
)

// Module is the contract a service module satisfies. It lives apart from modkit
// so a module can export its own ports type without an import cycle
type Module interface {
	MountRoutes(r phttp.Router)
	Ports() any
	Name() string
}
