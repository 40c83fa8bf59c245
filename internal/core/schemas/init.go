// Package schemas registers the fleet import schemas with the core registry.
// Import this package for its side effects to make the kinds available.
package schemas

import "github.com/JonMunkholm/fleetimport/internal/core"

// Import kinds.
const (
	KindVehicle     = "vehicle"
	KindMaintenance = "maintenance"
)

func init() {
	core.Register(Vehicle())
	core.Register(Maintenance())
}
