// Package fleet holds the fleet domain records and the REST client for the
// fleet service that imports are submitted to.
package fleet

import "time"

// RefVehicleIDs names the reference set of known vehicle IDs.
const RefVehicleIDs = "vehicle_id"

// VehicleType is a vehicle class code.
type VehicleType string

const (
	VehicleTA VehicleType = "TA"
	VehicleTB VehicleType = "TB"
	VehicleTC VehicleType = "TC"
	VehicleTD VehicleType = "TD"
)

// VehicleTypes lists the accepted vehicle type codes in canonical case.
var VehicleTypes = []string{string(VehicleTA), string(VehicleTB), string(VehicleTC), string(VehicleTD)}

// VehicleStatus is the operational state of a vehicle.
type VehicleStatus string

const (
	StatusAvailable   VehicleStatus = "AVAILABLE"
	StatusMaintenance VehicleStatus = "MAINTENANCE"
)

// MaintenanceType is the kind of maintenance window.
type MaintenanceType string

const (
	MaintenancePreventive MaintenanceType = "PREVENTIVE"
	MaintenanceCorrective MaintenanceType = "CORRECTIVE"
)

// MaintenanceTypes lists the accepted maintenance types in canonical case.
var MaintenanceTypes = []string{string(MaintenancePreventive), string(MaintenanceCorrective)}

// Position is a grid coordinate.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Vehicle is the payload for POST /vehicles.
type Vehicle struct {
	ID                       string        `json:"id"`
	Type                     VehicleType   `json:"type"`
	GLPCapacity              float64       `json:"glpCapacity"`
	FuelCapacity             float64       `json:"fuelCapacity"`
	CurrentGLP               float64       `json:"currentGLP"`
	CurrentFuel              float64       `json:"currentFuel"`
	CurrentPosition          Position      `json:"currentPosition"`
	Status                   VehicleStatus `json:"status"`
	CurrentCombinedWeightTon float64       `json:"currentCombinedWeightTon"`
	CurrentGLPWeightTon      float64       `json:"currentGlpWeightTon"`
}

// RecordKey identifies the vehicle in import outcomes.
func (v Vehicle) RecordKey() string { return v.ID }

// Maintenance is the payload for POST /maintenance.
// StartDate is strictly before EndDate; both are UTC.
type Maintenance struct {
	VehicleID string          `json:"vehicleId"`
	StartDate time.Time       `json:"startDate"`
	EndDate   time.Time       `json:"endDate"`
	Type      MaintenanceType `json:"type"`
}

// RecordKey identifies the maintenance window in import outcomes.
func (m Maintenance) RecordKey() string { return m.VehicleID }
