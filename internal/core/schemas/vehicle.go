package schemas

import (
	"github.com/JonMunkholm/fleetimport/internal/core"
	"github.com/JonMunkholm/fleetimport/internal/fleet"
)

// Vehicle returns the vehicle import schema.
//
// Columns are positional: id,type,glpCapacity,fuelCapacity,currentGLP,currentFuel,x,y.
// The header line is skipped without checking names, and rows need at least
// eight fields. Current levels are optional and default to zero.
func Vehicle() core.ImportSchema {
	return core.ImportSchema{
		Kind:       KindVehicle,
		Label:      "vehicles",
		HeaderMode: core.HeaderPositional,
		KeyColumn:  "id",
		FieldSpecs: []core.FieldSpec{
			{Name: "id", Type: core.FieldText, Required: true, Normalizer: NormalizeIdentifier},
			{Name: "type", Type: core.FieldEnum, Required: true, EnumValues: fleet.VehicleTypes, Normalizer: NormalizeCode},
			{Name: "glpCapacity", Type: core.FieldNumeric, Required: true, NonNegative: true},
			{Name: "fuelCapacity", Type: core.FieldNumeric, Required: true, NonNegative: true},
			{Name: "currentGLP", Type: core.FieldNumeric, NonNegative: true, Default: "0"},
			{Name: "currentFuel", Type: core.FieldNumeric, NonNegative: true, Default: "0"},
			{Name: "x", Type: core.FieldNumeric, Required: true, NonNegative: true},
			{Name: "y", Type: core.FieldNumeric, Required: true, NonNegative: true},
		},
		Map: mapVehicle,
	}
}

// mapVehicle builds a new, available, unloaded vehicle.
func mapVehicle(row core.ValidatedRow) core.Record {
	return fleet.Vehicle{
		ID:           row.Text("id"),
		Type:         fleet.VehicleType(row.Text("type")),
		GLPCapacity:  row.Number("glpCapacity").OrDefault(0),
		FuelCapacity: row.Number("fuelCapacity").OrDefault(0),
		CurrentGLP:   row.Number("currentGLP").OrDefault(0),
		CurrentFuel:  row.Number("currentFuel").OrDefault(0),
		CurrentPosition: fleet.Position{
			X: row.Number("x").OrDefault(0),
			Y: row.Number("y").OrDefault(0),
		},
		Status:                   fleet.StatusAvailable,
		CurrentCombinedWeightTon: 0,
		CurrentGLPWeightTon:      0,
	}
}
