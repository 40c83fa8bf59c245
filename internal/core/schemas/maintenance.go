package schemas

import (
	"github.com/JonMunkholm/fleetimport/internal/core"
	"github.com/JonMunkholm/fleetimport/internal/fleet"
)

// Maintenance returns the maintenance window import schema.
//
// Columns vehicle_id,start_date,end_date,type are matched by name in any
// order. vehicle_id must be a known vehicle and start_date must fall strictly
// before end_date.
func Maintenance() core.ImportSchema {
	return core.ImportSchema{
		Kind:       KindMaintenance,
		Label:      "maintenance windows",
		HeaderMode: core.HeaderByName,
		KeyColumn:  "vehicle_id",
		FieldSpecs: []core.FieldSpec{
			{Name: "vehicle_id", Type: core.FieldReference, Required: true, RefSet: fleet.RefVehicleIDs, Normalizer: NormalizeIdentifier},
			{Name: "start_date", Type: core.FieldDate, Required: true},
			{Name: "end_date", Type: core.FieldDate, Required: true},
			{Name: "type", Type: core.FieldEnum, Required: true, EnumValues: fleet.MaintenanceTypes, Normalizer: NormalizeCode},
		},
		Ordering: []core.OrderedRule{
			{Before: "start_date", After: "end_date"},
		},
		Map: mapMaintenance,
	}
}

func mapMaintenance(row core.ValidatedRow) core.Record {
	return fleet.Maintenance{
		VehicleID: row.Text("vehicle_id"),
		StartDate: row.Date("start_date").UTC(),
		EndDate:   row.Date("end_date").UTC(),
		Type:      fleet.MaintenanceType(row.Text("type")),
	}
}
