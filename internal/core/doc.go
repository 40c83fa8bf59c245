// Package core provides the business logic for tabular bulk imports.
//
// This package contains all import logic independent of any UI or transport
// layer. It is used by the web handlers and the command line tool alike, and
// it never talks to the fleet service directly: callers hand in a
// [ReferenceSource] and a [SubmitFunc].
//
// # Architecture
//
// An import moves through four stages:
//
//   - Parse: [Parse] splits delimited text into [RawRow] values and checks the
//     header against the schema.
//   - Validate: [ValidateRow] applies presence, reference, format, ordering
//     and enumeration rules and produces a [ValidatedRow].
//   - Map: each [ImportSchema] converts validated rows into domain records.
//   - Submit: [Submit] sends records one at a time under a [FailurePolicy]
//     and aggregates an [ImportSummary].
//
// [Run] composes the stages. [Check] runs the first three without
// submitting anything.
//
// # Schema Registry
//
// Import kinds are registered at init time using [Register]:
//
//	core.Register(core.ImportSchema{
//	    Kind:       "maintenance",
//	    HeaderMode: core.HeaderByName,
//	    FieldSpecs: []core.FieldSpec{
//	        {Name: "vehicle_id", Type: core.FieldReference, Required: true, RefSet: "vehicle_id"},
//	        {Name: "start_date", Type: core.FieldDate, Required: true},
//	    },
//	    Map: mapMaintenance,
//	})
//
// # Failure Policies
//
// Under [FailFast] the first invalid row or rejected submission stops the
// import and nothing after it is sent. Under [BestEffort] every row is
// attempted and each failure is reported with its source line.
//
// # Error Handling
//
// Technical errors are mapped to user-friendly messages using [MapError].
// Each error category has a unique code for support reference:
//
//   - VAL001-VAL006: Row validation (dates, numbers, presence, ordering, enums)
//   - REF001-REF002: Reference data
//   - FILE001-FILE006: File structure
//   - API001-API005: Fleet service responses
//   - IMP001-IMP004: Import lifecycle
package core
