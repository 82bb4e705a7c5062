// Package core defines the shared language of the salesload system.
//
// This package contains:
//   - Source entities (RawRecord) produced by the quality gate
//   - Star schema rows (DimCustomer, DimProduct, FactSales)
//   - Target table definitions and business-key helpers (Table, Record)
//   - Run history entities (Run, BatchRun)
//   - Shared error types (SchemaError)
//
// The Golden Rule: pkg/core imports ONLY apd and stdlib.
// All other packages depend on core, not the reverse.
package core
