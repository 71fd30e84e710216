// Package core provides the business logic for product records.
//
// This package holds the domain logic independent of any UI or transport
// layer. It is used by the web handlers and the CLI alike.
//
// # Records
//
// A [Product] is created from a [ProductInput] by [Service.CreateProduct],
// which validates and normalizes the input with [ValidateProduct] and hands
// the record to a [ProductStore]. Stores list products newest first.
//
// # Validation
//
// Rules per field:
//
//   - barcode: 8 to 14 characters
//   - productName: 1 to 200 characters
//   - retailPrice: digits with at most two decimals, greater than zero,
//     stored with exactly two decimals
//   - category: 1 to 100 characters
//   - unitOfMeasure: 1 to 20 characters
//
// Failures are returned together as [ValidationErrors], one entry per field.
//
// # Export
//
// [WriteCSV] and [WriteJSON] render the backlog for download; see export.go
// for the exact CSV layout. An empty backlog is refused with
// [ErrNothingToExport].
//
// # Error Handling
//
// Technical errors are mapped to user-friendly messages using [MapError].
// Each error category has a unique code for support reference:
//
//   - DB001-DB008: Database errors
//   - VAL001-VAL003: Validation and request body errors
//   - EXP001-EXP002: Export errors
//   - SCN001-SCN009: Scan session errors
//   - CAM000-CAM008: Camera start failures, passed through from capture
package core
