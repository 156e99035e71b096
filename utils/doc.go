// Package utils provides small helpers shared by the export surfaces.
//
// It contains:
//   - Time formatting and conversion utilities
package utils
