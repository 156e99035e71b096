// Package formatter provides response filtering and serialization for SIRI responses.
//
// This package is organized into:
// - wrapper.go: filtering of vehicle activity by line and vehicle
// - json.go: JSON serialization
// - xml.go: XML serialization with proper escaping
package formatter
