// Package config handles application configuration loading and validation.
//
// Configuration is loaded from config.yml and validated using struct tags.
// Zero values are replaced by defaults after validation, so a minimal file
// only needs the sections it wants to change.
package config
