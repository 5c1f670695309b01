package strategy

import (
	"errors"
	"fmt"

	"github.com/Masterminds/semver/v3"
)

// ErrInvalidSchema is returned when the schema version is not supported
var ErrInvalidSchema = errors.New("invalid or unsupported schema version")

// SupportedSchemaVersions lists all supported schema versions
var SupportedSchemaVersions = []string{"1.0"}

// IsVersionSupported checks if a schema version is supported.
// Versions sharing major.minor with a supported one are compatible.
func IsVersionSupported(version string) bool {
	for _, v := range SupportedSchemaVersions {
		if v == version {
			return true
		}
	}

	v, err := semver.NewVersion(version)
	if err != nil {
		return false
	}

	for _, supported := range SupportedSchemaVersions {
		sv, err := semver.NewVersion(supported)
		if err != nil {
			continue
		}
		if v.Major() == sv.Major() && v.Minor() == sv.Minor() {
			return true
		}
	}
	return false
}

// CheckCompatibility checks if a document version can be loaded
func CheckCompatibility(version string) error {
	if version == "" {
		return fmt.Errorf("%w: metadata.schema_version", ErrMissingRequiredField)
	}

	v, err := semver.NewVersion(version)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidSchema, version)
	}
	if IsVersionSupported(version) {
		return nil
	}
	if v.GreaterThan(semver.MustParse(SchemaVersion)) {
		return fmt.Errorf("%w: %s is newer than supported version %s", ErrInvalidSchema, version, SchemaVersion)
	}
	return fmt.Errorf("%w: %s", ErrInvalidSchema, version)
}
