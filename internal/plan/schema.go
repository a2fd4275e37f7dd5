package plan

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// CurrentSchema is the schema version written by this release.
const CurrentSchema = "1.0.0"

// SupportedSchemas is the range of plan schema versions that can be read.
const SupportedSchemas = ">= 1.0.0, < 2.0.0"

// ErrUnsupportedSchema is returned for a schema version outside
// SupportedSchemas or one that does not parse.
var ErrUnsupportedSchema = errors.New("unsupported plan schema")

var defaultSchema = semver.MustParse(CurrentSchema)

// CheckSchema parses a plan's schema version. An empty version is read as
// CurrentSchema.
func CheckSchema(v string) (*semver.Version, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return defaultSchema, nil
	}
	ver, err := semver.NewVersion(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrUnsupportedSchema, v, err)
	}
	c, err := semver.NewConstraint(SupportedSchemas)
	if err != nil {
		return nil, fmt.Errorf("plan: schema constraint: %w", err)
	}
	if !c.Check(ver) {
		return nil, fmt.Errorf("%w: %s (supported %s)", ErrUnsupportedSchema, ver, SupportedSchemas)
	}
	return ver, nil
}
