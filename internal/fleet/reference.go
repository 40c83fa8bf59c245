package fleet

import (
	"fmt"
	"os"
	"strings"

	"github.com/JonMunkholm/fleetimport/internal/core"
	"gopkg.in/yaml.v3"
)

// referenceFile is the offline reference dataset format.
//
// Example (YAML):
//
//	vehicles:
//	  - TA01
//	  - TB07
type referenceFile struct {
	Vehicles []string `yaml:"vehicles"`
}

// LoadReferenceFile reads known vehicle IDs from a YAML file so imports can
// be checked without reaching the fleet service.
func LoadReferenceFile(path string) (core.ReferenceSet, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("reference file path is required")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read reference file: %w", err)
	}
	return ParseReferences(b)
}

// ParseReferences decodes the YAML reference format.
func ParseReferences(b []byte) (core.ReferenceSet, error) {
	var raw referenceFile
	if err := yaml.Unmarshal(b, &raw); err != nil {
		return nil, fmt.Errorf("parse reference YAML: %w", err)
	}

	refs := core.NewReferenceSet(RefVehicleIDs)
	for _, id := range raw.Vehicles {
		if id = strings.TrimSpace(id); id != "" {
			refs.Add(RefVehicleIDs, id)
		}
	}
	return refs, nil
}
