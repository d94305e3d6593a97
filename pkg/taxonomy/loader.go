package taxonomy

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// overrideFile is the on-disk shape of an operator-supplied taxonomy
// extension file.
type overrideFile struct {
	Families []FamilyDef `yaml:"families"`
}

// LoadOverrides reads a YAML file of additional family/type definitions and
// merges them into t. A missing path is not an error — taxonomy overrides
// are optional.
func LoadOverrides(t *Taxonomy, path string) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("taxonomy: read %s: %w", path, err)
	}
	var f overrideFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("taxonomy: parse %s: %w", path, err)
	}
	t.Merge(f.Families)
	return nil
}
