package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load loads a configuration bundle from a JSON or YAML file. The format of
// the file is determined by examining its extension; files ending in .json
// are parsed as JSON files, and files ending in .yaml or .yml are parsed as
// YAML files. Other extensions are not supported. The extension is not
// case-sensitive.
//
// The returned bundle has not had defaults applied or been checked for
// validity; call FillDefaults and Validate before use.
func Load(file string) (Bundle, error) {
	var b Bundle

	data, err := os.ReadFile(file)
	if err != nil {
		return b, fmt.Errorf("%q: %w", file, err)
	}

	switch filepath.Ext(strings.ToLower(file)) {
	case ".json":
		err = json.Unmarshal(data, &b)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &b)
	default:
		return b, fmt.Errorf("%q: incompatible format; must be .json, .yml, or .yaml file", file)
	}
	if err != nil {
		return b, fmt.Errorf("%q: %w", file, err)
	}

	return b, nil
}

// Dump marshals the bundle to YAML bytes, suitable for writing back out as a
// config file.
func Dump(b Bundle) ([]byte, error) {
	return yaml.Marshal(b)
}
