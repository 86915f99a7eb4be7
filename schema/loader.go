package schema

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

type definitionFile struct {
	Entities []EntityDef `yaml:"entities"`
}

// LoadDefinitions decodes entity definitions from YAML, either an "entities" list or a stream of
// documents holding one entity each
func LoadDefinitions(r io.Reader) ([]EntityDef, error) {
	var defs []EntityDef
	decoder := yaml.NewDecoder(r)

	for {
		var node yaml.Node
		if err := decoder.Decode(&node); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, &ConfigurationError{Err: fmt.Errorf("decode entity definitions: %w", err)}
		}

		var file definitionFile
		if err := node.Decode(&file); err == nil && len(file.Entities) > 0 {
			defs = append(defs, file.Entities...)
			continue
		}

		var def EntityDef
		if err := node.Decode(&def); err != nil {
			return nil, &ConfigurationError{Err: fmt.Errorf("decode entity definition: %w", err)}
		}
		if def.Name == "" {
			return nil, &ConfigurationError{Err: fmt.Errorf("entity definition at line %d has no name", node.Line)}
		}
		defs = append(defs, def)
	}

	return defs, nil
}

// LoadDefinitionsFile reads one YAML file
func LoadDefinitionsFile(path string) ([]EntityDef, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	defs, err := LoadDefinitions(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return defs, nil
}

// LoadDefinitionsDir reads every *.yaml and *.yml file of dir in name order
func LoadDefinitionsDir(dir string) ([]EntityDef, error) {
	var files []string
	for _, pattern := range []string{"*.yaml", "*.yml"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, err
		}
		files = append(files, matches...)
	}
	sort.Strings(files)

	var defs []EntityDef
	for _, file := range files {
		fileDefs, err := LoadDefinitionsFile(file)
		if err != nil {
			return nil, err
		}
		defs = append(defs, fileDefs...)
	}
	return defs, nil
}
