// Copyright (C) 2020 Markus L. Noga
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package ops

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Decodes an operator, typically a sequence, from a JSON or YAML job description.
// YAML is converted to JSON first, so both share the operators' json field names.
func ParseJob(data []byte, isYAML bool) (Operator, error) {
	if isYAML {
		var err error
		if data, err = yamlToJSON(data); err != nil {
			return nil, err
		}
	}
	return UnmarshalOperator(data)
}

// Reads a job file. Files ending in .yaml or .yml are YAML, all others JSON
func LoadJob(fileName string) (Operator, error) {
	data, err := os.ReadFile(fileName)
	if err != nil {
		return nil, err
	}
	ext := strings.ToLower(filepath.Ext(fileName))
	op, err := ParseJob(data, ext == ".yaml" || ext == ".yml")
	if err != nil {
		return nil, fmt.Errorf("error parsing job %s: %w", fileName, err)
	}
	return op, nil
}

func yamlToJSON(data []byte) ([]byte, error) {
	var v interface{}
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return json.Marshal(jsonCompatible(v))
}

// Converts maps with non-string keys, as YAML allows, into string-keyed maps
func jsonCompatible(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		for k, e := range t {
			t[k] = jsonCompatible(e)
		}
		return t
	case map[interface{}]interface{}:
		res := make(map[string]interface{}, len(t))
		for k, e := range t {
			res[fmt.Sprint(k)] = jsonCompatible(e)
		}
		return res
	case []interface{}:
		for i, e := range t {
			t[i] = jsonCompatible(e)
		}
		return t
	}
	return v
}
