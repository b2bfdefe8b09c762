// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

// Package schema validates record bodies against JSON schemas identified by their $id.
package schema

import (
	"errors"
	"fmt"
	"io/fs"
	"path"
	"strings"

	"github.com/goccy/go-json"

	"github.com/xeipuuv/gojsonschema"
)

// refsDir is the directory of shared schemas which top level schemas may $ref
const refsDir = "refs"

// Validator holds compiled record schemas by $id
type Validator struct {
	schemas map[string]*gojsonschema.Schema
}

// NewValidatorFromFS loads the record schemas from the *.json files at the root of
// schemaFS. Files in refs/ are shared definitions, they can be referenced but are not
// record schemas themselves. A missing refs directory is fine.
func NewValidatorFromFS(schemaFS fs.FS) (*Validator, error) {
	records, err := readSchemas(schemaFS, ".")
	if err != nil {
		return nil, err
	}
	var refs []string
	if _, err := fs.Stat(schemaFS, refsDir); err == nil {
		if refs, err = readSchemas(schemaFS, refsDir); err != nil {
			return nil, err
		}
	}
	return NewValidator(records, refs)
}

func readSchemas(schemaFS fs.FS, dir string) ([]string, error) {
	entries, err := fs.ReadDir(schemaFS, dir)
	if err != nil {
		return nil, fmt.Errorf("cannot list schema directory %s: %w", dir, err)
	}
	var documents []string
	for _, entry := range entries {
		if entry.IsDir() || path.Ext(entry.Name()) != ".json" {
			continue
		}
		data, err := fs.ReadFile(schemaFS, path.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("cannot load schema file %s: %w", entry.Name(), err)
		}
		documents = append(documents, string(data))
	}
	return documents, nil
}

// NewValidator compiles the record schemas. Every record schema must carry an $id,
// which is the schema_id resources refer to. Record schemas can only $ref into refs.
func NewValidator(records []string, refs []string) (*Validator, error) {
	v := &Validator{schemas: make(map[string]*gojsonschema.Schema, len(records))}
	for _, document := range records {
		id, err := schemaID(document)
		if err != nil {
			return nil, err
		}
		if _, duplicate := v.schemas[id]; duplicate {
			return nil, fmt.Errorf("record schema %s is defined twice", id)
		}

		// every record schema gets its own loader with the shared refs
		loader := gojsonschema.NewSchemaLoader()
		for _, ref := range refs {
			if err := loader.AddSchemas(gojsonschema.NewStringLoader(ref)); err != nil {
				return nil, fmt.Errorf("invalid shared schema: %w", err)
			}
		}
		compiled, err := loader.Compile(gojsonschema.NewStringLoader(document))
		if err != nil {
			return nil, fmt.Errorf("invalid record schema %s: %w", id, err)
		}
		v.schemas[id] = compiled
	}
	return v, nil
}

func schemaID(document string) (string, error) {
	var header struct {
		ID string `json:"$id"`
	}
	if err := json.Unmarshal([]byte(document), &header); err != nil {
		return "", fmt.Errorf("record schema is not valid JSON: %w", err)
	}
	if header.ID == "" {
		return "", errors.New("record schema without $id")
	}
	return header.ID, nil
}

// HasSchema returns true if schemaID is known. It is safe on a nil validator.
func (v *Validator) HasSchema(schemaID string) bool {
	if v == nil {
		return false
	}
	_, ok := v.schemas[schemaID]
	return ok
}

// ValidateData validates a decoded JSON value, for example a record, against schemaID
func (v *Validator) ValidateData(data interface{}, schemaID string) error {
	return v.validate(gojsonschema.NewGoLoader(data), schemaID)
}

// ValidateString validates a JSON document against schemaID
func (v *Validator) ValidateString(document, schemaID string) error {
	return v.validate(gojsonschema.NewStringLoader(document), schemaID)
}

func (v *Validator) validate(loader gojsonschema.JSONLoader, schemaID string) error {
	if !v.HasSchema(schemaID) {
		return fmt.Errorf("unknown schema_id %s", schemaID)
	}
	result, err := v.schemas[schemaID].Validate(loader)
	if err != nil {
		return fmt.Errorf("cannot validate against %s: %w", schemaID, err)
	}
	if result.Valid() {
		return nil
	}
	violations := make([]string, len(result.Errors()))
	for i, e := range result.Errors() {
		violations[i] = e.String()
	}
	return errors.New("record violates schema: " + strings.Join(violations, "; "))
}
