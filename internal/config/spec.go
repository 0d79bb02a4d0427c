/*
Copyright 2024 Telespazio UK.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package config

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"

	corev1alpha1 "github.com/EO-DataHub/eodhp-transfer-planner/api/v1alpha1"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"sigs.k8s.io/yaml"
)

//go:embed transfer.schema.json
var transferSchema string

var (
	schemaOnce     sync.Once
	schemaErr      error
	compiledSchema *jsonschema.Schema
)

// LoadTransferSpec reads a transfer spec document (YAML or JSON), validates
// its shape against the embedded schema and decodes it. Coherence rules
// beyond the document shape are checked later by plan.Validate.
func LoadTransferSpec(path string) (*corev1alpha1.TransferSpec, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("problem reading transfer spec: %w", err)
	}
	return ParseTransferSpec(content)
}

// ParseTransferSpec validates and decodes one transfer spec document.
func ParseTransferSpec(content []byte) (*corev1alpha1.TransferSpec, error) {
	sch, err := loadSchema()
	if err != nil {
		return nil, err
	}

	jsonData, err := yaml.YAMLToJSON(content)
	if err != nil {
		return nil, fmt.Errorf("convert yaml to json: %w", err)
	}

	var document any
	if err := json.Unmarshal(jsonData, &document); err != nil {
		return nil, fmt.Errorf("unmarshal json: %w", err)
	}
	if err := sch.Validate(document); err != nil {
		return nil, fmt.Errorf("transfer spec failed schema validation: %w", err)
	}

	spec := &corev1alpha1.TransferSpec{}
	if err := json.Unmarshal(jsonData, spec); err != nil {
		return nil, err
	}
	return spec, nil
}

func loadSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("transfer.schema.json",
			strings.NewReader(transferSchema)); err != nil {
			schemaErr = err
			return
		}
		compiledSchema, schemaErr = compiler.Compile("transfer.schema.json")
	})
	return compiledSchema, schemaErr
}
