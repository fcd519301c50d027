package llm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ValidateJSONAgainstSchema validates "data" against "schemaMap".
func ValidateJSONAgainstSchema(schemaMap map[string]any, data []byte) error {
	schema, err := compileSchema("schema.json", schemaMap)
	if err != nil {
		return err
	}
	return validateCompiled(schema, data)
}

func compileSchema(name string, schemaMap map[string]any) (*jsonschema.Schema, error) {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile(name)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return schema, nil
}

func validateCompiled(schema *jsonschema.Schema, data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("json does not match schema: %w", err)
	}
	return nil
}

var (
	stageSchemasMu sync.Mutex
	stageSchemas   = map[Stage]*jsonschema.Schema{}
)

// ValidateStageResult checks a decoded stage payload against the stage schema.
// Callers treat violations as warnings; the merge step supplies defaults.
func ValidateStageResult(stage Stage, res StageResult) error {
	stageSchemasMu.Lock()
	schema, ok := stageSchemas[stage]
	if !ok {
		var err error
		schema, err = compileSchema(string(stage)+".json", StageSchema(stage))
		if err != nil {
			stageSchemasMu.Unlock()
			return err
		}
		stageSchemas[stage] = schema
	}
	stageSchemasMu.Unlock()

	// null stands for "not mentioned" and is not a violation
	present := make(map[string]any, len(res))
	for k, v := range res {
		if v != nil {
			present[k] = v
		}
	}
	data, err := json.Marshal(present)
	if err != nil {
		return fmt.Errorf("marshal stage result: %w", err)
	}
	return validateCompiled(schema, data)
}
