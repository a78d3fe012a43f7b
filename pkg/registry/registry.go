// pkg/registry/registry.go
package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/xeipuuv/gojsonschema"
)

func LoadRegistry(path string) (*ActivityRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var reg ActivityRegistry
	err = json.Unmarshal(data, &reg)
	return &reg, err
}

// Save writes reg as indented JSON, creating the parent directory.
func Save(reg *ActivityRegistry, path string) error {
	data, err := json.MarshalIndent(reg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal registry: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write registry file: %w", err)
	}
	return nil
}

// Find returns the activity registered for taskType.
func (r *ActivityRegistry) Find(taskType string) (*Activity, error) {
	for i := range r.Activities {
		if r.Activities[i].TaskType == taskType {
			return &r.Activities[i], nil
		}
	}
	return nil, fmt.Errorf("no activity registered for task type %s", taskType)
}

// Validate checks required fields, uniqueness and that every input and
// output schema compiles.
func (r *ActivityRegistry) Validate() error {
	if len(r.Activities) == 0 {
		return fmt.Errorf("registry contains no activities")
	}

	ids := make(map[string]bool)
	taskTypes := make(map[string]bool)
	for _, activity := range r.Activities {
		if activity.ID == "" {
			return fmt.Errorf("activity missing required field: ID")
		}
		if ids[activity.ID] {
			return fmt.Errorf("duplicate activity ID: %s", activity.ID)
		}
		ids[activity.ID] = true

		if activity.DisplayName == "" {
			return fmt.Errorf("activity %s missing required field: DisplayName", activity.ID)
		}
		if activity.TaskType == "" {
			return fmt.Errorf("activity %s missing required field: TaskType", activity.ID)
		}
		if taskTypes[activity.TaskType] {
			return fmt.Errorf("duplicate task type: %s", activity.TaskType)
		}
		taskTypes[activity.TaskType] = true

		if activity.Category == "" {
			return fmt.Errorf("activity %s missing required field: Category", activity.ID)
		}
		if activity.Timeout != "" {
			if _, err := time.ParseDuration(activity.Timeout); err != nil {
				return fmt.Errorf("activity %s has invalid timeout %q: %w", activity.ID, activity.Timeout, err)
			}
		}
		for name, schema := range map[string]map[string]interface{}{"input": activity.InputSchema, "output": activity.OutputSchema} {
			if len(schema) == 0 {
				continue
			}
			if _, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(schema)); err != nil {
				return fmt.Errorf("activity %s has invalid %s schema: %w", activity.ID, name, err)
			}
		}
	}
	return nil
}

// ValidateInput checks job variables against the activity's input schema.
func (a *Activity) ValidateInput(variables map[string]interface{}) error {
	if len(a.InputSchema) == 0 {
		return nil
	}
	if variables == nil {
		variables = map[string]interface{}{}
	}
	result, err := gojsonschema.Validate(gojsonschema.NewGoLoader(a.InputSchema), gojsonschema.NewGoLoader(variables))
	if err != nil {
		return fmt.Errorf("activity %s: %w", a.ID, err)
	}
	if result.Valid() {
		return nil
	}
	first := result.Errors()[0]
	return fmt.Errorf("activity %s: %s (%d violations)", a.ID, first.String(), len(result.Errors()))
}

// Sync adds catalog activities missing from r and refreshes the contract
// fields of existing ones. Implementation status and tags stay as recorded.
func (r *ActivityRegistry) Sync(catalog *ActivityRegistry, now time.Time) (added, updated int) {
	for _, want := range catalog.Activities {
		existing, err := r.Find(want.TaskType)
		if err != nil {
			r.Activities = append(r.Activities, want)
			added++
			continue
		}
		existing.DisplayName = want.DisplayName
		existing.Description = want.Description
		existing.Category = want.Category
		existing.InputSchema = want.InputSchema
		existing.OutputSchema = want.OutputSchema
		existing.ErrorCodes = want.ErrorCodes
		existing.Timeout = want.Timeout
		existing.Retries = want.Retries
		updated++
	}
	if added+updated > 0 {
		r.LastUpdated = now.UTC().Format(time.RFC3339)
	}
	return added, updated
}
