// cmd/tools/worker-generator/main.go
package main

import (
	"bytes"
	"flag"
	"fmt"
	"go/format"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/template"
	"time"

	"docgen-workers/pkg/registry"
)

// WorkerData holds data for templates
type WorkerData struct {
	Name          string
	PackageName   string
	TaskType      string
	Description   string
	TimeoutExpr   string
	InputFields   []Field
	OutputFields  []Field
	Required      []Field
	MaxJobsActive int
}

// Field is one struct field generated from a JSON schema property.
type Field struct {
	Name    string
	GoType  string
	JSONKey string
}

// schemaFields returns the schema properties as fields sorted by JSON key.
func schemaFields(schema map[string]interface{}) []Field {
	props, _ := schema["properties"].(map[string]interface{})
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fields := make([]Field, 0, len(keys))
	for _, k := range keys {
		details, _ := props[k].(map[string]interface{})
		fields = append(fields, Field{
			Name:    goName(k),
			GoType:  goTypeFromJSONType(details["type"]),
			JSONKey: k,
		})
	}
	return fields
}

// requiredStrings returns the required string fields of schema.
func requiredStrings(schema map[string]interface{}, fields []Field) []Field {
	required := map[string]bool{}
	if list, ok := schema["required"].([]interface{}); ok {
		for _, r := range list {
			if s, ok := r.(string); ok {
				required[s] = true
			}
		}
	}
	var out []Field
	for _, f := range fields {
		if required[f.JSONKey] && f.GoType == "string" {
			out = append(out, f)
		}
	}
	return out
}

// goTypeFromJSONType maps JSON schema types to Go types
func goTypeFromJSONType(jsonType interface{}) string {
	jt, _ := jsonType.(string)
	switch jt {
	case "string":
		return "string"
	case "integer":
		return "int64"
	case "number":
		return "float64"
	case "boolean":
		return "bool"
	case "object":
		return "map[string]interface{}"
	case "array":
		return "[]interface{}"
	default:
		return "interface{}"
	}
}

// goName turns a JSON key such as "file_url" or "fileUrl" into FileURL.
func goName(key string) string {
	parts := strings.FieldsFunc(key, func(r rune) bool { return r == '_' || r == '-' || r == '.' })
	var b strings.Builder
	for _, p := range parts {
		if strings.EqualFold(p, "id") || strings.EqualFold(p, "url") {
			b.WriteString(strings.ToUpper(p))
			continue
		}
		b.WriteString(strings.ToUpper(p[:1]) + p[1:])
	}
	name := b.String()
	for _, suffix := range []string{"Id", "Url"} {
		if strings.HasSuffix(name, suffix) {
			name = strings.TrimSuffix(name, suffix) + strings.ToUpper(suffix)
		}
	}
	return name
}

const handlerTemplate = `package {{ .PackageName }}

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"docgen-workers/internal/common/errors"
	"docgen-workers/internal/common/logger"
)

const TaskType = "{{ .TaskType }}"

type Handler struct {
	config *Config
	errors *errors.ErrorHandler
	logger logger.Logger
}

func NewHandler(config *Config, log logger.Logger) *Handler {
	if config == nil {
		config = DefaultConfig()
	}
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config: config,
		errors: errors.NewErrorHandler(log),
		logger: log,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) error {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		err = errors.NewValidationFailedError(fmt.Sprintf("parse input: %v", err))
		h.errors.HandleJobError(context.Background(), client, job, err)
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	output, err := h.Execute(ctx, &input)
	if err != nil {
		h.errors.HandleJobError(context.Background(), client, job, err)
		return err
	}

	cmd, err := client.NewCompleteJobCommand().JobKey(job.Key).VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{"error": err.Error()})
		return err
	}
	if _, err := cmd.Send(context.Background()); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{"error": err.Error()})
		return err
	}
	return nil
}

// Execute {{ .Description }}
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if input == nil {
		return nil, errors.NewValidationFailedError("input is required")
	}
{{- range .Required }}
	if input.{{ .Name }} == "" {
		return nil, errors.NewValidationFailedError("{{ .JSONKey }} is required")
	}
{{- end }}

	return nil, errors.NewInternalError(TaskType+" is not implemented", nil)
}
`

const configTemplate = `package {{ .PackageName }}

import (
	"fmt"
	"time"
)

type Config struct {
	Enabled       bool          ` + "`mapstructure:\"enabled\"`" + `
	MaxJobsActive int           ` + "`mapstructure:\"max_jobs_active\"`" + `
	Timeout       time.Duration ` + "`mapstructure:\"timeout\"`" + `
}

func DefaultConfig() *Config {
	return &Config{
		Enabled:       true,
		MaxJobsActive: {{ .MaxJobsActive }},
		Timeout:       {{ .TimeoutExpr }},
	}
}

func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.MaxJobsActive <= 0 {
		return fmt.Errorf("max_jobs_active must be positive")
	}
	return nil
}
`

const modelsTemplate = `package {{ .PackageName }}

type Input struct {
{{- range .InputFields }}
	{{ .Name }} {{ .GoType }} ` + "`json:\"{{ .JSONKey }}\"`" + `
{{- end }}
}

type Output struct {
{{- range .OutputFields }}
	{{ .Name }} {{ .GoType }} ` + "`json:\"{{ .JSONKey }}\"`" + `
{{- end }}
}
`

const testTemplate = `package {{ .PackageName }}

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docgen-workers/internal/common/errors"
	"docgen-workers/internal/common/logger"
)

func TestConfig_Validate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())
	assert.Error(t, (&Config{MaxJobsActive: 1}).Validate())
}

func TestExecute_RequiresInput(t *testing.T) {
	h := NewHandler(nil, logger.NewTestLogger(t))

	_, err := h.Execute(context.Background(), nil)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeValidationFailed, errors.CodeOf(err))
}
`

// durationExpr renders d as a Go expression such as "2 * time.Minute".
func durationExpr(d time.Duration) string {
	switch {
	case d%time.Hour == 0:
		return fmt.Sprintf("%d * time.Hour", d/time.Hour)
	case d%time.Minute == 0:
		return fmt.Sprintf("%d * time.Minute", d/time.Minute)
	case d%time.Second == 0:
		return fmt.Sprintf("%d * time.Second", d/time.Second)
	default:
		return fmt.Sprintf("%d * time.Millisecond", d/time.Millisecond)
	}
}

// renderWorker renders every scaffold file for data, gofmt'ed.
func renderWorker(data WorkerData) (map[string][]byte, error) {
	templates := map[string]string{
		"handler.go":      handlerTemplate,
		"config.go":       configTemplate,
		"models.go":       modelsTemplate,
		"handler_test.go": testTemplate,
	}

	files := make(map[string][]byte, len(templates))
	for filename, tmplStr := range templates {
		tmpl, err := template.New(filename).Parse(tmplStr)
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", filename, err)
		}
		var buf bytes.Buffer
		if err := tmpl.Execute(&buf, data); err != nil {
			return nil, fmt.Errorf("execute template %s: %w", filename, err)
		}
		src, err := format.Source(buf.Bytes())
		if err != nil {
			return nil, fmt.Errorf("format %s: %w", filename, err)
		}
		files[filename] = src
	}
	return files, nil
}

func workerData(a *registry.Activity) (WorkerData, error) {
	timeout := 30 * time.Second
	if a.Timeout != "" {
		d, err := time.ParseDuration(a.Timeout)
		if err != nil {
			return WorkerData{}, fmt.Errorf("activity %s timeout: %w", a.ID, err)
		}
		timeout = d
	}
	input := schemaFields(a.InputSchema)
	description := strings.TrimSuffix(a.Description, ".")
	if description == "" {
		description = "runs the " + a.DisplayName + " activity"
	}
	return WorkerData{
		Name:          a.DisplayName,
		PackageName:   strings.ReplaceAll(a.ID, "-", ""),
		TaskType:      a.TaskType,
		Description:   strings.ToLower(description[:1]) + description[1:] + ".",
		TimeoutExpr:   durationExpr(timeout),
		InputFields:   input,
		OutputFields:  schemaFields(a.OutputSchema),
		Required:      requiredStrings(a.InputSchema, input),
		MaxJobsActive: 10,
	}, nil
}

func main() {
	activity := flag.String("activity", "", "Activity ID from registry (e.g., merge-documents)")
	outputDir := flag.String("output", "./internal/workers/", "Output directory for the generated worker")
	registryPath := flag.String("registry", "configs/activity-registry.json", "Path to the activity registry JSON file")
	force := flag.Bool("force", false, "Overwrite existing files")
	flag.Parse()

	if *activity == "" {
		fmt.Println("Usage: worker-generator --activity <id> --output <dir> [--registry <path>]")
		fmt.Println("\nExample:")
		fmt.Println("  go run cmd/tools/worker-generator/main.go --activity merge-documents")
		os.Exit(1)
	}

	reg, err := registry.LoadRegistry(*registryPath)
	if err != nil {
		fmt.Printf("Error loading registry from %s: %v\n", *registryPath, err)
		os.Exit(1)
	}

	dir, err := generate(reg, *activity, *outputDir, *force)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Worker scaffold generated at: %s\n", dir)
	fmt.Printf("\nNext steps:\n")
	fmt.Printf("  1. Implement Execute in handler.go\n")
	fmt.Printf("  2. Register the handler in cmd/worker-manager/main.go\n")
	fmt.Printf("  3. Add the activity to pkg/registry/catalog.go\n")
	fmt.Printf("  4. Add a workers entry to configs/config.yaml\n")
}

// generate writes the scaffold for activity id under outputDir and
// returns the worker directory.
func generate(reg *registry.ActivityRegistry, id, outputDir string, force bool) (string, error) {
	var found *registry.Activity
	for i := range reg.Activities {
		if reg.Activities[i].ID == id {
			found = &reg.Activities[i]
			break
		}
	}
	if found == nil {
		return "", fmt.Errorf("activity %q not found in registry", id)
	}

	data, err := workerData(found)
	if err != nil {
		return "", err
	}
	files, err := renderWorker(data)
	if err != nil {
		return "", err
	}

	workerDir := filepath.Join(outputDir, mapCategoryToDirectory(found.Category), found.ID)
	if err := os.MkdirAll(workerDir, 0o755); err != nil {
		return "", fmt.Errorf("create directory: %w", err)
	}

	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		path := filepath.Join(workerDir, name)
		if _, err := os.Stat(path); err == nil && !force {
			return "", fmt.Errorf("%s already exists, use --force to overwrite", path)
		}
		if err := os.WriteFile(path, files[name], 0o644); err != nil {
			return "", fmt.Errorf("write %s: %w", path, err)
		}
	}
	return workerDir, nil
}

// mapCategoryToDirectory maps registry categories to directory names
func mapCategoryToDirectory(category string) string {
	switch category {
	case registry.CategoryDocument, "documents", "template":
		return "document"
	case registry.CategoryStorage, "files", "filesystem":
		return "storage"
	default:
		return strings.ToLower(category)
	}
}
