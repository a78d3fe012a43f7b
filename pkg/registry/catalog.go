// pkg/registry/catalog.go
package registry

const (
	CategoryDocument = "document"
	CategoryStorage  = "storage"

	StatusImplemented = "implemented"
)

var documentTypes = []interface{}{"docx", "pptx", "pdf"}

func object(required []string, properties map[string]interface{}) map[string]interface{} {
	schema := map[string]interface{}{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		list := make([]interface{}, len(required))
		for i, r := range required {
			list[i] = r
		}
		schema["required"] = list
	}
	return schema
}

func str() map[string]interface{} {
	return map[string]interface{}{"type": "string"}
}

func nonEmpty() map[string]interface{} {
	return map[string]interface{}{"type": "string", "minLength": 1}
}

func typed(t string) map[string]interface{} {
	return map[string]interface{}{"type": t}
}

func documentType() map[string]interface{} {
	return map[string]interface{}{"type": "string", "enum": documentTypes}
}

// Catalog describes every task type the worker manager registers.
func Catalog() *ActivityRegistry {
	templateRef := object([]string{"templateName", "documentType"}, map[string]interface{}{
		"templateName": nonEmpty(),
		"documentType": documentType(),
	})

	return &ActivityRegistry{
		Version: "1.0.0",
		Activities: []Activity{
			{
				ID:                   "generate-document",
				DisplayName:          "Generate Document",
				Description:          "Fill a docx, pptx or pdf template with job data and store the result",
				Category:             CategoryDocument,
				Version:              "1.0.0",
				TaskType:             "document-generate",
				ImplementationStatus: StatusImplemented,
				InputSchema: object([]string{"templateName", "documentType"}, map[string]interface{}{
					"templateName": nonEmpty(),
					"documentType": documentType(),
					"data":         typed("object"),
					"storagePath":  str(),
					"validate":     typed("boolean"),
				}),
				OutputSchema: object([]string{"message", "size", "recordId"}, map[string]interface{}{
					"message":     str(),
					"fileUrl":     str(),
					"storagePath": str(),
					"filePath":    str(),
					"size":        typed("integer"),
					"recordId":    str(),
				}),
				ErrorCodes: []string{"DOCUMENT_NOT_FOUND", "DATA_VALIDATION_FAILED", "STORAGE_AUTH_FAILURE", "STORAGE_API_FAILURE"},
				Timeout:    "2m",
				Retries:    3,
				Tags:       []string{"document", "template"},
			},
			{
				ID:                   "list-templates",
				DisplayName:          "List Templates",
				Description:          "List the templates available for a document type",
				Category:             CategoryDocument,
				Version:              "1.0.0",
				TaskType:             "document-list-templates",
				ImplementationStatus: StatusImplemented,
				InputSchema: object([]string{"documentType"}, map[string]interface{}{
					"documentType": documentType(),
				}),
				OutputSchema: object([]string{"documentType", "templates", "count"}, map[string]interface{}{
					"documentType": str(),
					"templates":    typed("array"),
					"count":        typed("integer"),
				}),
				ErrorCodes: []string{"DATA_VALIDATION_FAILED"},
				Timeout:    "10s",
				Retries:    0,
				Tags:       []string{"document", "template"},
			},
			{
				ID:                   "template-schema",
				DisplayName:          "Template Schema",
				Description:          "Return the data schema of a template, from its sidecar or inferred from placeholders",
				Category:             CategoryDocument,
				Version:              "1.0.0",
				TaskType:             "document-template-schema",
				ImplementationStatus: StatusImplemented,
				InputSchema:          templateRef,
				OutputSchema: object([]string{"templateName", "documentType", "schema", "cached"}, map[string]interface{}{
					"templateName": str(),
					"documentType": str(),
					"schema":       typed("object"),
					"cached":       typed("boolean"),
				}),
				ErrorCodes: []string{"DOCUMENT_NOT_FOUND", "DATA_VALIDATION_FAILED"},
				Timeout:    "10s",
				Retries:    0,
				Tags:       []string{"document", "schema", "cache"},
			},
			{
				ID:                   "template-info",
				DisplayName:          "Template Info",
				Description:          "Return template metadata and placeholders",
				Category:             CategoryDocument,
				Version:              "1.0.0",
				TaskType:             "document-template-info",
				ImplementationStatus: StatusImplemented,
				InputSchema:          templateRef,
				OutputSchema: object([]string{"templateName", "documentType", "info", "cached"}, map[string]interface{}{
					"templateName": str(),
					"documentType": str(),
					"info":         typed("object"),
					"cached":       typed("boolean"),
				}),
				ErrorCodes: []string{"DOCUMENT_NOT_FOUND", "DATA_VALIDATION_FAILED"},
				Timeout:    "10s",
				Retries:    0,
				Tags:       []string{"document", "cache"},
			},
			{
				ID:                   "list-files",
				DisplayName:          "List Files",
				Description:          "List the entries of a storage folder",
				Category:             CategoryStorage,
				Version:              "1.0.0",
				TaskType:             "storage-list-files",
				ImplementationStatus: StatusImplemented,
				InputSchema: object(nil, map[string]interface{}{
					"folder": str(),
				}),
				OutputSchema: object([]string{"provider", "folder", "files", "count"}, map[string]interface{}{
					"provider": str(),
					"folder":   str(),
					"files":    typed("array"),
					"count":    typed("integer"),
				}),
				ErrorCodes: []string{"DOCUMENT_NOT_FOUND", "STORAGE_AUTH_FAILURE", "STORAGE_API_FAILURE"},
				Timeout:    "30s",
				Retries:    3,
				Tags:       []string{"storage"},
			},
			{
				ID:                   "delete-file",
				DisplayName:          "Delete File",
				Description:          "Delete a file or folder from storage",
				Category:             CategoryStorage,
				Version:              "1.0.0",
				TaskType:             "storage-delete-file",
				ImplementationStatus: StatusImplemented,
				InputSchema: object([]string{"path"}, map[string]interface{}{
					"path": nonEmpty(),
				}),
				OutputSchema: object([]string{"path", "deleted"}, map[string]interface{}{
					"path":    str(),
					"deleted": typed("boolean"),
				}),
				ErrorCodes: []string{"DOCUMENT_NOT_FOUND", "DATA_VALIDATION_FAILED", "STORAGE_AUTH_FAILURE", "STORAGE_API_FAILURE"},
				Timeout:    "30s",
				Retries:    3,
				Tags:       []string{"storage"},
			},
			{
				ID:                   "create-folder",
				DisplayName:          "Create Folder",
				Description:          "Create a storage folder path, reusing folders that already exist",
				Category:             CategoryStorage,
				Version:              "1.0.0",
				TaskType:             "storage-create-folder",
				ImplementationStatus: StatusImplemented,
				InputSchema: object([]string{"path"}, map[string]interface{}{
					"path": nonEmpty(),
				}),
				OutputSchema: object([]string{"path", "folderId", "exists"}, map[string]interface{}{
					"path":     str(),
					"folderId": str(),
					"exists":   typed("boolean"),
				}),
				ErrorCodes: []string{"DATA_VALIDATION_FAILED", "STORAGE_AUTH_FAILURE", "STORAGE_API_FAILURE"},
				Timeout:    "30s",
				Retries:    3,
				Tags:       []string{"storage"},
			},
		},
	}
}
