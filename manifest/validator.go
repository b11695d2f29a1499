package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Masterminds/semver/v3"
)

// ErrorCode is the closed set of field-validation failure kinds.
type ErrorCode string

const (
	MissingField ErrorCode = "MissingField"
	InvalidType  ErrorCode = "InvalidType"
	InvalidValue ErrorCode = "InvalidValue"
	SchemaError  ErrorCode = "SchemaError"
)

// FieldError is a single field-level validation failure.
type FieldError struct {
	Field   string    `json:"field"`
	Message string    `json:"message"`
	Code    ErrorCode `json:"code"`
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s (%s)", e.Field, e.Message, e.Code)
}

// ValidationResult is the outcome of validating a manifest.
type ValidationResult struct {
	Valid    bool
	Manifest *Manifest
	Errors   []FieldError
}

const manifestFileName = "host-plugin.json"

// ValidatePath reads a manifest from disk. path may point directly at the
// manifest file or at a plugin's root directory, in which case
// host-plugin.json is read from it.
func ValidatePath(path string) ValidationResult {
	target := path
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		target = filepath.Join(path, manifestFileName)
	}

	raw, err := os.ReadFile(target)
	if err != nil {
		return schemaErrorResult(fmt.Sprintf("could not read manifest: %v", err))
	}
	return ValidateStruct(raw)
}

// ValidateStruct validates an already-read manifest byte blob.
func ValidateStruct(raw []byte) ValidationResult {
	var root any
	if err := json.Unmarshal(raw, &root); err != nil {
		return schemaErrorResult(fmt.Sprintf("invalid JSON: %v", err))
	}

	obj, ok := root.(map[string]any)
	if !ok {
		return schemaErrorResult("manifest must be a JSON object")
	}

	var errs []FieldError
	m := &Manifest{}

	m.Name, errs = requireString(obj, "name", errs)
	m.Version, errs = requireString(obj, "version", errs)
	m.Description = optionalString(obj, "description")
	m.Author = optionalString(obj, "author")
	m.EntryPoint, errs = requireString(obj, "entryPoint", errs)
	m.HostVersionRange, errs = requireString(obj, "hostVersionRange", errs)

	if m.Version != "" {
		if _, err := semver.NewVersion(m.Version); err != nil {
			errs = append(errs, FieldError{Field: "version", Message: "must be an exact semantic version", Code: InvalidValue})
		}
	}
	if m.HostVersionRange != "" {
		if _, err := semver.NewConstraint(m.HostVersionRange); err != nil {
			errs = append(errs, FieldError{Field: "hostVersionRange", Message: "must be a valid semver range", Code: InvalidValue})
		}
	}

	m.ExtensionPoints, errs = parseExtensionPoints(obj, errs)
	m.Dependencies, errs = parseDependencies(obj, errs)
	m.ConfigSchema, errs = parseConfigSchema(obj, errs)

	if len(errs) > 0 {
		return ValidationResult{Valid: false, Errors: errs}
	}
	return ValidationResult{Valid: true, Manifest: m}
}

func schemaErrorResult(msg string) ValidationResult {
	return ValidationResult{
		Valid: false,
		Errors: []FieldError{{
			Field:   "",
			Message: msg,
			Code:    SchemaError,
		}},
	}
}

func requireString(obj map[string]any, field string, errs []FieldError) (string, []FieldError) {
	v, present := obj[field]
	if !present {
		return "", append(errs, FieldError{Field: field, Message: "field is required", Code: MissingField})
	}
	s, ok := v.(string)
	if !ok {
		return "", append(errs, FieldError{Field: field, Message: "field must be a string", Code: InvalidType})
	}
	if s == "" {
		return "", append(errs, FieldError{Field: field, Message: "field must not be empty", Code: InvalidValue})
	}
	return s, errs
}

func optionalString(obj map[string]any, field string) string {
	if v, ok := obj[field]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func parseExtensionPoints(obj map[string]any, errs []FieldError) ([]ExtensionPoint, []FieldError) {
	v, present := obj["extensionPoints"]
	if !present {
		return nil, append(errs, FieldError{Field: "extensionPoints", Message: "field is required", Code: MissingField})
	}
	raw, ok := v.([]any)
	if !ok {
		return nil, append(errs, FieldError{Field: "extensionPoints", Message: "field must be an array", Code: InvalidType})
	}
	points := make([]ExtensionPoint, 0, len(raw))
	for i, item := range raw {
		s, ok := item.(string)
		if !ok {
			errs = append(errs, FieldError{Field: fmt.Sprintf("extensionPoints[%d]", i), Message: "must be a string", Code: InvalidType})
			continue
		}
		ep := ExtensionPoint(s)
		if !validExtensionPoint(ep) {
			errs = append(errs, FieldError{Field: fmt.Sprintf("extensionPoints[%d]", i), Message: fmt.Sprintf("unknown extension point %q", s), Code: InvalidValue})
			continue
		}
		points = append(points, ep)
	}
	return points, errs
}

func parseDependencies(obj map[string]any, errs []FieldError) ([]Dependency, []FieldError) {
	v, present := obj["dependencies"]
	if !present {
		return nil, errs
	}
	raw, ok := v.([]any)
	if !ok {
		return nil, append(errs, FieldError{Field: "dependencies", Message: "field must be an array", Code: InvalidType})
	}
	deps := make([]Dependency, 0, len(raw))
	for i, item := range raw {
		entry, ok := item.(map[string]any)
		if !ok {
			errs = append(errs, FieldError{Field: fmt.Sprintf("dependencies[%d]", i), Message: "must be an object", Code: InvalidType})
			continue
		}
		name, nameErrs := requireString(entry, "name", nil)
		for _, e := range nameErrs {
			e.Field = fmt.Sprintf("dependencies[%d].%s", i, e.Field)
			errs = append(errs, e)
		}
		versionRange, verErrs := requireString(entry, "version", nil)
		for _, e := range verErrs {
			e.Field = fmt.Sprintf("dependencies[%d].%s", i, e.Field)
			errs = append(errs, e)
		}
		if versionRange != "" {
			if _, err := semver.NewConstraint(versionRange); err != nil {
				errs = append(errs, FieldError{Field: fmt.Sprintf("dependencies[%d].version", i), Message: "must be a valid semver range", Code: InvalidValue})
				continue
			}
		}
		if name != "" && versionRange != "" {
			deps = append(deps, Dependency{Name: name, VersionRange: versionRange})
		}
	}
	return deps, errs
}

func parseConfigSchema(obj map[string]any, errs []FieldError) (map[string]ConfigField, []FieldError) {
	v, present := obj["configSchema"]
	if !present {
		return nil, errs
	}
	raw, ok := v.(map[string]any)
	if !ok {
		return nil, append(errs, FieldError{Field: "configSchema", Message: "field must be an object", Code: InvalidType})
	}
	schema := make(map[string]ConfigField, len(raw))
	for key, item := range raw {
		entry, ok := item.(map[string]any)
		if !ok {
			errs = append(errs, FieldError{Field: fmt.Sprintf("configSchema.%s", key), Message: "must be an object", Code: InvalidType})
			continue
		}
		typeStr, typeErrs := requireString(entry, "type", nil)
		for _, e := range typeErrs {
			e.Field = fmt.Sprintf("configSchema.%s.%s", key, e.Field)
			errs = append(errs, e)
		}
		ft := FieldType(typeStr)
		if typeStr != "" && !validFieldType(ft) {
			errs = append(errs, FieldError{Field: fmt.Sprintf("configSchema.%s.type", key), Message: fmt.Sprintf("unknown type %q", typeStr), Code: InvalidValue})
			continue
		}
		if typeStr == "" {
			continue
		}
		field := ConfigField{Type: ft}
		if desc, ok := entry["description"].(string); ok {
			field.Description = desc
		}
		if def, ok := entry["default"]; ok {
			field.Default = def
		}
		if req, ok := entry["required"].(bool); ok {
			field.Required = req
		}
		schema[key] = field
	}
	return schema, errs
}
