// Package manifest parses and validates plugin manifests (host-plugin.json)
// and checks host/plugin semantic-version compatibility.
package manifest

// ExtensionPoint is one of the five categories a plugin may contribute to.
type ExtensionPoint string

const (
	Commands ExtensionPoint = "commands"
	Agents   ExtensionPoint = "agents"
	Hooks    ExtensionPoint = "hooks"
	Services ExtensionPoint = "services"
	Templates ExtensionPoint = "templates"
)

func validExtensionPoint(e ExtensionPoint) bool {
	switch e {
	case Commands, Agents, Hooks, Services, Templates:
		return true
	default:
		return false
	}
}

// FieldType is the closed set of config-field type tags a plugin's
// configSchema may declare.
type FieldType string

const (
	TypeString  FieldType = "string"
	TypeNumber  FieldType = "number"
	TypeBoolean FieldType = "boolean"
	TypeArray   FieldType = "array"
	TypeObject  FieldType = "object"
)

func validFieldType(t FieldType) bool {
	switch t {
	case TypeString, TypeNumber, TypeBoolean, TypeArray, TypeObject:
		return true
	default:
		return false
	}
}

// ConfigField describes one entry of a plugin's configSchema.
type ConfigField struct {
	Type        FieldType `json:"type"`
	Description string    `json:"description,omitempty"`
	Default     any       `json:"default,omitempty"`
	Required    bool      `json:"required,omitempty"`
}

// Dependency is a {name, version-range} pair naming another plugin this
// plugin depends on.
type Dependency struct {
	Name         string `json:"name"`
	VersionRange string `json:"version"`
}

// Manifest is the declarative metadata a plugin ships at its root as
// host-plugin.json. It is immutable once returned by Validate*.
type Manifest struct {
	Name             string                 `json:"name"`
	Version          string                 `json:"version"`
	Description      string                 `json:"description"`
	Author           string                 `json:"author"`
	EntryPoint       string                 `json:"entryPoint"`
	HostVersionRange string                 `json:"hostVersionRange"`
	ExtensionPoints  []ExtensionPoint       `json:"extensionPoints"`
	Dependencies     []Dependency           `json:"dependencies,omitempty"`
	ConfigSchema     map[string]ConfigField `json:"configSchema,omitempty"`
}

// Declares reports whether the manifest asserts the given extension point.
func (m *Manifest) Declares(e ExtensionPoint) bool {
	for _, p := range m.ExtensionPoints {
		if p == e {
			return true
		}
	}
	return false
}
