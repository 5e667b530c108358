package enum

type ComponentType string

const (
	ComponentTypeCatalog        ComponentType = "catalog"
	ComponentTypeImplementation ComponentType = "implementation"
	ComponentTypeRecurring      ComponentType = "recurring"
)

func (t ComponentType) IsValid() bool {
	switch t {
	case ComponentTypeCatalog, ComponentTypeImplementation, ComponentTypeRecurring:
		return true
	}
	return false
}
