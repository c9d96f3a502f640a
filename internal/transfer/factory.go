package transfer

import "fmt"

// EngineType selects an Engine implementation
type EngineType string

const (
	EngineDocker   EngineType = "docker"
	EngineRegistry EngineType = "registry"
)

// NewEngine creates the engine of the given type
func NewEngine(typ EngineType, opts Options) (Engine, error) {
	switch typ {
	case EngineDocker:
		return NewDocker(opts)
	case EngineRegistry:
		return NewRegistry(opts), nil
	default:
		return nil, fmt.Errorf("unsupported transfer engine: %s", typ)
	}
}
