// Package scene is the caller-owned graph that parsed assets are appended to.
// Asset packages never own a Scene; they only add entities to one.
package scene

import (
	"fmt"

	"github.com/google/uuid"
)

// Kind is the type of an entity.
type Kind uint8

const (
	KindModel Kind = iota
	KindMeshGroup
	KindMesh
	KindMaterial
	KindTexture
	KindNode
	KindInstance
)

func (k Kind) String() string {
	switch k {
	case KindModel:
		return "model"
	case KindMeshGroup:
		return "mesh-group"
	case KindMesh:
		return "mesh"
	case KindMaterial:
		return "material"
	case KindTexture:
		return "texture"
	case KindNode:
		return "node"
	case KindInstance:
		return "instance"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// Entity is one scene element. Parent is uuid.Nil for top-level entities.
// Data holds the canonical asset value the entity was built from.
type Entity struct {
	ID     uuid.UUID `json:"id"`
	Parent uuid.UUID `json:"parent"`
	Kind   Kind      `json:"kind"`
	Name   string    `json:"name"`
	Data   any       `json:"-"`
}

// Scene is an ordered set of entities. It is not safe for concurrent use.
type Scene struct {
	entities []Entity
	index    map[uuid.UUID]int
}

// New returns an empty scene.
func New() *Scene {
	return &Scene{index: make(map[uuid.UUID]int)}
}

// Add appends an entity and returns its new ID. A non-nil parent must already
// be in the scene.
func (s *Scene) Add(kind Kind, name string, parent uuid.UUID, data any) (uuid.UUID, error) {
	if parent != uuid.Nil {
		if _, ok := s.index[parent]; !ok {
			return uuid.Nil, fmt.Errorf("scene: unknown parent %s", parent)
		}
	}
	id := uuid.New()
	s.index[id] = len(s.entities)
	s.entities = append(s.entities, Entity{ID: id, Parent: parent, Kind: kind, Name: name, Data: data})
	return id, nil
}

// Get returns the entity with id.
func (s *Scene) Get(id uuid.UUID) (Entity, bool) {
	i, ok := s.index[id]
	if !ok {
		return Entity{}, false
	}
	return s.entities[i], true
}

// Len returns the number of entities.
func (s *Scene) Len() int { return len(s.entities) }

// Entities returns every entity in insertion order.
func (s *Scene) Entities() []Entity {
	out := make([]Entity, len(s.entities))
	copy(out, s.entities)
	return out
}

// Children returns the direct children of id in insertion order.
func (s *Scene) Children(id uuid.UUID) []Entity {
	var out []Entity
	for _, e := range s.entities {
		if e.Parent == id {
			out = append(out, e)
		}
	}
	return out
}

// Find returns the first entity of kind named name.
func (s *Scene) Find(kind Kind, name string) (Entity, bool) {
	for _, e := range s.entities {
		if e.Kind == kind && e.Name == name {
			return e, true
		}
	}
	return Entity{}, false
}
