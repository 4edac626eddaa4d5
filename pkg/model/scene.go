package model

import (
	"github.com/google/uuid"

	"github.com/samcharles93/mirage/pkg/scene"
)

// AddToScene appends m to s under a model entity named name: one entity per
// mesh group, mesh and skeleton node, plus one material and texture entity per
// distinct name. It returns the model entity's ID.
func AddToScene(s *scene.Scene, m *Model, name string) (uuid.UUID, error) {
	root, err := s.Add(scene.KindModel, name, uuid.Nil, m)
	if err != nil {
		return uuid.Nil, err
	}
	seen := make(map[string]bool)
	shared := func(kind scene.Kind, name string) error {
		if name == "" || seen[kind.String()+"/"+name] {
			return nil
		}
		seen[kind.String()+"/"+name] = true
		_, err := s.Add(kind, name, root, nil)
		return err
	}

	for gi := range m.Groups {
		g := &m.Groups[gi]
		gid, err := s.Add(scene.KindMeshGroup, g.Name, root, g)
		if err != nil {
			return uuid.Nil, err
		}
		for slot, meshes := range g.Slots() {
			for mi := range *meshes {
				mesh := &(*meshes)[mi]
				if _, err := s.Add(scene.KindMesh, SlotNames[slot], gid, mesh); err != nil {
					return uuid.Nil, err
				}
				if err := shared(scene.KindMaterial, mesh.Material); err != nil {
					return uuid.Nil, err
				}
				for _, tu := range mesh.TextureUnits {
					if err := shared(scene.KindTexture, tu.Name); err != nil {
						return uuid.Nil, err
					}
				}
			}
		}
	}

	ids := make([]uuid.UUID, len(m.Nodes))
	for i := range m.Nodes {
		n := &m.Nodes[i]
		parent := root
		if n.Parent >= 0 && int(n.Parent) < i {
			parent = ids[n.Parent]
		}
		if ids[i], err = s.Add(scene.KindNode, n.Name, parent, n); err != nil {
			return uuid.Nil, err
		}
	}
	return root, nil
}
