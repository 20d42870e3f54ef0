package tracer

import (
	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/tracer/components"
)

// store is the particle arena. Entities are stable handles; removal frees
// the slot without moving other particles' handles.
type store struct {
	world  *ecs.World
	mapper *ecs.Map3[components.Position, components.Tracer, components.Spin]
	filter *ecs.Filter3[components.Position, components.Tracer, components.Spin]
	count  int
}

func newStore() *store {
	world := ecs.NewWorld()
	return &store{
		world:  world,
		mapper: ecs.NewMap3[components.Position, components.Tracer, components.Spin](world),
		filter: ecs.NewFilter3[components.Position, components.Tracer, components.Spin](world),
	}
}

func (s *store) add(pos *components.Position, tr *components.Tracer, sp *components.Spin) ecs.Entity {
	s.count++
	return s.mapper.NewEntity(pos, tr, sp)
}

// get returns the components of e. Pointers are valid until the next add
// or remove.
func (s *store) get(e ecs.Entity) (*components.Position, *components.Tracer, *components.Spin) {
	return s.mapper.Get(e)
}

func (s *store) remove(e ecs.Entity) {
	if !s.world.Alive(e) {
		return
	}
	s.world.RemoveEntity(e)
	s.count--
}

// entities lists every live particle in query order.
func (s *store) entities() []ecs.Entity {
	out := make([]ecs.Entity, 0, s.count)
	query := s.filter.Query()
	for query.Next() {
		out = append(out, query.Entity())
	}
	return out
}

func (s *store) len() int { return s.count }

// reset removes every particle.
func (s *store) reset() {
	for _, e := range s.entities() {
		s.remove(e)
	}
}
