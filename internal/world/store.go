package world

import (
	"fmt"
	"sync"

	"github.com/yohamta/donburi"
	"github.com/yohamta/donburi/filter"
)

type Entity = donburi.Entity

var drawable = donburi.NewQuery(filter.Contains(Position, Sprite))

// Store is a donburi world behind a mutex, so the network goroutine can
// mirror remote entities while the render loop reads them.
type Store struct {
	mu       sync.Mutex
	world    donburi.World
	textures map[string]Texture
}

func NewStore() *Store {
	return &Store{
		world:    donburi.NewWorld(),
		textures: make(map[string]Texture),
	}
}

func (s *Store) CreateEntity() Entity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.world.Create(Stored)
}

// DestroyEntity removes e; unknown entities are ignored.
func (s *Store) DestroyEntity(e Entity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.world.Valid(e) {
		s.world.Remove(e)
	}
}

func (s *Store) Valid(e Entity) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.world.Valid(e)
}

// AddComponent attaches value (one of the *Data types) to e, replacing any
// existing component of the same type.
func (s *Store) AddComponent(e Entity, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.world.Valid(e) {
		return fmt.Errorf("add component to invalid entity %v", e)
	}
	entry := s.world.Entry(e)
	switch v := value.(type) {
	case PositionData:
		set(entry, Position, v)
	case VelocityData:
		set(entry, Velocity, v)
	case HealthData:
		set(entry, Health, v)
	case SpriteData:
		set(entry, Sprite, v)
	default:
		return fmt.Errorf("unsupported component %T", value)
	}
	return nil
}

func set[T any](entry *donburi.Entry, c *donburi.ComponentType[T], v T) {
	if !entry.HasComponent(c) {
		entry.AddComponent(c)
	}
	c.Set(entry, &v)
}

func (s *Store) Position(e Entity) (PositionData, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pos, ok := lookup(s.world, e, Position)
	if !ok {
		return PositionData{}, false
	}
	return *pos, true
}

// SetPosition overwrites the position of e in place. It reports false when
// e has no Position.
func (s *Store) SetPosition(e Entity, p PositionData) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	pos, ok := lookup(s.world, e, Position)
	if !ok {
		return false
	}
	*pos = p
	return true
}

func (s *Store) Health(e Entity) (HealthData, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	hp, ok := lookup(s.world, e, Health)
	if !ok {
		return HealthData{}, false
	}
	return *hp, true
}

func (s *Store) SetHealth(e Entity, current int32) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	hp, ok := lookup(s.world, e, Health)
	if !ok {
		return false
	}
	hp.Current = current
	return true
}

func lookup[T any](w donburi.World, e Entity, c *donburi.ComponentType[T]) (*T, bool) {
	if !w.Valid(e) {
		return nil, false
	}
	entry := w.Entry(e)
	if !entry.HasComponent(c) {
		return nil, false
	}
	return c.Get(entry), true
}

// RegisterTexture makes a texture available under name.
func (s *Store) RegisterTexture(name string, t Texture) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t.Name = name
	s.textures[name] = t
}

// Texture returns the texture registered under name, or an empty descriptor
// carrying only the name.
func (s *Store) Texture(name string) Texture {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.textures[name]; ok {
		return t
	}
	return Texture{Name: name}
}

// Each visits every entity that has both a Position and a Sprite.
func (s *Store) Each(fn func(e Entity, pos PositionData, sprite SpriteData)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	drawable.Each(s.world, func(entry *donburi.Entry) {
		fn(entry.Entity(), *Position.Get(entry), *Sprite.Get(entry))
	})
}
