package world

import "testing"

func TestStoreLifecycle(t *testing.T) {
	s := NewStore()
	e := s.CreateEntity()

	if err := s.AddComponent(e, PositionData{X: 1, Y: 2}); err != nil {
		t.Fatalf("AddComponent position: %v", err)
	}
	if err := s.AddComponent(e, HealthData{Current: 3, Max: 3}); err != nil {
		t.Fatalf("AddComponent health: %v", err)
	}

	if !s.SetPosition(e, PositionData{X: 10, Y: 20}) {
		t.Fatal("SetPosition = false")
	}
	pos, ok := s.Position(e)
	if !ok || pos != (PositionData{X: 10, Y: 20}) {
		t.Errorf("Position = %+v, %v", pos, ok)
	}

	s.SetHealth(e, 1)
	hp, _ := s.Health(e)
	if hp.Current != 1 || hp.Max != 3 {
		t.Errorf("Health = %+v", hp)
	}

	s.DestroyEntity(e)
	if s.Valid(e) {
		t.Error("entity still valid after destroy")
	}
	if s.SetPosition(e, PositionData{}) {
		t.Error("SetPosition succeeded on destroyed entity")
	}
	s.DestroyEntity(e)
}

func TestStoreMissingComponent(t *testing.T) {
	s := NewStore()
	e := s.CreateEntity()
	if _, ok := s.Health(e); ok {
		t.Error("Health reported on entity without one")
	}
	if s.SetHealth(e, 5) {
		t.Error("SetHealth succeeded on entity without Health")
	}
	if err := s.AddComponent(e, "not a component"); err == nil {
		t.Error("expected error for unsupported component")
	}
}

func TestStoreTexturesAndEach(t *testing.T) {
	s := NewStore()
	s.RegisterTexture("enemy", Texture{Width: 32, Height: 16})

	tex := s.Texture("enemy")
	if tex.Name != "enemy" || tex.Width != 32 {
		t.Errorf("Texture = %+v", tex)
	}
	if missing := s.Texture("nope"); missing.Name != "nope" || missing.Width != 0 {
		t.Errorf("missing texture = %+v", missing)
	}

	a := s.CreateEntity()
	s.AddComponent(a, PositionData{X: 1})
	s.AddComponent(a, SpriteData{Texture: tex, Width: tex.Width, Height: tex.Height})
	b := s.CreateEntity()
	s.AddComponent(b, PositionData{X: 2})

	seen := 0
	s.Each(func(e Entity, pos PositionData, sprite SpriteData) {
		seen++
		if e != a || sprite.Texture.Name != "enemy" {
			t.Errorf("visited %v with %+v", e, sprite)
		}
	})
	if seen != 1 {
		t.Errorf("visited %d drawable entities, want 1", seen)
	}
}

func TestStoreCreateWithoutComponents(t *testing.T) {
	s := NewStore()
	a := s.CreateEntity()
	b := s.CreateEntity()
	if a == b {
		t.Fatal("CreateEntity returned the same entity twice")
	}
	if !s.Valid(a) || !s.Valid(b) {
		t.Fatal("new entities not valid")
	}
	if _, ok := s.Position(a); ok {
		t.Error("bare entity reports a Position")
	}
	s.Each(func(e Entity, _ PositionData, _ SpriteData) {
		t.Errorf("bare entity %v visited as drawable", e)
	})

	if err := s.AddComponent(a, PositionData{X: 4, Y: 5}); err != nil {
		t.Fatalf("AddComponent: %v", err)
	}
	if pos, ok := s.Position(a); !ok || pos.X != 4 {
		t.Errorf("Position = %+v, %v", pos, ok)
	}

	s.DestroyEntity(a)
	if s.Valid(a) || !s.Valid(b) {
		t.Errorf("after destroy: a valid=%v b valid=%v", s.Valid(a), s.Valid(b))
	}
}
