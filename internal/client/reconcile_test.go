package client

import (
	"bytes"
	"errors"
	"log"
	"reflect"
	"strings"
	"testing"

	"netarcade/internal/protocol"
	"netarcade/internal/world"
)

func newMirror(t *testing.T, localID int32) (*Mirror, *world.Store, world.Entity) {
	t.Helper()
	store := world.NewStore()
	store.RegisterTexture(TextureEnemy, world.Texture{Width: 32, Height: 32})
	store.RegisterTexture(TextureBullet, world.Texture{Width: 8, Height: 4})

	local := store.CreateEntity()
	store.AddComponent(local, world.PositionData{})
	store.AddComponent(local, world.HealthData{Current: 3, Max: 3})
	return NewMirror(store, localID, local), store, local
}

func enemies(ids ...int32) *protocol.GameStatePayload {
	gs := &protocol.GameStatePayload{}
	for _, id := range ids {
		gs.AddEnemy(protocol.EnemyState{ID: id, X: float32(id), Y: 1, Health: 3})
	}
	return gs
}

func TestReconcileReplacesMissingIDs(t *testing.T) {
	m, store, _ := newMirror(t, 1)

	m.Apply(enemies(5, 7))
	if got := m.IDs(Enemies); !reflect.DeepEqual(got, []int32{5, 7}) {
		t.Fatalf("ids = %v, want [5 7]", got)
	}
	five, _ := m.Entity(Enemies, 5)
	seven, _ := m.Entity(Enemies, 7)

	next := enemies(7, 9)
	next.Enemies[0].X = 70
	m.Apply(next)

	if got := m.IDs(Enemies); !reflect.DeepEqual(got, []int32{7, 9}) {
		t.Fatalf("ids = %v, want [7 9]", got)
	}
	if store.Valid(five) {
		t.Error("entity for id 5 survived")
	}
	if e, _ := m.Entity(Enemies, 7); e != seven {
		t.Error("id 7 was recreated instead of updated")
	}
	if pos, _ := store.Position(seven); pos.X != 70 {
		t.Errorf("id 7 position = %+v, want X=70", pos)
	}
}

func TestReconcileDropsDeadRecords(t *testing.T) {
	m, store, _ := newMirror(t, 1)

	m.Apply(enemies(5))
	five, _ := m.Entity(Enemies, 5)

	dead := enemies(5, 6)
	dead.Enemies[0].Health = 0
	dead.Enemies[1].Health = -1
	m.Apply(dead)

	if ids := m.IDs(Enemies); len(ids) != 0 {
		t.Errorf("ids = %v, want none", ids)
	}
	if store.Valid(five) {
		t.Error("dead enemy still in store")
	}
}

func TestReconcileLocalPlayer(t *testing.T) {
	m, store, local := newMirror(t, 42)

	gs := &protocol.GameStatePayload{}
	gs.AddPlayer(protocol.PlayerState{ID: 42, X: 10, Y: 20, Health: 2})
	gs.AddPlayer(protocol.PlayerState{ID: 43, X: 1, Y: 2, Health: 3})
	m.Apply(gs)

	if got := m.IDs(Players); !reflect.DeepEqual(got, []int32{43}) {
		t.Errorf("remote players = %v, want [43]", got)
	}
	if pos, _ := store.Position(local); pos != (world.PositionData{X: 10, Y: 20}) {
		t.Errorf("local position = %+v", pos)
	}
	if hp, _ := store.Health(local); hp.Current != 2 {
		t.Errorf("local health = %d, want 2", hp.Current)
	}
}

func TestReconcileBulletsIgnoreHealth(t *testing.T) {
	m, store, _ := newMirror(t, 1)

	gs := &protocol.GameStatePayload{}
	gs.AddBullet(protocol.BulletState{ID: 1000, X: 5, Y: 5, VX: 200, OwnerID: 1})
	gs.AddBullet(protocol.BulletState{ID: 1001, X: 6, Y: 6, VX: -200, OwnerID: -3})
	m.Apply(gs)

	if got := m.IDs(Bullets); !reflect.DeepEqual(got, []int32{1000, 1001}) {
		t.Fatalf("bullets = %v", got)
	}

	bullets := 0
	store.Each(func(_ world.Entity, _ world.PositionData, sprite world.SpriteData) {
		if sprite.Texture.Name == TextureBullet {
			bullets++
			if sprite.Width != 8 || sprite.Height != 4 {
				t.Errorf("bullet sprite = %+v", sprite)
			}
		}
	})
	if bullets != 2 {
		t.Errorf("drew %d bullets, want 2", bullets)
	}

	m.Apply(&protocol.GameStatePayload{})
	if ids := m.IDs(Bullets); len(ids) != 0 {
		t.Errorf("bullets after empty snapshot = %v", ids)
	}
}

func TestReconcileIntoEmptyStore(t *testing.T) {
	store := world.NewStore()
	var logs bytes.Buffer
	m := NewMirror(store, 1, store.CreateEntity())
	m.logger = log.New(&logs, "", 0)

	gs := &protocol.GameStatePayload{}
	gs.AddEnemy(protocol.EnemyState{ID: 5, X: 50, Y: 60, Health: 3})
	gs.AddPlayer(protocol.PlayerState{ID: 2, X: 1, Y: 2, Health: 3})
	gs.AddBullet(protocol.BulletState{ID: 1000, X: 7, Y: 8})
	m.Apply(gs)

	for _, c := range []Category{Enemies, Players, Bullets} {
		if ids := m.IDs(c); len(ids) != 1 {
			t.Errorf("category %d: ids = %v, want one", c, ids)
		}
	}
	enemy, ok := m.Entity(Enemies, 5)
	if !ok || !store.Valid(enemy) {
		t.Fatal("enemy 5 not created")
	}
	if pos, _ := store.Position(enemy); pos != (world.PositionData{X: 50, Y: 60}) {
		t.Errorf("enemy position = %+v", pos)
	}

	drawn := 0
	store.Each(func(world.Entity, world.PositionData, world.SpriteData) { drawn++ })
	if drawn != 3 {
		t.Errorf("drew %d entities, want 3", drawn)
	}
	if logs.Len() != 0 {
		t.Errorf("unexpected log output: %q", logs.String())
	}
}

type rejectingStore struct {
	*world.Store
}

func (rejectingStore) AddComponent(world.Entity, any) error {
	return errors.New("store full")
}

func TestReconcileLogsComponentErrors(t *testing.T) {
	store := rejectingStore{world.NewStore()}
	var logs bytes.Buffer
	m := NewMirror(store, 1, store.CreateEntity())
	m.logger = log.New(&logs, "", 0)

	m.Apply(enemies(5))

	if !strings.Contains(logs.String(), "store full") {
		t.Errorf("component error not logged: %q", logs.String())
	}
}
