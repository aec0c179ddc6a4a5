package client

import (
	"log"
	"sort"
	"sync"

	"netarcade/internal/protocol"
	"netarcade/internal/world"
)

// Texture names the mirror asks the store for.
const (
	TextureEnemy        = "enemy"
	TextureRemotePlayer = "remotePlayer"
	TextureBullet       = "bullet"
	TexturePlayer       = "player"
)

type Category int

const (
	Enemies Category = iota
	Players
	Bullets
)

// Mirror keeps one local entity per remote id for each snapshot category.
// Records missing from a snapshot are destroyed; records with health <= 0
// are destroyed on the spot.
type Mirror struct {
	mu          sync.Mutex
	store       EntityStore
	localID     int32
	localPlayer world.Entity
	tracked     [3]map[int32]world.Entity
	logger      *log.Logger
}

type record struct {
	id        int32
	x, y      float32
	health    int32
	hasHealth bool
}

func NewMirror(store EntityStore, localID int32, localPlayer world.Entity) *Mirror {
	m := &Mirror{store: store, localID: localID, localPlayer: localPlayer, logger: log.Default()}
	for i := range m.tracked {
		m.tracked[i] = make(map[int32]world.Entity)
	}
	return m
}

// Apply reconciles the store against one snapshot.
func (m *Mirror) Apply(gs *protocol.GameStatePayload) {
	m.mu.Lock()
	defer m.mu.Unlock()

	enemyList := gs.EnemyList()
	enemies := make([]record, 0, len(enemyList))
	for _, e := range enemyList {
		enemies = append(enemies, record{id: e.ID, x: e.X, y: e.Y, health: e.Health, hasHealth: true})
	}
	m.reconcile(Enemies, TextureEnemy, enemies)

	players := make([]record, 0, len(gs.PlayerList()))
	for _, p := range gs.PlayerList() {
		if p.ID == m.localID {
			m.applyLocal(p)
			continue
		}
		players = append(players, record{id: p.ID, x: p.X, y: p.Y, health: p.Health, hasHealth: true})
	}
	m.reconcile(Players, TextureRemotePlayer, players)

	bulletList := gs.BulletList()
	bullets := make([]record, 0, len(bulletList))
	for _, b := range bulletList {
		bullets = append(bullets, record{id: b.ID, x: b.X, y: b.Y})
	}
	m.reconcile(Bullets, TextureBullet, bullets)
}

// applyLocal moves the client's own entity and makes sure it has no remote
// mirror.
func (m *Mirror) applyLocal(p protocol.PlayerState) {
	m.store.SetPosition(m.localPlayer, world.PositionData{X: p.X, Y: p.Y})
	m.store.SetHealth(m.localPlayer, p.Health)

	players := m.tracked[Players]
	if ent, ok := players[p.ID]; ok {
		m.store.DestroyEntity(ent)
		delete(players, p.ID)
	}
}

func (m *Mirror) reconcile(c Category, texture string, records []record) {
	tracked := m.tracked[c]
	seen := make(map[int32]struct{}, len(records))

	for _, r := range records {
		seen[r.id] = struct{}{}
		ent, exists := tracked[r.id]

		if r.hasHealth && r.health <= 0 {
			if exists {
				m.store.DestroyEntity(ent)
				delete(tracked, r.id)
			}
			continue
		}

		if !exists {
			tracked[r.id] = m.spawn(texture, r.x, r.y)
			continue
		}
		m.store.SetPosition(ent, world.PositionData{X: r.x, Y: r.y})
	}

	for id, ent := range tracked {
		if _, ok := seen[id]; !ok {
			m.store.DestroyEntity(ent)
			delete(tracked, id)
		}
	}
}

func (m *Mirror) spawn(texture string, x, y float32) world.Entity {
	e := m.store.CreateEntity()
	if err := m.store.AddComponent(e, world.PositionData{X: x, Y: y}); err != nil {
		m.logger.Printf("Mirror %s: %v", texture, err)
	}
	tex := m.store.Texture(texture)
	if err := m.store.AddComponent(e, world.SpriteData{Texture: tex, Width: tex.Width, Height: tex.Height}); err != nil {
		m.logger.Printf("Mirror %s: %v", texture, err)
	}
	return e
}

// IDs returns the remote ids currently mirrored in c, sorted.
func (m *Mirror) IDs(c Category) []int32 {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]int32, 0, len(m.tracked[c]))
	for id := range m.tracked[c] {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Entity returns the local entity mirroring remote id in c.
func (m *Mirror) Entity(c Category, id int32) (world.Entity, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.tracked[c][id]
	return e, ok
}
