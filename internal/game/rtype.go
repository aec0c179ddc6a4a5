package game

import (
	"log"
	"math"
	"math/rand"
	"sort"

	"netarcade/internal/protocol"
)

type EnemyType uint8

const (
	EnemyNormal EnemyType = iota
	EnemyFast
	EnemyStrong
)

const (
	WaveInterval       = 8.0 // seconds
	WaveSize           = 5
	BaseEnemySpeed     = -50.0
	BaseEnemyShootTime = 2.0
	BulletSpeed        = 200.0
	PlayerMoveStep     = 150.0 * 0.09 // per input message
	PlayerHealth       = 3
	BossHealth         = 10

	firstEnemyID  = 1
	firstBulletID = 1000
)

type Ship struct {
	ID     int32
	X, Y   float32
	Health int32
}

type Enemy struct {
	ID           int32
	X, Y         float32
	BaseY        float32
	VX           float32
	Health       int32
	Active       bool
	ShootTimer   float32
	Type         EnemyType
	PatternTimer float32
}

type Bullet struct {
	ID      int32
	X, Y    float32
	VX, VY  float32
	OwnerID int32 // negative for enemy fire: -enemyID
	Active  bool
}

// RType is a side scrolling shooter: ships fly right-facing, enemies come
// in waves from the right edge and shoot back.
type RType struct {
	rng *rand.Rand

	Players   map[int32]*Ship
	Enemies   []*Enemy
	Bullets   []*Bullet
	WaveTimer float32
	WaveIndex int

	nextEnemyID  int32
	nextBulletID int32
}

func NewRType(rng *rand.Rand) *RType {
	g := &RType{rng: rng}
	g.Start()
	return g
}

func (g *RType) Start() {
	g.Players = make(map[int32]*Ship)
	g.Enemies = nil
	g.Bullets = nil
	g.WaveTimer = 0
	g.WaveIndex = 0
	g.nextEnemyID = firstEnemyID
	g.nextBulletID = firstBulletID
}

// OnPlayerInput spawns the sender's ship on first contact, then moves it
// one step per pressed direction and fires if Shoot is held.
func (g *RType) OnPlayerInput(in protocol.PlayerInputPayload) {
	p, ok := g.Players[in.NetID]
	if !ok {
		p = &Ship{ID: in.NetID, X: PlayerSpawn.X, Y: PlayerSpawn.Y, Health: PlayerHealth}
		g.Players[in.NetID] = p
	}

	if in.Up {
		p.Y -= PlayerMoveStep
	}
	if in.Down {
		p.Y += PlayerMoveStep
	}
	if in.Left {
		p.X -= PlayerMoveStep
	}
	if in.Right {
		p.X += PlayerMoveStep
	}
	if in.Shoot {
		g.fire(p.X, p.Y, BulletSpeed, p.ID)
	}
}

func (g *RType) fire(x, y, vx float32, owner int32) {
	g.Bullets = append(g.Bullets, &Bullet{
		ID:      g.nextBulletID,
		X:       x,
		Y:       y,
		VX:      vx,
		OwnerID: owner,
		Active:  true,
	})
	g.nextBulletID++
}

func (g *RType) OnUpdate(dt float32) {
	g.WaveTimer += dt
	if g.WaveTimer >= WaveInterval {
		g.WaveTimer = 0
		g.spawnWave()
	}

	for _, e := range g.Enemies {
		if e.Active {
			g.updateEnemy(e, dt)
		}
	}
	for _, b := range g.Bullets {
		if b.Active {
			g.updateBullet(b, dt)
		}
	}
	g.compact()

	for _, p := range g.Players {
		if p.Health > 0 {
			return
		}
	}
	if len(g.Players) > 0 {
		log.Printf("All players dead. Resetting game state.")
	}
	g.Start()
}

func (g *RType) updateEnemy(e *Enemy, dt float32) {
	e.PatternTimer += dt

	var amplitude, freq float64
	switch e.Type {
	case EnemyNormal:
		amplitude, freq = 20, 2
	case EnemyFast:
		amplitude, freq = 30, 3
	case EnemyStrong:
		amplitude, freq = 10, 1.5
	}
	e.X += e.VX * dt
	e.Y = e.BaseY + float32(amplitude*math.Sin(float64(e.PatternTimer)*freq))
	if e.X < EnemyDespawnX {
		e.Active = false
		return
	}

	e.ShootTimer -= dt
	if e.ShootTimer > 0 {
		return
	}

	speed, reload := float32(BulletSpeed), float32(BaseEnemyShootTime)
	switch e.Type {
	case EnemyFast:
		speed, reload = BulletSpeed*1.2, BaseEnemyShootTime*0.7
	case EnemyStrong:
		speed, reload = BulletSpeed*0.8, BaseEnemyShootTime*1.2
	}
	g.fire(e.X, e.Y, -speed, -e.ID)
	e.ShootTimer = reload
}

func (g *RType) updateBullet(b *Bullet, dt float32) {
	b.X += b.VX * dt
	b.Y += b.VY * dt
	if Outside(b.X, b.Y, BulletBounds) {
		b.Active = false
		return
	}

	if b.OwnerID >= 0 {
		for _, e := range g.Enemies {
			if !e.Active || !CirclesTouch(b.X, b.Y, e.X, e.Y, HitRadius) {
				continue
			}
			e.Health--
			if e.Health <= 0 {
				e.Active = false
			}
			b.Active = false
			return
		}
		return
	}

	for _, id := range g.playerIDs() {
		p := g.Players[id]
		if p.Health <= 0 || !CirclesTouch(b.X, b.Y, p.X, p.Y, HitRadius) {
			continue
		}
		p.Health--
		b.Active = false
		return
	}
}

// compact drops inactive enemies and bullets, keeping order.
func (g *RType) compact() {
	enemies := g.Enemies[:0]
	for _, e := range g.Enemies {
		if e.Active {
			enemies = append(enemies, e)
		}
	}
	g.Enemies = enemies

	bullets := g.Bullets[:0]
	for _, b := range g.Bullets {
		if b.Active {
			bullets = append(bullets, b)
		}
	}
	g.Bullets = bullets
}

func (g *RType) spawnWave() {
	g.Enemies = append(g.Enemies, &Enemy{
		ID:         g.nextEnemyID,
		X:          EnemySpawnX,
		Y:          BossBaseY,
		BaseY:      BossBaseY,
		VX:         BaseEnemySpeed * 0.5,
		Health:     BossHealth,
		Active:     true,
		ShootTimer: BaseEnemyShootTime * 1.5,
		Type:       EnemyStrong,
	})
	g.nextEnemyID++

	for i := 0; i < WaveSize; i++ {
		e := &Enemy{
			ID:     g.nextEnemyID,
			X:      EnemySpawnX,
			BaseY:  WaveBaseY + float32(i)*WaveRowStep,
			Active: true,
		}
		e.Y = e.BaseY
		if g.rng.Intn(2) == 0 {
			e.Type = EnemyNormal
			e.VX = BaseEnemySpeed
			e.Health = 3
			e.ShootTimer = BaseEnemyShootTime
		} else {
			e.Type = EnemyFast
			e.VX = BaseEnemySpeed * 1.5
			e.Health = 2
			e.ShootTimer = BaseEnemyShootTime * 0.7
		}
		g.Enemies = append(g.Enemies, e)
		g.nextEnemyID++
	}
	g.WaveIndex++
}

func (g *RType) playerIDs() []int32 {
	ids := make([]int32, 0, len(g.Players))
	for id := range g.Players {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// State packs the world into a snapshot. Players beyond capacity, and any
// enemies or bullets beyond capacity, are left out.
func (g *RType) State() protocol.GameStatePayload {
	var gs protocol.GameStatePayload
	for _, id := range g.playerIDs() {
		p := g.Players[id]
		gs.AddPlayer(protocol.PlayerState{ID: p.ID, X: p.X, Y: p.Y, Health: max(p.Health, 0)})
	}
	for _, e := range g.Enemies {
		if e.Active {
			gs.AddEnemy(protocol.EnemyState{ID: e.ID, X: e.X, Y: e.Y, Health: e.Health, Type: uint8(e.Type)})
		}
	}
	for _, b := range g.Bullets {
		if b.Active {
			gs.AddBullet(protocol.BulletState{ID: b.ID, X: b.X, Y: b.Y, VX: b.VX, VY: b.VY, OwnerID: b.OwnerID})
		}
	}
	return gs
}
