package game

// Arena dimensions in world units; the client window is the same size.
const (
	ArenaWidth  = 800.0
	ArenaHeight = 600.0
)

// Rect is an axis aligned box in world units.
type Rect struct {
	X, Y, W, H float32
}

// BulletBounds is the region bullets stay alive in. It reaches past the
// left edge so enemy fire leaves the screen before disappearing.
var BulletBounds = Rect{X: -50, Y: 0, W: ArenaWidth + 100, H: ArenaHeight}

// PlayerSpawn is where a ship appears on its first input.
var PlayerSpawn = struct {
	X, Y float32
}{X: 400, Y: 300}

// Wave layout.
const (
	EnemySpawnX   = 850.0
	EnemyDespawnX = -100.0
	BossBaseY     = 200.0
	WaveBaseY     = 100.0
	WaveRowStep   = 80.0
)
