package game

import (
	"math/rand"
	"sort"

	"netarcade/internal/protocol"
)

const (
	GridWidth        = 40
	GridHeight       = 30
	CellSize         = 20
	SnakeMoveSeconds = 0.2
	FoodCount        = 3
	snakeStartLength = 3
)

type Direction uint8

const (
	DirUp Direction = iota
	DirRight
	DirDown
	DirLeft
)

func (d Direction) opposite() Direction {
	return (d + 2) % 4
}

type Cell struct {
	X, Y int
}

type SnakeBody struct {
	NetID     int32
	Score     int32
	Direction Direction
	Body      []Cell // head first
}

type Food struct {
	ID  int32
	Pos Cell
}

// Snake is multiplayer snake on a wrapping grid. Each player that sends
// input gets a snake; eating food grows it by one cell.
type Snake struct {
	rng *rand.Rand

	Snakes     map[int32]*SnakeBody
	Foods      []Food
	moveTimer  float32
	nextFoodID int32
}

func NewSnake(rng *rand.Rand) *Snake {
	g := &Snake{rng: rng}
	g.Start()
	return g
}

func (g *Snake) Start() {
	g.Snakes = make(map[int32]*SnakeBody)
	g.Foods = nil
	g.moveTimer = 0
	g.nextFoodID = 1
	for i := 0; i < FoodCount; i++ {
		g.spawnFood()
	}
}

// OnPlayerInput steers the sender's snake, creating it first if needed.
// Even ids start on the left heading right, odd ids on the right heading
// left. A direct reversal is ignored.
func (g *Snake) OnPlayerInput(in protocol.PlayerInputPayload) {
	s, ok := g.Snakes[in.NetID]
	if !ok {
		s = newSnakeBody(in.NetID)
		g.Snakes[in.NetID] = s
	}

	dir := s.Direction
	switch {
	case in.Up:
		dir = DirUp
	case in.Right:
		dir = DirRight
	case in.Down:
		dir = DirDown
	case in.Left:
		dir = DirLeft
	}
	if dir != s.Direction.opposite() {
		s.Direction = dir
	}
}

func newSnakeBody(id int32) *SnakeBody {
	s := &SnakeBody{NetID: id}
	head := Cell{X: GridWidth / 4, Y: GridHeight / 2}
	step := -1
	s.Direction = DirRight
	if id%2 != 0 {
		head.X = 3 * GridWidth / 4
		step = 1
		s.Direction = DirLeft
	}
	for i := 0; i < snakeStartLength; i++ {
		s.Body = append(s.Body, Cell{X: head.X + i*step, Y: head.Y})
	}
	return s
}

func (g *Snake) OnUpdate(dt float32) {
	g.moveTimer += dt
	for g.moveTimer >= SnakeMoveSeconds {
		for _, id := range g.ids() {
			g.step(g.Snakes[id])
		}
		g.moveTimer -= SnakeMoveSeconds
	}
	if len(g.Foods) < FoodCount {
		g.spawnFood()
	}
}

func (g *Snake) step(s *SnakeBody) {
	head := s.Body[0]
	switch s.Direction {
	case DirUp:
		head.Y--
	case DirRight:
		head.X++
	case DirDown:
		head.Y++
	case DirLeft:
		head.X--
	}
	head.X = Wrap(head.X, GridWidth)
	head.Y = Wrap(head.Y, GridHeight)

	ate := false
	for i, f := range g.Foods {
		if f.Pos == head {
			ate = true
			s.Score++
			g.Foods = append(g.Foods[:i], g.Foods[i+1:]...)
			break
		}
	}

	s.Body = append([]Cell{head}, s.Body...)
	if !ate {
		s.Body = s.Body[:len(s.Body)-1]
	}
}

func (g *Snake) spawnFood() {
	free := make([]Cell, 0, GridWidth*GridHeight)
	for y := 0; y < GridHeight; y++ {
		for x := 0; x < GridWidth; x++ {
			if c := (Cell{X: x, Y: y}); !g.occupied(c) {
				free = append(free, c)
			}
		}
	}
	if len(free) == 0 {
		return
	}
	g.Foods = append(g.Foods, Food{ID: g.nextFoodID, Pos: free[g.rng.Intn(len(free))]})
	g.nextFoodID++
}

func (g *Snake) occupied(c Cell) bool {
	for _, s := range g.Snakes {
		for _, seg := range s.Body {
			if seg == c {
				return true
			}
		}
	}
	for _, f := range g.Foods {
		if f.Pos == c {
			return true
		}
	}
	return false
}

func (g *Snake) ids() []int32 {
	ids := make([]int32, 0, len(g.Snakes))
	for id := range g.Snakes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// State maps heads to players (health carries the score), food to enemies
// and body segments to bullets with id netID*1000+index.
func (g *Snake) State() protocol.GameStatePayload {
	var gs protocol.GameStatePayload
	ids := g.ids()
	for _, id := range ids {
		s := g.Snakes[id]
		head := s.Body[0]
		gs.AddPlayer(protocol.PlayerState{
			ID:     s.NetID,
			X:      float32(head.X * CellSize),
			Y:      float32(head.Y * CellSize),
			Health: s.Score,
		})
	}
	for _, f := range g.Foods {
		gs.AddEnemy(protocol.EnemyState{
			ID:     f.ID,
			X:      float32(f.Pos.X * CellSize),
			Y:      float32(f.Pos.Y * CellSize),
			Health: 1,
		})
	}
	for _, id := range ids {
		s := g.Snakes[id]
		for i := 1; i < len(s.Body); i++ {
			gs.AddBullet(protocol.BulletState{
				ID:      s.NetID*1000 + int32(i),
				X:       float32(s.Body[i].X * CellSize),
				Y:       float32(s.Body[i].Y * CellSize),
				OwnerID: s.NetID,
			})
		}
	}
	return gs
}
