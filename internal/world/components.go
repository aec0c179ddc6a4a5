package world

import "github.com/yohamta/donburi"

type PositionData struct {
	X, Y float32
}

type VelocityData struct {
	X, Y float32
}

type HealthData struct {
	Current int32
	Max     int32
}

// Texture describes a named image. The renderer resolves Name to pixels;
// the world only carries the descriptor.
type Texture struct {
	Name   string
	Width  int
	Height int
}

type SpriteData struct {
	Texture Texture
	Width   int
	Height  int
}

var (
	// Stored marks every entity created through a Store; donburi needs at
	// least one component to place an entity in an archetype.
	Stored = donburi.NewTag("stored")

	Position = donburi.NewComponentType[PositionData]()
	Velocity = donburi.NewComponentType[VelocityData]()
	Health   = donburi.NewComponentType[HealthData]()
	Sprite   = donburi.NewComponentType[SpriteData]()
)
