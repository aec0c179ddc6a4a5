package render

import (
	"fmt"
	"image/color"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/vector"

	"netarcade/internal/client"
	"netarcade/internal/world"
)

const (
	ScreenWidth  = 800
	ScreenHeight = 600
)

type shape int

const (
	shapeShip shape = iota
	shapeBox
	shapeDot
)

type textureSpec struct {
	name  string
	w, h  int
	fill  color.RGBA
	shape shape
}

// No asset files ship with the client; textures are drawn once at startup.
var textureSpecs = []textureSpec{
	{client.TexturePlayer, 32, 24, color.RGBA{80, 220, 120, 255}, shapeShip},
	{client.TextureRemotePlayer, 32, 24, color.RGBA{90, 150, 255, 255}, shapeShip},
	{client.TextureEnemy, 32, 32, color.RGBA{230, 70, 70, 255}, shapeBox},
	{client.TextureBullet, 8, 8, color.RGBA{255, 220, 60, 255}, shapeDot},
}

type Renderer struct {
	images map[string]*ebiten.Image
}

func NewRenderer() *Renderer {
	r := &Renderer{images: make(map[string]*ebiten.Image)}
	for _, spec := range textureSpecs {
		r.images[spec.name] = drawTexture(spec)
	}
	return r
}

func drawTexture(spec textureSpec) *ebiten.Image {
	img := ebiten.NewImage(spec.w, spec.h)
	w, h := float32(spec.w), float32(spec.h)
	switch spec.shape {
	case shapeShip:
		vector.DrawFilledRect(img, 0, h/4, w*3/4, h/2, spec.fill, false)
		vector.DrawFilledCircle(img, w*3/4, h/2, h/4, spec.fill, false)
	case shapeBox:
		vector.DrawFilledRect(img, 0, 0, w, h, spec.fill, false)
		vector.StrokeRect(img, 1, 1, w-2, h-2, 2, color.RGBA{120, 20, 20, 255}, false)
	case shapeDot:
		vector.DrawFilledCircle(img, w/2, h/2, w/2, spec.fill, false)
	}
	return img
}

// RegisterTextures publishes texture sizes to the store so mirrored
// entities get sprites of the right dimensions.
func (r *Renderer) RegisterTextures(store *world.Store) {
	for _, spec := range textureSpecs {
		store.RegisterTexture(spec.name, world.Texture{Width: spec.w, Height: spec.h})
	}
}

// DrawWorld draws every entity with a sprite, then the local health.
func (r *Renderer) DrawWorld(screen *ebiten.Image, store *world.Store, local world.Entity) {
	screen.Fill(color.RGBA{12, 12, 28, 255})

	store.Each(func(_ world.Entity, pos world.PositionData, sprite world.SpriteData) {
		img, ok := r.images[sprite.Texture.Name]
		if !ok {
			vector.DrawFilledRect(screen, pos.X, pos.Y, float32(max(sprite.Width, 4)), float32(max(sprite.Height, 4)), color.White, false)
			return
		}
		op := &ebiten.DrawImageOptions{}
		op.GeoM.Translate(float64(pos.X), float64(pos.Y))
		screen.DrawImage(img, op)
	})

	if hp, ok := store.Health(local); ok {
		ebitenutil.DebugPrintAt(screen, fmt.Sprintf("Health: %d/%d", hp.Current, hp.Max), 10, 10)
	}
}

// DrawNetStats prints latency and packet loss in the top right corner.
func (r *Renderer) DrawNetStats(screen *ebiten.Image, latency time.Duration, haveLatency bool, loss uint64) {
	lat := "Latency: -"
	if haveLatency {
		lat = fmt.Sprintf("Latency: %d ms", latency.Milliseconds())
	}
	ebitenutil.DebugPrintAt(screen, lat, ScreenWidth-130, 10)
	ebitenutil.DebugPrintAt(screen, fmt.Sprintf("Packet Loss: %d", loss), ScreenWidth-130, 26)
}

func (r *Renderer) DrawMenu(screen *ebiten.Image, total, ready uint8, sentReady bool) {
	screen.Fill(color.Black)
	prompt := "PRESS ENTER WHEN READY"
	if sentReady {
		prompt = "WAITING FOR OTHER PLAYERS"
	}
	ebitenutil.DebugPrintAt(screen, prompt, 320, 280)
	ebitenutil.DebugPrintAt(screen, fmt.Sprintf("Players: %d  Ready: %d", total, ready), 330, 310)
}
