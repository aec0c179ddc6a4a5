package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"

	"netarcade/internal/client"
	"netarcade/internal/client/render"
	"netarcade/internal/config"
	"netarcade/internal/protocol"
	"netarcade/internal/reliable"
	"netarcade/internal/world"
)

type scene int

const (
	sceneMenu scene = iota
	sceneGame
)

type Game struct {
	ctx       context.Context
	net       *client.NetClient
	store     *world.Store
	local     world.Entity
	renderer  *render.Renderer
	scene     scene
	sentReady bool
}

func (g *Game) Update() error {
	if g.ctx.Err() != nil || ebiten.IsKeyPressed(ebiten.KeyEscape) {
		return ebiten.Termination
	}

	switch g.scene {
	case sceneMenu:
		if !g.sentReady && inpututil.IsKeyJustPressed(ebiten.KeyEnter) {
			g.net.SendReady()
			g.sentReady = true
		}
		if g.net.Started() {
			g.scene = sceneGame
		}

	case sceneGame:
		g.net.SendInput(protocol.PlayerInputPayload{
			Up:    ebiten.IsKeyPressed(ebiten.KeyUp),
			Down:  ebiten.IsKeyPressed(ebiten.KeyDown),
			Left:  ebiten.IsKeyPressed(ebiten.KeyLeft),
			Right: ebiten.IsKeyPressed(ebiten.KeyRight),
			Shoot: inpututil.IsKeyJustPressed(ebiten.KeySpace),
		})
	}
	return nil
}

func (g *Game) Draw(screen *ebiten.Image) {
	if g.scene == sceneMenu {
		total, ready := g.net.LobbyStatus()
		g.renderer.DrawMenu(screen, total, ready, g.sentReady)
		return
	}

	g.renderer.DrawWorld(screen, g.store, g.local)
	latency, ok := g.net.Latency()
	g.renderer.DrawNetStats(screen, latency, ok, g.net.PacketLoss())
}

func (g *Game) Layout(outsideWidth, outsideHeight int) (int, int) {
	return render.ScreenWidth, render.ScreenHeight
}

func main() {
	if err := config.LoadEnvFile(); err != nil {
		log.Printf("Could not load .env file: %v", err)
	}
	cfg, err := config.ParseClient(os.Args[1:], os.Getenv, os.Stderr)
	if errors.Is(err, config.ErrUsage) || errors.Is(err, flag.ErrHelp) {
		os.Exit(2)
	}
	if err != nil {
		log.Fatal(err)
	}

	store := world.NewStore()
	renderer := render.NewRenderer()
	renderer.RegisterTextures(store)

	local := store.CreateEntity()
	tex := store.Texture(client.TexturePlayer)
	store.AddComponent(local, world.PositionData{X: 100, Y: 300})
	store.AddComponent(local, world.VelocityData{})
	store.AddComponent(local, world.HealthData{Current: 3, Max: 3})
	store.AddComponent(local, world.SpriteData{Texture: tex, Width: tex.Width, Height: tex.Height})

	var engineOpts []reliable.Option
	if cfg.MaxRetries > 0 {
		engineOpts = append(engineOpts,
			reliable.WithMaxRetries(cfg.MaxRetries),
			reliable.WithGiveUp(func(seq uint32) {
				log.Printf("Server unreachable: gave up on seq=%d", seq)
			}),
		)
	}

	nc, err := client.Dial(cfg.ServerAddr(), cfg.LocalPort, store, local, client.WithEngineOptions(engineOpts...))
	if err != nil {
		log.Fatal(err)
	}
	defer nc.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	go nc.Run(ctx, client.UpdateInterval)

	ebiten.SetWindowSize(render.ScreenWidth, render.ScreenHeight)
	ebiten.SetWindowTitle("netarcade")

	game := &Game{
		ctx:      ctx,
		net:      nc,
		store:    store,
		local:    local,
		renderer: renderer,
	}
	if err := ebiten.RunGame(game); err != nil {
		log.Fatal(err)
	}
}
