package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"netarcade/internal/config"
	"netarcade/internal/game"
	"netarcade/internal/protocol"
	"netarcade/internal/reliable"
	"netarcade/internal/server"
	"netarcade/internal/sim"
)

func main() {
	if err := config.LoadEnvFile(); err != nil {
		log.Printf("Could not load .env file: %v", err)
	}
	cfg, err := config.ParseServer(os.Args[1:], os.Getenv, os.Stderr)
	if errors.Is(err, config.ErrUsage) || errors.Is(err, flag.ErrHelp) {
		os.Exit(2)
	}
	if err != nil {
		log.Fatal(err)
	}

	name := cfg.Game
	if name == "" {
		name, err = chooseGame(os.Stdin, os.Stdout)
		if err != nil {
			log.Fatal(err)
		}
	}
	g, err := game.New(name)
	if err != nil {
		log.Fatal(err)
	}
	log.Printf("Loaded game: %s", name)

	var srv *server.Server
	driver := sim.New(g, sim.BroadcasterFunc(func(gs protocol.GameStatePayload) {
		srv.BroadcastGameState(gs)
	}))

	opts := []server.Option{server.WithIdleTimeout(cfg.IdleTimeout)}
	if cfg.MaxRetries > 0 {
		opts = append(opts, server.WithEngineOptions(
			reliable.WithMaxRetries(cfg.MaxRetries),
			reliable.WithGiveUp(func(seq uint32) {
				log.Printf("Client unreachable: gave up on seq=%d", seq)
			}),
		))
	}
	srv, err = server.Listen(fmt.Sprintf(":%d", cfg.Port), driver, opts...)
	if err != nil {
		log.Fatal(err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if cfg.SpectateAddr != "" {
		go serveSpectators(ctx, srv, cfg)
	}

	go driver.Run(ctx)
	go srv.RunLobby(ctx, server.LobbyInterval)

	if err := srv.Serve(ctx); err != nil {
		log.Fatal("Server error:", err)
	}
	log.Printf("Server stopped")
}

func serveSpectators(ctx context.Context, srv *server.Server, cfg config.Server) {
	sessions := server.NewSessionStore()
	go sessions.RunCleanup(ctx)
	auth := server.NewAuth(cfg.Password, sessions)

	httpSrv := &http.Server{Addr: cfg.SpectateAddr, Handler: srv.Handler(auth)}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		httpSrv.Shutdown(shutdownCtx)
	}()

	log.Printf("Spectator endpoint: ws://%s/ws (status at /api/status)", cfg.SpectateAddr)
	if auth.Enabled() {
		log.Printf("Spectators must log in at /api/login")
	}
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Printf("Spectator server error: %v", err)
	}
}

// chooseGame lists the registered games and reads a choice, by number or
// by name, from in.
func chooseGame(in io.Reader, out io.Writer) (string, error) {
	names := game.Names()
	fmt.Fprintln(out, "Available games:")
	for i, n := range names {
		fmt.Fprintf(out, "  %d) %s\n", i+1, n)
	}

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "Select a game: ")
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return "", err
			}
			return "", errors.New("no game selected")
		}
		choice := strings.TrimSpace(scanner.Text())
		if n, err := strconv.Atoi(choice); err == nil && n >= 1 && n <= len(names) {
			return names[n-1], nil
		}
		for _, name := range names {
			if strings.EqualFold(choice, name) {
				return name, nil
			}
		}
		fmt.Fprintf(out, "Invalid choice %q\n", choice)
	}
}
