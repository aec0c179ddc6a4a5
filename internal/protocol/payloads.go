package protocol

import (
	"bytes"
	"encoding/binary"
)

// Fixed snapshot capacities. Entries past capacity are dropped, never grown:
// the wire layout depends on these sizes.
const (
	MaxEnemies = 32
	MaxPlayers = 4
	MaxBullets = 32
)

type AckPayload struct {
	AckSequence uint32
}

// PingPayload is shared by Ping and Pong; a Pong echoes the Ping's sequence.
type PingPayload struct {
	PingSequence uint32
}

type LobbyStatusPayload struct {
	TotalClients uint8
	ReadyClients uint8
}

type PlayerInputPayload struct {
	NetID int32
	Up    bool
	Down  bool
	Left  bool
	Right bool
	Shoot bool
}

type EnemyState struct {
	ID     int32
	X      float32
	Y      float32
	Health int32
	Type   uint8
}

type PlayerState struct {
	ID     int32
	X      float32
	Y      float32
	Health int32
}

// BulletState.OwnerID is >= 0 for player bullets and negative for enemy
// bullets.
type BulletState struct {
	ID      int32
	X       float32
	Y       float32
	VX      float32
	VY      float32
	OwnerID int32
}

// GameStatePayload is one full snapshot of the authoritative world.
type GameStatePayload struct {
	NumEnemies uint8
	Enemies    [MaxEnemies]EnemyState
	NumPlayers uint8
	Players    [MaxPlayers]PlayerState
	NumBullets uint8
	Bullets    [MaxBullets]BulletState
}

// AddEnemy appends e, reporting false once the snapshot is full.
func (g *GameStatePayload) AddEnemy(e EnemyState) bool {
	if int(g.NumEnemies) >= MaxEnemies {
		return false
	}
	g.Enemies[g.NumEnemies] = e
	g.NumEnemies++
	return true
}

func (g *GameStatePayload) AddPlayer(p PlayerState) bool {
	if int(g.NumPlayers) >= MaxPlayers {
		return false
	}
	g.Players[g.NumPlayers] = p
	g.NumPlayers++
	return true
}

func (g *GameStatePayload) AddBullet(b BulletState) bool {
	if int(g.NumBullets) >= MaxBullets {
		return false
	}
	g.Bullets[g.NumBullets] = b
	g.NumBullets++
	return true
}

func (g *GameStatePayload) EnemyList() []EnemyState {
	return g.Enemies[:min(int(g.NumEnemies), MaxEnemies)]
}

func (g *GameStatePayload) PlayerList() []PlayerState {
	return g.Players[:min(int(g.NumPlayers), MaxPlayers)]
}

func (g *GameStatePayload) BulletList() []BulletState {
	return g.Bullets[:min(int(g.NumBullets), MaxBullets)]
}

func (p AckPayload) MarshalBinary() ([]byte, error)         { return marshal(&p) }
func (p *AckPayload) UnmarshalBinary(data []byte) error     { return unmarshal(data, p) }
func (p PingPayload) MarshalBinary() ([]byte, error)        { return marshal(&p) }
func (p *PingPayload) UnmarshalBinary(data []byte) error    { return unmarshal(data, p) }
func (p LobbyStatusPayload) MarshalBinary() ([]byte, error) { return marshal(&p) }
func (p *LobbyStatusPayload) UnmarshalBinary(data []byte) error {
	return unmarshal(data, p)
}
func (p PlayerInputPayload) MarshalBinary() ([]byte, error) { return marshal(&p) }
func (p *PlayerInputPayload) UnmarshalBinary(data []byte) error {
	return unmarshal(data, p)
}
func (g GameStatePayload) MarshalBinary() ([]byte, error) { return marshal(&g) }

// UnmarshalBinary clamps counts that exceed capacity.
func (g *GameStatePayload) UnmarshalBinary(data []byte) error {
	if err := unmarshal(data, g); err != nil {
		return err
	}
	g.NumEnemies = uint8(min(int(g.NumEnemies), MaxEnemies))
	g.NumPlayers = uint8(min(int(g.NumPlayers), MaxPlayers))
	g.NumBullets = uint8(min(int(g.NumBullets), MaxBullets))
	return nil
}

func marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(binary.Size(v))
	if err := binary.Write(&buf, ByteOrder, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func unmarshal(data []byte, v any) error {
	if len(data) < binary.Size(v) {
		return ErrTruncated
	}
	return binary.Read(bytes.NewReader(data), ByteOrder, v)
}
