package videoroom

import (
	"context"
	"time"
)

// RoomRequest provisions a room for one booking.
type RoomRequest struct {
	Name      string
	NotBefore time.Time
	Expiry    time.Time
}

type Room struct {
	Name string
	URL  string
}

// TokenRequest mints a per-participant join token scoped to one room.
// Tokens are opaque to callers beyond "hand to the right participant".
type TokenRequest struct {
	RoomName string
	UserID   string
	IsOwner  bool
	Expiry   time.Time
}

type Provider interface {
	CreateRoom(ctx context.Context, req RoomRequest) (*Room, error)
	CreateJoinToken(ctx context.Context, req TokenRequest) (string, error)
}
