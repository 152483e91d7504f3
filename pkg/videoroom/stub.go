package videoroom

import (
	"context"
	"fmt"
)

// StubProvider is a no-op provider for development and tests.
type StubProvider struct{}

func (s *StubProvider) CreateRoom(ctx context.Context, req RoomRequest) (*Room, error) {
	return &Room{Name: req.Name, URL: "https://rooms.invalid/" + req.Name}, nil
}

func (s *StubProvider) CreateJoinToken(ctx context.Context, req TokenRequest) (string, error) {
	return fmt.Sprintf("stub-token-%s-%s", req.RoomName, req.UserID), nil
}
