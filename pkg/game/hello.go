package game

import (
	"context"
	"fmt"

	"github.com/JJ-Intelligence/SR-Battleships/pkg/comms"
	"go.uber.org/zap"
)

// AwaitHello reads the greeting a relay sends before the fleet exchange
// and returns the role it assigned.
func AwaitHello(ctx context.Context, t Transport, cfg Config, log *zap.Logger) (Role, string, error) {
	if log == nil {
		log = zap.NewNop()
	}
	m, err := Receive(ctx, t, cfg, log)
	if err != nil {
		return 0, "", err
	}
	hello, ok := m.(comms.Hello)
	if !ok {
		return 0, "", fmt.Errorf("%w: expected a relay greeting, got %T", ErrProtocolViolation, m)
	}
	role, err := ParseRole(hello.Role)
	if err != nil {
		return 0, "", fmt.Errorf("%w: %v", ErrProtocolViolation, err)
	}
	log.Info(fmt.Sprintf("relay assigned role %s in match %s", role, hello.Session))
	return role, hello.Session, nil
}
