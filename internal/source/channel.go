package source

import (
	"context"

	"github.com/thruflo/turnlink/internal/geometry"
)

// Channel adapts a caller-owned channel. The caller closes it to end the
// stream; cancelling ctx stops forwarding.
type Channel <-chan geometry.Position

// Positions forwards fixes from c until c is closed or ctx is done.
func (c Channel) Positions(ctx context.Context) (<-chan geometry.Position, error) {
	out := make(chan geometry.Position)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case fix, ok := <-c:
				if !ok {
					return
				}
				select {
				case out <- fix:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
