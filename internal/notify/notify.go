package notify

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/MR-JLTC/tutorchat/internal/bus"
	"github.com/MR-JLTC/tutorchat/internal/config"
)

// Notifier rings the terminal bell for incoming messages from other
// users. The engine never publishes chat.incoming_message for the local
// user's own echoes, so self-sends stay silent.
type Notifier struct {
	bus     *bus.Bus
	logger  *zap.Logger
	enabled bool
	beep    func()
	cancel  context.CancelFunc
}

// New creates a notifier honoring the config's sound toggle.
func New(cfg *config.Config, b *bus.Bus, logger *zap.Logger) *Notifier {
	return &Notifier{
		bus:     b,
		logger:  logger,
		enabled: cfg.SoundEnabled,
		beep:    func() { fmt.Fprint(os.Stdout, "\a") },
	}
}

// Start subscribes to incoming-message events.
func (n *Notifier) Start(ctx context.Context) {
	if !n.enabled {
		n.logger.Debug("notification sound disabled")
		return
	}
	ctx, n.cancel = context.WithCancel(ctx)
	ch, unsub := n.bus.Subscribe(bus.KindChatIncoming, 16)

	go func() {
		defer unsub()
		for {
			select {
			case <-ch:
				n.beep()
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the notifier.
func (n *Notifier) Stop() {
	if n.cancel != nil {
		n.cancel()
	}
}
