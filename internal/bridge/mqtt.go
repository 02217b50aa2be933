package bridge

import (
	"context"
	"errors"
	"strings"

	"github.com/nerrad567/loxhue-core/internal/infrastructure/logging"
	"github.com/nerrad567/loxhue-core/internal/infrastructure/mqtt"
)

// CommandSubscriber registers topic handlers. *mqtt.Client satisfies it.
type CommandSubscriber interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
}

// SubscribeCommands routes <prefix>/<kind>/<name>/set messages into
// HandleCommand. The payload is the controller value.
func (b *Bridge) SubscribeCommands(sub CommandSubscriber, topics mqtt.Topics, qos byte) error {
	return sub.Subscribe(topics.AllCommands(), qos, b.commandHandler(topics))
}

func (b *Bridge) commandHandler(topics mqtt.Topics) mqtt.MessageHandler {
	return func(topic string, payload []byte) error {
		_, name, ok := topics.ParseCommand(topic)
		if !ok {
			return nil
		}

		ctx := b.ctx
		if ctx == nil {
			ctx = context.Background()
		}

		value := strings.TrimSpace(string(payload))
		_, err := b.HandleCommand(ctx, name, value)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, ErrUnknownTarget):
			b.logger.Info("command for unmapped name recorded", "name", name, logging.CategoryKey, logging.CategoryLight)
			return nil
		default:
			return err
		}
	}
}
