package scraper

import (
	"context"
	"time"

	"tgscraper/pkg/retry"
	"tgscraper/pkg/telegram"
)

// previewLimit caps the logged body preview of a live message.
const previewLimit = 50

// Monitor subscribes to new messages in a channel for a bounded wall-clock
// duration, logging each arrival. Events are not buffered: anything
// delivered after the window closes is dropped by design.
func (s *Scraper) Monitor(ctx context.Context, handle string, duration time.Duration) error {
	username := normalizeHandle(handle)

	ent, err := s.resolve(ctx, handle)
	if err != nil {
		s.logger.WithError(err).WithField("channel", username).Error("channel not resolvable, cannot monitor")
		return nil
	}

	remove := s.client.OnNewMessage(ent.ID, func(msg telegram.Message) {
		fields := map[string]interface{}{
			"channel":    username,
			"message_id": msg.ID,
			"preview":    truncate(msg.Text, previewLimit),
		}
		if msg.HasMedia {
			fields["media_type"] = string(msg.MediaKind)
		}
		s.logger.InfoWithFields("new message", fields)
	})
	defer remove()

	s.logger.InfoWithFields("monitoring channel", map[string]interface{}{
		"channel":  username,
		"duration": duration.String(),
	})

	if err := retry.Wait(ctx, duration); err != nil {
		return err
	}

	s.logger.WithField("channel", username).Info("monitoring complete")
	return nil
}

func truncate(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit]) + "..."
}
