package scraper

import (
	"context"

	"tgscraper/pkg/ratelimit"
	"tgscraper/pkg/retry"
	"tgscraper/pkg/storage"
	"tgscraper/pkg/telegram"
	"tgscraper/pkg/ui"
)

// DownloadMedia walks up to limit most-recent messages of a channel and
// downloads every attachment into the channel's download folder. A single
// failed download is counted and skipped, never fatal. Media already on
// disk from earlier runs is left alone.
func (s *Scraper) DownloadMedia(ctx context.Context, handle string, limit int) (downloaded, skipped int, err error) {
	username := normalizeHandle(handle)

	ent, err := s.resolve(ctx, handle)
	if err != nil {
		s.logger.WithError(err).WithField("channel", username).Error("channel not resolvable, skipping media download")
		return 0, 0, nil
	}

	manager, err := storage.NewManager(s.config.Output.DownloadsDir, username)
	if err != nil {
		return 0, 0, err
	}

	// pause once per ten messages examined, not per download
	pacer := ratelimit.NewIntervalPacer(s.config.RateLimit.PolitenessDelay, 10)
	progress := ui.NewProgress("Checking media in @"+username, limit)
	defer progress.Done()

	examined := 0
	offsetID := 0

	for examined < limit {
		pageLimit := min(pageSize, limit-examined)

		page, pageErr := retry.DoWithResult(ctx, s.invoker, func(ctx context.Context) ([]telegram.Message, error) {
			return s.client.History(ctx, ent, offsetID, pageLimit)
		})
		if pageErr != nil {
			if retry.Skipped(pageErr) {
				s.logger.WithField("channel", username).Warn("media page skipped after exhausted retries")
				break
			}
			return downloaded, skipped, pageErr
		}
		if len(page) == 0 {
			break
		}

		for i := range page {
			msg := page[i]
			examined++
			progress.Add(1)

			if msg.HasMedia {
				if manager.IsDownloaded(msg.ID) {
					s.logger.DebugWithFields("media already downloaded", map[string]interface{}{
						"channel":    username,
						"message_id": msg.ID,
					})
				} else if s.downloadOne(ctx, manager, username, &msg) {
					downloaded++
				} else {
					skipped++
				}
			}

			if err := pacer.Pace(ctx); err != nil {
				return downloaded, skipped, err
			}
		}

		offsetID = page[len(page)-1].ID
		if len(page) < pageLimit {
			break
		}
	}

	s.logger.InfoWithFields("media download finished", map[string]interface{}{
		"channel":    username,
		"downloaded": downloaded,
		"skipped":    skipped,
	})
	return downloaded, skipped, nil
}

// downloadOne fetches a single attachment, reporting success
func (s *Scraper) downloadOne(ctx context.Context, manager *storage.Manager, username string, msg *telegram.Message) bool {
	basePath := manager.BasePath(msg.Date, msg.ID)

	path, err := retry.DoWithResult(ctx, s.invoker, func(ctx context.Context) (string, error) {
		return s.client.DownloadMedia(ctx, msg, basePath)
	})
	if err != nil {
		s.logger.WithError(err).WithFields(map[string]interface{}{
			"channel":    username,
			"message_id": msg.ID,
		}).Error("failed to download media")
		return false
	}

	manager.MarkDownloaded(msg.ID)
	s.logger.DebugWithFields("media downloaded", map[string]interface{}{
		"channel":    username,
		"message_id": msg.ID,
		"path":       path,
	})
	return true
}
