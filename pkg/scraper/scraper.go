// Package scraper contains the scraping engine: the paginated history
// fetcher, server-side search, media downloader, live monitor, and the
// per-channel orchestrator that sequences them. All remote calls go through
// the retry invoker; all pagination is strictly serial.
package scraper

import (
	"context"
	"strings"

	"tgscraper/pkg/config"
	"tgscraper/pkg/export"
	"tgscraper/pkg/logger"
	"tgscraper/pkg/models"
	"tgscraper/pkg/ratelimit"
	"tgscraper/pkg/retry"
	"tgscraper/pkg/telegram"
	"tgscraper/pkg/ui"
)

// pageSize is the per-request ceiling on history and search pages.
const pageSize = 100

// Scraper drives all scraping work for one run over a single authenticated
// session. The session object is created once at startup and shared
// read-only; the entity cache lives for the duration of the run.
type Scraper struct {
	client   telegram.Client
	invoker  *retry.Invoker
	exporter *export.Writer
	config   *config.Config
	logger   logger.Logger

	entities map[string]*telegram.Entity
}

// New creates a Scraper bound to an authenticated client.
func New(client telegram.Client, cfg *config.Config, log logger.Logger) (*Scraper, error) {
	exporter, err := export.NewWriter(cfg.Output.Directory, strings.ToLower(cfg.Output.Format), log)
	if err != nil {
		return nil, err
	}

	return &Scraper{
		client:   client,
		invoker:  retry.NewInvoker(retry.FromRateLimitConfig(&cfg.RateLimit, log)),
		exporter: exporter,
		config:   cfg,
		logger:   log,
		entities: make(map[string]*telegram.Entity),
	}, nil
}

// normalizeHandle strips the optional @ prefix.
func normalizeHandle(handle string) string {
	return strings.TrimPrefix(strings.TrimSpace(handle), "@")
}

// resolve turns a handle into an entity, caching the result for the run.
func (s *Scraper) resolve(ctx context.Context, handle string) (*telegram.Entity, error) {
	username := normalizeHandle(handle)
	if ent, ok := s.entities[username]; ok {
		return ent, nil
	}

	ent, err := retry.DoWithResult(ctx, s.invoker, func(ctx context.Context) (*telegram.Entity, error) {
		return s.client.ResolveChannel(ctx, username)
	})
	if err != nil {
		return nil, err
	}

	s.entities[username] = ent
	return ent, nil
}

// FetchMessages scrapes up to limit recent messages from a channel. Records
// come back in fetch order: descending by id within and across pages. An
// unresolvable channel yields an empty result, not an error; the run moves
// on.
func (s *Scraper) FetchMessages(ctx context.Context, handle string, limit int) ([]models.MessageRecord, error) {
	username := normalizeHandle(handle)

	ent, err := s.resolve(ctx, handle)
	if err != nil {
		s.logger.WithError(err).WithField("channel", username).Error("channel not resolvable, skipping scrape")
		return nil, nil
	}

	pacer := ratelimit.NewIntervalPacer(s.config.RateLimit.PolitenessDelay, 1)
	progress := ui.NewProgress("Scraping @"+username, limit)
	defer progress.Done()

	var records []models.MessageRecord
	offsetID := 0

	for len(records) < limit {
		pageLimit := min(pageSize, limit-len(records))

		page, err := retry.DoWithResult(ctx, s.invoker, func(ctx context.Context) ([]telegram.Message, error) {
			return s.client.History(ctx, ent, offsetID, pageLimit)
		})
		if err != nil {
			if retry.Skipped(err) {
				s.logger.WithField("channel", username).Warn("history page skipped after exhausted retries")
				break
			}
			return records, err
		}
		if len(page) == 0 {
			break
		}

		for _, msg := range page {
			record := models.NewMessageRecord(msg, username)
			s.attachSender(ctx, &record, msg)
			records = append(records, record)
		}

		// cursor advances to the oldest message of the page
		offsetID = page[len(page)-1].ID
		progress.Add(len(page))

		if err := pacer.Pace(ctx); err != nil {
			return records, err
		}
		if len(page) < pageLimit {
			break
		}
	}

	if len(records) == 0 {
		s.logger.WithField("channel", username).Warn("no messages found")
	}
	return records, nil
}

// SearchMessages collects up to limit messages matching query via the
// server-side search, with the same record mapping as FetchMessages.
func (s *Scraper) SearchMessages(ctx context.Context, handle, query string, limit int) ([]models.MessageRecord, error) {
	username := normalizeHandle(handle)

	ent, err := s.resolve(ctx, handle)
	if err != nil {
		s.logger.WithError(err).WithField("channel", username).Error("channel not resolvable, skipping search")
		return nil, nil
	}

	pacer := ratelimit.NewIntervalPacer(s.config.RateLimit.PolitenessDelay, 20)

	var records []models.MessageRecord
	offsetID := 0

	for len(records) < limit {
		pageLimit := min(pageSize, limit-len(records))

		page, err := retry.DoWithResult(ctx, s.invoker, func(ctx context.Context) ([]telegram.Message, error) {
			return s.client.Search(ctx, ent, query, offsetID, pageLimit)
		})
		if err != nil {
			if retry.Skipped(err) {
				s.logger.WithField("channel", username).Warn("search page skipped after exhausted retries")
				break
			}
			return records, err
		}
		if len(page) == 0 {
			break
		}

		for _, msg := range page {
			record := models.NewMessageRecord(msg, username)
			s.attachSender(ctx, &record, msg)
			records = append(records, record)

			if err := pacer.Pace(ctx); err != nil {
				return records, err
			}
		}

		offsetID = page[len(page)-1].ID
		if len(page) < pageLimit {
			break
		}
	}

	s.logger.InfoWithFields("search finished", map[string]interface{}{
		"channel": username,
		"query":   query,
		"matches": len(records),
	})
	return records, nil
}

// attachSender fills in the optional sender sub-record, substituting the
// Unknown sentinels when the lookup fails rather than dropping the record.
func (s *Scraper) attachSender(ctx context.Context, record *models.MessageRecord, msg telegram.Message) {
	if msg.FromID == 0 {
		return
	}

	record.Sender.ID = msg.FromID
	user, err := s.client.ResolveUser(ctx, msg.FromID)
	if err != nil {
		record.Sender.Name = models.UnknownSender
		record.Sender.Username = models.UnknownSender
		return
	}
	record.Sender.Name = user.DisplayName()
	record.Sender.Username = user.Username
}
