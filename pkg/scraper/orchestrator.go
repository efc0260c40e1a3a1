package scraper

import (
	"context"
	"fmt"
	"time"

	"tgscraper/pkg/channels"
	"tgscraper/pkg/config"
	"tgscraper/pkg/export"
	"tgscraper/pkg/models"
	"tgscraper/pkg/retry"
	"tgscraper/pkg/storage"
	"tgscraper/pkg/telegram"
	"tgscraper/pkg/ui"
)

// Options gates the per-channel stages of a run.
type Options struct {
	Messages        bool
	MessageLimit    int
	SearchQuery     string
	SearchLimit     int
	DownloadMedia   bool
	MediaLimit      int
	MonitorDuration time.Duration
}

// OptionsFromConfig maps the loaded scrape configuration onto run options.
func OptionsFromConfig(cfg *config.ScrapeConfig) Options {
	return Options{
		Messages:        cfg.Messages,
		MessageLimit:    cfg.MessageLimit,
		SearchQuery:     cfg.SearchQuery,
		SearchLimit:     cfg.SearchLimit,
		DownloadMedia:   cfg.DownloadMedia,
		MediaLimit:      cfg.MediaLimit,
		MonitorDuration: cfg.MonitorDuration,
	}
}

// ChannelResult collects what each stage produced for one channel.
type ChannelResult struct {
	Channel    string
	Info       *models.ChannelInfo
	Messages   []models.MessageRecord
	SearchHits []models.MessageRecord
	Downloaded int
	Skipped    int
	Failed     bool
}

// Info resolves a channel and assembles its metadata row. The full-channel
// lookup is best-effort: participant count and linked chat stay unset when
// the server refuses them.
func (s *Scraper) Info(ctx context.Context, handle string) (*models.ChannelInfo, error) {
	username := normalizeHandle(handle)

	ent, err := s.resolve(ctx, handle)
	if err != nil {
		return nil, err
	}

	info := &models.ChannelInfo{
		ID:          ent.ID,
		Title:       ent.Title,
		Username:    ent.Username,
		LastChecked: time.Now(),
	}

	full, err := retry.DoWithResult(ctx, s.invoker, func(ctx context.Context) (*telegram.ChannelFull, error) {
		return s.client.ChannelFull(ctx, ent)
	})
	if err != nil {
		s.logger.WithError(err).WithField("channel", username).Warn("couldn't get full channel info")
		return info, nil
	}

	info.About = full.About
	info.ParticipantsCount = full.ParticipantsCount
	info.LinkedChatID = full.LinkedChatID
	return info, nil
}

// ProcessChannel runs the gated stage sequence for one channel:
// info -> messages -> search -> media -> monitor. A stage failure is logged
// and the remaining stages still run; only an unresolvable channel aborts
// the whole sequence.
func (s *Scraper) ProcessChannel(ctx context.Context, handle string, opts Options) *ChannelResult {
	username := normalizeHandle(handle)
	result := &ChannelResult{Channel: username}

	s.logger.WithField("channel", username).Info("processing channel")

	info, err := s.Info(ctx, handle)
	if err != nil {
		s.logger.WithError(err).WithField("channel", username).Warn("skipping channel due to errors")
		result.Failed = true
		return result
	}
	result.Info = info
	ui.PrintInfo("Channel", fmt.Sprintf("%s (@%s)", info.Title, info.Username))

	if opts.Messages && ctx.Err() == nil {
		records, err := s.FetchMessages(ctx, handle, opts.MessageLimit)
		if err != nil {
			s.logger.WithError(err).WithField("channel", username).Error("message scrape failed")
		}
		result.Messages = records
		s.exportRecords(username+"_messages", records)
	}

	if opts.SearchQuery != "" && ctx.Err() == nil {
		hits, err := s.SearchMessages(ctx, handle, opts.SearchQuery, opts.SearchLimit)
		if err != nil {
			s.logger.WithError(err).WithField("channel", username).Error("message search failed")
		}
		result.SearchHits = hits
		prefix := fmt.Sprintf("%s_search_%s", username, storage.SanitizeHandle(opts.SearchQuery))
		s.exportRecords(prefix, hits)
	}

	if opts.DownloadMedia && ctx.Err() == nil {
		downloaded, skipped, err := s.DownloadMedia(ctx, handle, opts.MediaLimit)
		if err != nil {
			s.logger.WithError(err).WithField("channel", username).Error("media download failed")
		}
		result.Downloaded = downloaded
		result.Skipped = skipped
	}

	if opts.MonitorDuration > 0 && ctx.Err() == nil {
		if err := s.Monitor(ctx, handle, opts.MonitorDuration); err != nil {
			s.logger.WithError(err).WithField("channel", username).Error("monitoring failed")
		}
	}

	return result
}

// Run executes the whole pipeline: read the channel list, export the
// aggregate channel info table, then process each channel in detail.
// Channels are processed strictly serially to respect rate limits.
func (s *Scraper) Run(ctx context.Context) error {
	handles, err := channels.Read(s.config.Output.ChannelList, s.logger)
	if err != nil {
		return err
	}
	if len(handles) == 0 {
		return nil
	}

	opts := OptionsFromConfig(&s.config.Scrape)

	// aggregate info pass: one row per resolvable channel
	var infoRows [][]string
	infos := make(map[string]*models.ChannelInfo, len(handles))
	for _, handle := range handles {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		info, err := s.Info(ctx, handle)
		if err != nil {
			s.logger.WithError(err).WithField("channel", normalizeHandle(handle)).Error("failed to get channel info")
			continue
		}
		infos[normalizeHandle(handle)] = info
		infoRows = append(infoRows, info.Row())
	}

	if _, err := s.exporter.Write(export.Batch{
		Prefix: "all_channels_info",
		Header: models.ChannelInfoHeader(),
		Rows:   infoRows,
	}); err != nil {
		s.logger.WithError(err).Error("failed to export channel info table")
	}

	// detail pass
	for _, handle := range handles {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if _, ok := infos[normalizeHandle(handle)]; !ok {
			// already logged during the info pass; no info means the
			// channel is unusable for this run
			continue
		}
		s.ProcessChannel(ctx, handle, opts)
	}

	return nil
}

// exportRecords writes one per-channel artifact; empty collections produce
// no file
func (s *Scraper) exportRecords(prefix string, records []models.MessageRecord) {
	if len(records) == 0 {
		return
	}

	rows := make([][]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, r.Row())
	}

	if _, err := s.exporter.Write(export.Batch{
		Prefix: prefix,
		Header: models.MessageHeader(),
		Rows:   rows,
	}); err != nil {
		s.logger.WithError(err).WithField("prefix", prefix).Error("failed to export records")
	}
}
