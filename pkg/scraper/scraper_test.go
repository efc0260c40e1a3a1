package scraper

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tgscraper/pkg/config"
	errs "tgscraper/pkg/errors"
	"tgscraper/pkg/logger"
	"tgscraper/pkg/telegram"
)

// fakeClient implements telegram.Client against in-memory fixtures.
type fakeClient struct {
	channels map[string]*telegram.Entity
	fulls    map[int64]*telegram.ChannelFull
	messages map[int64][]telegram.Message // newest first
	users    map[int64]*telegram.User

	failDownloads map[int]bool
	downloadCalls int

	handlers      map[int64]func(telegram.Message)
	removedCount  int
	historyErr    error
	historyErrors int
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		channels:      make(map[string]*telegram.Entity),
		fulls:         make(map[int64]*telegram.ChannelFull),
		messages:      make(map[int64][]telegram.Message),
		users:         make(map[int64]*telegram.User),
		failDownloads: make(map[int]bool),
		handlers:      make(map[int64]func(telegram.Message)),
	}
}

func (f *fakeClient) addChannel(username string, id int64, count int, fromID int64) {
	f.channels[username] = &telegram.Entity{
		ID:       id,
		Title:    "Channel " + username,
		Username: username,
	}
	msgs := make([]telegram.Message, 0, count)
	for i := count; i >= 1; i-- {
		msgs = append(msgs, telegram.Message{
			ID:     i,
			Date:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(i) * time.Minute),
			Text:   fmt.Sprintf("message %d", i),
			FromID: fromID,
		})
	}
	f.messages[id] = msgs
}

func (f *fakeClient) ResolveChannel(ctx context.Context, username string) (*telegram.Entity, error) {
	ent, ok := f.channels[username]
	if !ok {
		return nil, errs.NotFound("no user has " + username + " as username")
	}
	return ent, nil
}

func (f *fakeClient) ChannelFull(ctx context.Context, ent *telegram.Entity) (*telegram.ChannelFull, error) {
	full, ok := f.fulls[ent.ID]
	if !ok {
		return nil, errs.ServerError("full channel unavailable")
	}
	return full, nil
}

func (f *fakeClient) History(ctx context.Context, ent *telegram.Entity, offsetID, limit int) ([]telegram.Message, error) {
	if f.historyErrors > 0 {
		f.historyErrors--
		return nil, f.historyErr
	}

	var page []telegram.Message
	for _, msg := range f.messages[ent.ID] {
		if offsetID > 0 && msg.ID >= offsetID {
			continue
		}
		page = append(page, msg)
		if len(page) == limit {
			break
		}
	}
	return page, nil
}

func (f *fakeClient) Search(ctx context.Context, ent *telegram.Entity, query string, offsetID, limit int) ([]telegram.Message, error) {
	var page []telegram.Message
	for _, msg := range f.messages[ent.ID] {
		if offsetID > 0 && msg.ID >= offsetID {
			continue
		}
		if !strings.Contains(msg.Text, query) {
			continue
		}
		page = append(page, msg)
		if len(page) == limit {
			break
		}
	}
	return page, nil
}

func (f *fakeClient) ResolveUser(ctx context.Context, id int64) (*telegram.User, error) {
	user, ok := f.users[id]
	if !ok {
		return nil, errs.NotFound("unknown user")
	}
	return user, nil
}

func (f *fakeClient) DownloadMedia(ctx context.Context, msg *telegram.Message, basePath string) (string, error) {
	f.downloadCalls++
	if f.failDownloads[msg.ID] {
		return "", errs.ServerError("download failed")
	}
	path := basePath + ".jpg"
	if err := os.WriteFile(path, []byte("media"), 0644); err != nil {
		return "", err
	}
	return path, nil
}

func (f *fakeClient) OnNewMessage(channelID int64, handler func(telegram.Message)) func() {
	f.handlers[channelID] = handler
	return func() {
		delete(f.handlers, channelID)
		f.removedCount++
	}
}

func (f *fakeClient) Self() *telegram.User {
	return &telegram.User{ID: 1, FirstName: "Test", Username: "tester"}
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.RateLimit.BaseDelay = time.Millisecond
	cfg.RateLimit.PolitenessDelay = 0
	cfg.Output.Directory = filepath.Join(t.TempDir(), "output")
	cfg.Output.DownloadsDir = filepath.Join(t.TempDir(), "downloads")
	cfg.Output.ChannelList = filepath.Join(t.TempDir(), "list.txt")
	cfg.Logging.Level = "error"
	cfg.Logging.File = ""
	return cfg
}

func testScraper(t *testing.T, client telegram.Client, cfg *config.Config) *Scraper {
	t.Helper()
	log, err := logger.New(&cfg.Logging)
	require.NoError(t, err)

	s, err := New(client, cfg, log)
	require.NoError(t, err)
	return s
}

func TestFetchMessagesPagination(t *testing.T) {
	client := newFakeClient()
	client.addChannel("alpha", 100, 250, 0)
	s := testScraper(t, client, testConfig(t))

	records, err := s.FetchMessages(context.Background(), "@alpha", 120)
	require.NoError(t, err)
	require.Len(t, records, 120)

	// newest first, strictly descending ids across page boundaries
	assert.Equal(t, 250, records[0].ID)
	assert.Equal(t, 131, records[119].ID)
	for i := 1; i < len(records); i++ {
		assert.Less(t, records[i].ID, records[i-1].ID)
	}
	for _, r := range records {
		assert.Equal(t, "alpha", r.Channel)
	}
}

func TestFetchMessagesShortChannel(t *testing.T) {
	client := newFakeClient()
	client.addChannel("tiny", 101, 30, 0)
	s := testScraper(t, client, testConfig(t))

	records, err := s.FetchMessages(context.Background(), "tiny", 1000)
	require.NoError(t, err)
	assert.Len(t, records, 30)
}

func TestFetchMessagesUnresolvableChannel(t *testing.T) {
	client := newFakeClient()
	s := testScraper(t, client, testConfig(t))

	records, err := s.FetchMessages(context.Background(), "ghost", 100)
	assert.NoError(t, err)
	assert.Empty(t, records)
}

func TestFetchMessagesExhaustedRetriesSkips(t *testing.T) {
	client := newFakeClient()
	client.addChannel("flaky", 102, 50, 0)
	client.historyErr = errs.ServerError("internal")
	client.historyErrors = 100

	cfg := testConfig(t)
	cfg.RateLimit.MaxAttempts = 2
	s := testScraper(t, client, cfg)

	records, err := s.FetchMessages(context.Background(), "flaky", 50)
	assert.NoError(t, err)
	assert.Empty(t, records)
}

func TestSenderResolution(t *testing.T) {
	client := newFakeClient()
	client.addChannel("group", 103, 2, 555)
	client.users[555] = &telegram.User{ID: 555, FirstName: "Jane", LastName: "Doe", Username: "jane"}
	s := testScraper(t, client, testConfig(t))

	records, err := s.FetchMessages(context.Background(), "group", 2)
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, int64(555), records[0].Sender.ID)
	assert.Equal(t, "Jane Doe", records[0].Sender.Name)
	assert.Equal(t, "jane", records[0].Sender.Username)
}

func TestSenderResolutionFallsBackToUnknown(t *testing.T) {
	client := newFakeClient()
	client.addChannel("group", 104, 1, 999) // sender never cached
	s := testScraper(t, client, testConfig(t))

	records, err := s.FetchMessages(context.Background(), "group", 1)
	require.NoError(t, err)
	require.Len(t, records, 1)

	assert.Equal(t, int64(999), records[0].Sender.ID)
	assert.Equal(t, "Unknown", records[0].Sender.Name)
	assert.Equal(t, "Unknown", records[0].Sender.Username)
}

func TestAnonymousPostsKeepEmptySender(t *testing.T) {
	client := newFakeClient()
	client.addChannel("broadcast", 105, 1, 0)
	s := testScraper(t, client, testConfig(t))

	records, err := s.FetchMessages(context.Background(), "broadcast", 1)
	require.NoError(t, err)
	require.Len(t, records, 1)

	assert.Zero(t, records[0].Sender.ID)
	assert.Empty(t, records[0].Sender.Name)
}

func TestSearchMessages(t *testing.T) {
	client := newFakeClient()
	client.addChannel("alpha", 106, 25, 0)
	s := testScraper(t, client, testConfig(t))

	// "message 2" matches 2 and 20..25
	records, err := s.SearchMessages(context.Background(), "alpha", "message 2", 100)
	require.NoError(t, err)
	assert.Len(t, records, 7)
	for _, r := range records {
		assert.Contains(t, r.Text, "message 2")
	}
}

func TestDownloadMediaCounters(t *testing.T) {
	client := newFakeClient()
	client.addChannel("media", 107, 5, 0)
	// three of five messages carry media, one of them fails to download
	msgs := client.messages[107]
	for i := range msgs {
		if msgs[i].ID%2 == 1 {
			msgs[i].HasMedia = true
			msgs[i].MediaKind = telegram.MediaPhoto
		}
	}
	client.failDownloads[3] = true

	cfg := testConfig(t)
	s := testScraper(t, client, cfg)

	downloaded, skipped, err := s.DownloadMedia(context.Background(), "media", 5)
	require.NoError(t, err)
	assert.Equal(t, 2, downloaded)
	assert.Equal(t, 1, skipped)
	// two clean downloads plus the transient failure, which is retried
	// up to the attempt ceiling before counting as skipped
	assert.Equal(t, 2+cfg.RateLimit.MaxAttempts, client.downloadCalls)

	// files land in the channel subfolder
	entries, err := os.ReadDir(filepath.Join(cfg.Output.DownloadsDir, "media"))
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestDownloadMediaSkipsExistingFiles(t *testing.T) {
	client := newFakeClient()
	client.addChannel("media", 108, 2, 0)
	msgs := client.messages[108]
	for i := range msgs {
		msgs[i].HasMedia = true
		msgs[i].MediaKind = telegram.MediaPhoto
	}

	cfg := testConfig(t)

	// simulate an earlier run having fetched message 2
	dir := filepath.Join(cfg.Output.DownloadsDir, "media")
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "20240101_000200_2.jpg"), []byte("x"), 0644))

	s := testScraper(t, client, cfg)

	downloaded, _, err := s.DownloadMedia(context.Background(), "media", 2)
	require.NoError(t, err)
	assert.Equal(t, 1, downloaded)
	assert.Equal(t, 1, client.downloadCalls)
}

func TestMonitorRegistersAndRemovesHandler(t *testing.T) {
	client := newFakeClient()
	client.addChannel("live", 109, 1, 0)
	s := testScraper(t, client, testConfig(t))

	err := s.Monitor(context.Background(), "live", 20*time.Millisecond)
	require.NoError(t, err)

	assert.Empty(t, client.handlers, "handler must be deregistered after the window")
	assert.Equal(t, 1, client.removedCount)
}

func TestProcessChannelStages(t *testing.T) {
	client := newFakeClient()
	client.addChannel("alpha", 110, 40, 0)
	client.fulls[110] = &telegram.ChannelFull{About: "about alpha", ParticipantsCount: 900}

	cfg := testConfig(t)
	s := testScraper(t, client, cfg)

	result := s.ProcessChannel(context.Background(), "alpha", Options{
		Messages:     true,
		MessageLimit: 25,
	})

	require.NotNil(t, result.Info)
	assert.False(t, result.Failed)
	assert.Equal(t, "about alpha", result.Info.About)
	assert.Equal(t, 900, result.Info.ParticipantsCount)
	assert.Len(t, result.Messages, 25)

	entries, err := os.ReadDir(cfg.Output.Directory)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, strings.HasPrefix(entries[0].Name(), "alpha_messages_"))
}

func TestProcessChannelUnresolvable(t *testing.T) {
	client := newFakeClient()
	s := testScraper(t, client, testConfig(t))

	result := s.ProcessChannel(context.Background(), "ghost", Options{Messages: true, MessageLimit: 10})
	assert.True(t, result.Failed)
	assert.Nil(t, result.Info)
}

func TestRunEndToEnd(t *testing.T) {
	client := newFakeClient()
	client.addChannel("alpha", 111, 50, 0)
	client.fulls[111] = &telegram.ChannelFull{About: "alpha about"}

	cfg := testConfig(t)
	cfg.Scrape.MessageLimit = 50
	require.NoError(t, os.WriteFile(cfg.Output.ChannelList, []byte("# channels\n@alpha\nbeta\n"), 0644))

	s := testScraper(t, client, cfg)
	require.NoError(t, s.Run(context.Background()))

	entries, err := os.ReadDir(cfg.Output.Directory)
	require.NoError(t, err)

	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	require.Len(t, names, 2, "expected info table and alpha messages, got %v", names)

	var infoFile, messagesFile string
	for _, name := range names {
		switch {
		case strings.HasPrefix(name, "all_channels_info_"):
			infoFile = name
		case strings.HasPrefix(name, "alpha_messages_"):
			messagesFile = name
		}
	}
	require.NotEmpty(t, infoFile)
	require.NotEmpty(t, messagesFile)

	// unresolvable beta contributes no info row
	infoData, err := os.ReadFile(filepath.Join(cfg.Output.Directory, infoFile))
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(string(infoData), "\n"), "header plus one channel row")

	messagesData, err := os.ReadFile(filepath.Join(cfg.Output.Directory, messagesFile))
	require.NoError(t, err)
	assert.Equal(t, 51, strings.Count(string(messagesData), "\n"), "header plus 50 message rows")
}

func TestRunMissingChannelList(t *testing.T) {
	client := newFakeClient()
	cfg := testConfig(t)
	s := testScraper(t, client, cfg)

	err := s.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, errs.ErrorTypeConfig, errs.TypeOf(err))
}
