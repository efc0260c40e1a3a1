package telegram

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/gotd/td/session"
	tgclient "github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/auth"
	"github.com/gotd/td/telegram/downloader"
	"github.com/gotd/td/tg"
	"github.com/gotd/td/tgerr"

	errs "tgscraper/pkg/errors"
	"tgscraper/pkg/logger"
)

// Options configures the gotd-backed client.
type Options struct {
	APIID      int
	APIHash    string
	Phone      string
	SessionDir string
	Logger     logger.Logger
}

// gotdClient implements Client on top of gotd/td. It keeps a cache of user
// entities seen in history and search pages so sender lookups do not need
// extra round trips, and a registry of live-monitor callbacks keyed by
// channel id.
type gotdClient struct {
	api *tg.Client
	dl  *downloader.Downloader
	log logger.Logger

	self *User

	mu       sync.Mutex
	users    map[int64]*User
	handlers map[int64]func(Message)
}

// Run connects to Telegram, authenticates the session if needed, and calls
// fn with a ready Client. The connection is torn down when fn returns; the
// session file keeps authentication across runs.
func Run(ctx context.Context, opts Options, fn func(ctx context.Context, c Client) error) error {
	log := opts.Logger
	if log == nil {
		log = logger.GetLogger()
	}

	sessionPath, err := SessionPath(opts.SessionDir)
	if err != nil {
		return err
	}

	c := &gotdClient{
		log:      log,
		users:    make(map[int64]*User),
		handlers: make(map[int64]func(Message)),
	}

	dispatcher := tg.NewUpdateDispatcher()
	dispatcher.OnNewChannelMessage(c.handleChannelMessage)

	client := tgclient.NewClient(opts.APIID, opts.APIHash, tgclient.Options{
		SessionStorage: &session.FileStorage{Path: sessionPath},
		UpdateHandler:  dispatcher,
	})

	return client.Run(ctx, func(ctx context.Context) error {
		flow := auth.NewFlow(terminalAuth{phone: opts.Phone}, auth.SendCodeOptions{})
		if err := client.Auth().IfNecessary(ctx, flow); err != nil {
			return &errs.Error{Type: errs.ErrorTypeAuth, Message: fmt.Sprintf("sign-in failed: %v", err)}
		}

		me, err := client.Self(ctx)
		if err != nil {
			return &errs.Error{Type: errs.ErrorTypeAuth, Message: fmt.Sprintf("failed to load own account: %v", err)}
		}
		c.self = &User{
			ID:        me.ID,
			FirstName: me.FirstName,
			LastName:  me.LastName,
			Username:  me.Username,
		}
		log.InfoWithFields("successfully connected", map[string]interface{}{
			"account": c.self.DisplayName(),
		})

		c.api = client.API()
		c.dl = downloader.NewDownloader()

		return fn(ctx, c)
	})
}

func (c *gotdClient) Self() *User {
	return c.self
}

// ResolveChannel resolves a channel username to an entity
func (c *gotdClient) ResolveChannel(ctx context.Context, username string) (*Entity, error) {
	username = strings.TrimPrefix(username, "@")

	peer, err := c.api.ContactsResolveUsername(ctx, username)
	if err != nil {
		return nil, classify(err)
	}
	c.cacheUsers(peer.Users)

	for _, chat := range peer.Chats {
		if ch, ok := chat.(*tg.Channel); ok {
			return &Entity{
				ID:         ch.ID,
				AccessHash: ch.AccessHash,
				Title:      ch.Title,
				Username:   ch.Username,
			}, nil
		}
	}

	return nil, errs.NotFound(fmt.Sprintf("@%s is not a channel", username))
}

// ChannelFull fetches extended channel details
func (c *gotdClient) ChannelFull(ctx context.Context, ent *Entity) (*ChannelFull, error) {
	full, err := c.api.ChannelsGetFullChannel(ctx, &tg.InputChannel{
		ChannelID:  ent.ID,
		AccessHash: ent.AccessHash,
	})
	if err != nil {
		return nil, classify(err)
	}

	cf, ok := full.FullChat.(*tg.ChannelFull)
	if !ok {
		return nil, errs.NotFound(fmt.Sprintf("no full channel info for @%s", ent.Username))
	}

	out := &ChannelFull{
		About:             cf.About,
		ParticipantsCount: cf.ParticipantsCount,
	}
	if linked, ok := cf.GetLinkedChatID(); ok {
		out.LinkedChatID = linked
	}
	return out, nil
}

// History returns one page of channel history
func (c *gotdClient) History(ctx context.Context, ent *Entity, offsetID, limit int) ([]Message, error) {
	res, err := c.api.MessagesGetHistory(ctx, &tg.MessagesGetHistoryRequest{
		Peer:     inputPeer(ent),
		OffsetID: offsetID,
		Limit:    limit,
	})
	if err != nil {
		return nil, classify(err)
	}
	return c.collectMessages(res), nil
}

// Search returns one page of server-side search results
func (c *gotdClient) Search(ctx context.Context, ent *Entity, query string, offsetID, limit int) ([]Message, error) {
	res, err := c.api.MessagesSearch(ctx, &tg.MessagesSearchRequest{
		Peer:     inputPeer(ent),
		Q:        query,
		Filter:   &tg.InputMessagesFilterEmpty{},
		OffsetID: offsetID,
		Limit:    limit,
	})
	if err != nil {
		return nil, classify(err)
	}
	return c.collectMessages(res), nil
}

// ResolveUser answers sender lookups from the entity cache
func (c *gotdClient) ResolveUser(_ context.Context, id int64) (*User, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if u, ok := c.users[id]; ok {
		return u, nil
	}
	return nil, errs.NotFound(fmt.Sprintf("user %d not seen in any fetched page", id))
}

// DownloadMedia stores the attachment of msg under basePath plus an
// extension derived from the attachment
func (c *gotdClient) DownloadMedia(ctx context.Context, msg *Message, basePath string) (string, error) {
	loc, ext, err := downloadLocation(msg.media)
	if err != nil {
		return "", err
	}

	path := basePath + "." + ext
	if _, err := c.dl.Download(c.api, loc).ToPath(ctx, path); err != nil {
		return "", classify(err)
	}
	return path, nil
}

// OnNewMessage registers a live-monitor callback for a channel
func (c *gotdClient) OnNewMessage(channelID int64, handler func(Message)) func() {
	c.mu.Lock()
	c.handlers[channelID] = handler
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.handlers, channelID)
		c.mu.Unlock()
	}
}

// handleChannelMessage routes push updates to the registered monitor
// callback, if any
func (c *gotdClient) handleChannelMessage(_ context.Context, e tg.Entities, u *tg.UpdateNewChannelMessage) error {
	msg, ok := u.Message.(*tg.Message)
	if !ok {
		return nil
	}
	ch, ok := msg.PeerID.(*tg.PeerChannel)
	if !ok {
		return nil
	}

	c.mu.Lock()
	for _, user := range e.Users {
		c.users[user.ID] = &User{
			ID:        user.ID,
			FirstName: user.FirstName,
			LastName:  user.LastName,
			Username:  user.Username,
		}
	}
	handler := c.handlers[ch.ChannelID]
	c.mu.Unlock()

	if handler != nil {
		handler(convertMessage(msg))
	}
	return nil
}

// collectMessages flattens a history/search response into Messages and feeds
// the user cache from the page entities
func (c *gotdClient) collectMessages(res tg.MessagesMessagesClass) []Message {
	var (
		raw   []tg.MessageClass
		users []tg.UserClass
	)

	switch v := res.(type) {
	case *tg.MessagesMessages:
		raw, users = v.Messages, v.Users
	case *tg.MessagesMessagesSlice:
		raw, users = v.Messages, v.Users
	case *tg.MessagesChannelMessages:
		raw, users = v.Messages, v.Users
	default:
		return nil
	}

	c.cacheUsers(users)

	out := make([]Message, 0, len(raw))
	for _, m := range raw {
		msg, ok := m.(*tg.Message)
		if !ok {
			// service and empty messages carry no exportable content
			continue
		}
		out = append(out, convertMessage(msg))
	}
	return out
}

func (c *gotdClient) cacheUsers(users []tg.UserClass) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, u := range users {
		user, ok := u.(*tg.User)
		if !ok {
			continue
		}
		c.users[user.ID] = &User{
			ID:        user.ID,
			FirstName: user.FirstName,
			LastName:  user.LastName,
			Username:  user.Username,
		}
	}
}

// convertMessage maps the native response shape to the flat Message record,
// with explicit defaults for every optional field
func convertMessage(msg *tg.Message) Message {
	m := Message{
		ID:   msg.ID,
		Date: time.Unix(int64(msg.Date), 0).UTC(),
		Text: msg.Message,
	}

	if views, ok := msg.GetViews(); ok {
		m.Views = views
	}
	if forwards, ok := msg.GetForwards(); ok {
		m.Forwards = forwards
	}
	if replies, ok := msg.GetReplies(); ok {
		m.Replies = replies.Replies
	}
	if from, ok := msg.GetFromID(); ok {
		if pu, ok := from.(*tg.PeerUser); ok {
			m.FromID = pu.UserID
		}
	}

	if media, ok := msg.GetMedia(); ok {
		if _, empty := media.(*tg.MessageMediaEmpty); !empty {
			m.HasMedia = true
			m.MediaKind = mediaKind(media)
			m.media = media
		}
	}

	return m
}

func mediaKind(media tg.MessageMediaClass) MediaKind {
	switch media.(type) {
	case *tg.MessageMediaPhoto:
		return MediaPhoto
	case *tg.MessageMediaDocument:
		return MediaDocument
	case *tg.MessageMediaWebPage:
		return MediaWebPage
	case *tg.MessageMediaContact:
		return MediaContact
	case *tg.MessageMediaGeo, *tg.MessageMediaGeoLive, *tg.MessageMediaVenue:
		return MediaGeo
	case *tg.MessageMediaPoll:
		return MediaPoll
	default:
		return MediaOther
	}
}

// downloadLocation extracts a downloadable file location and extension from
// a native media reference. Web pages, polls and the like have no file to
// fetch.
func downloadLocation(media interface{}) (tg.InputFileLocationClass, string, error) {
	switch v := media.(type) {
	case *tg.MessageMediaPhoto:
		photo, ok := v.Photo.(*tg.Photo)
		if !ok {
			return nil, "", errs.NotFound("photo is not accessible")
		}
		thumb := largestThumb(photo.Sizes)
		if thumb == "" {
			return nil, "", errs.NotFound("photo has no downloadable size")
		}
		return &tg.InputPhotoFileLocation{
			ID:            photo.ID,
			AccessHash:    photo.AccessHash,
			FileReference: photo.FileReference,
			ThumbSize:     thumb,
		}, "jpg", nil

	case *tg.MessageMediaDocument:
		doc, ok := v.Document.(*tg.Document)
		if !ok {
			return nil, "", errs.NotFound("document is not accessible")
		}
		return &tg.InputDocumentFileLocation{
			ID:            doc.ID,
			AccessHash:    doc.AccessHash,
			FileReference: doc.FileReference,
		}, documentExt(doc), nil

	default:
		return nil, "", errs.NotFound("message media has no downloadable file")
	}
}

// largestThumb picks the largest photo size type; sizes are ordered smallest
// to largest by the server
func largestThumb(sizes []tg.PhotoSizeClass) string {
	thumb := ""
	for _, s := range sizes {
		switch size := s.(type) {
		case *tg.PhotoSize:
			thumb = size.Type
		case *tg.PhotoSizeProgressive:
			thumb = size.Type
		}
	}
	return thumb
}

// documentExt derives a file extension from the document's filename
// attribute, falling back to its MIME type
func documentExt(doc *tg.Document) string {
	for _, attr := range doc.Attributes {
		if fn, ok := attr.(*tg.DocumentAttributeFilename); ok {
			if i := strings.LastIndex(fn.FileName, "."); i >= 0 && i < len(fn.FileName)-1 {
				return fn.FileName[i+1:]
			}
		}
	}

	switch doc.MimeType {
	case "video/mp4":
		return "mp4"
	case "image/jpeg":
		return "jpg"
	case "image/png":
		return "png"
	case "image/gif":
		return "gif"
	case "image/webp":
		return "webp"
	case "audio/ogg":
		return "ogg"
	case "audio/mpeg":
		return "mp3"
	case "application/pdf":
		return "pdf"
	default:
		return "bin"
	}
}

// classify maps transport errors onto the tool's error taxonomy
func classify(err error) error {
	if wait, ok := tgerr.AsFloodWait(err); ok {
		return errs.FloodWait(wait)
	}

	if tgerr.Is(err,
		"USERNAME_NOT_OCCUPIED",
		"USERNAME_INVALID",
		"CHANNEL_INVALID",
		"CHANNEL_PRIVATE",
		"PEER_ID_INVALID",
	) {
		return errs.NotFound(err.Error())
	}

	if tgerr.Is(err,
		"AUTH_KEY_UNREGISTERED",
		"SESSION_REVOKED",
		"SESSION_EXPIRED",
	) {
		return &errs.Error{Type: errs.ErrorTypeAuth, Message: err.Error()}
	}

	var rpcErr *tgerr.Error
	if errors.As(err, &rpcErr) {
		if rpcErr.Code >= 500 {
			return errs.ServerError(err.Error())
		}
		return &errs.Error{Type: errs.ErrorTypeUnknown, Message: err.Error()}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return errs.Timeout(err.Error())
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return errs.Timeout(err.Error())
	}

	return &errs.Error{Type: errs.ErrorTypeUnknown, Message: err.Error()}
}

func inputPeer(ent *Entity) tg.InputPeerClass {
	return &tg.InputPeerChannel{
		ChannelID:  ent.ID,
		AccessHash: ent.AccessHash,
	}
}
