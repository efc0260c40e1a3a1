// Package telegram is the boundary to the remote capability. The Client
// interface is everything the scraping engine knows about Telegram; the gotd
// adapter in this package is the only code that touches MTProto types.
package telegram

import (
	"context"
	"time"
)

// Entity is the resolved, opaque handle for a channel. It is obtained once
// per run from a human-readable username and threaded through every call
// that touches the channel.
type Entity struct {
	ID         int64
	AccessHash int64
	Title      string
	Username   string
}

// User identifies a message sender.
type User struct {
	ID        int64
	FirstName string
	LastName  string
	Username  string
}

// DisplayName renders the human-readable name of the user.
func (u *User) DisplayName() string {
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

// MediaKind tags the attachment type of a message.
type MediaKind string

const (
	MediaPhoto    MediaKind = "photo"
	MediaDocument MediaKind = "document"
	MediaWebPage  MediaKind = "webpage"
	MediaContact  MediaKind = "contact"
	MediaGeo      MediaKind = "geo"
	MediaPoll     MediaKind = "poll"
	MediaOther    MediaKind = "other"
)

// Message is the flat, adapter-independent view of a channel message.
// Optional counters default to zero when the server omits them.
type Message struct {
	ID        int
	Date      time.Time
	Text      string
	Views     int
	Forwards  int
	Replies   int
	HasMedia  bool
	MediaKind MediaKind
	// FromID is the sender's user id, or 0 for anonymous channel posts
	FromID int64

	// media holds the adapter's native attachment reference; only the
	// adapter that produced the message can download it
	media interface{}
}

// ChannelFull carries the best-effort extended channel details. Zero values
// mean the server did not expose the field.
type ChannelFull struct {
	About             string
	ParticipantsCount int
	LinkedChatID      int64
}

// Client is the remote capability consumed by the scraping engine. All calls
// are blocking and honor context cancellation; rate limiting and retries are
// layered on top by the caller.
type Client interface {
	// ResolveChannel resolves a channel username to an entity. Returns a
	// not_found error for unknown or invalid usernames.
	ResolveChannel(ctx context.Context, username string) (*Entity, error)

	// ChannelFull fetches extended channel details for an entity.
	ChannelFull(ctx context.Context, ent *Entity) (*ChannelFull, error)

	// History returns up to limit messages older than offsetID (0 means
	// newest), in the platform-native reverse-chronological order.
	History(ctx context.Context, ent *Entity, offsetID, limit int) ([]Message, error)

	// Search returns up to limit messages matching query, older than
	// offsetID, in reverse-chronological order.
	Search(ctx context.Context, ent *Entity, query string, offsetID, limit int) ([]Message, error)

	// ResolveUser looks up a sender seen in previously fetched pages.
	// Returns a not_found error when the user is not known.
	ResolveUser(ctx context.Context, id int64) (*User, error)

	// DownloadMedia stores the attachment of msg under basePath (without
	// extension) and returns the final path including the extension chosen
	// from the media kind.
	DownloadMedia(ctx context.Context, msg *Message, basePath string) (string, error)

	// OnNewMessage registers a callback for new messages in the given
	// channel and returns a function that deregisters it. Events delivered
	// after deregistration are dropped.
	OnNewMessage(channelID int64, handler func(Message)) (remove func())

	// Self returns the authenticated account, once connected.
	Self() *User
}
