// Package models holds the flat records produced by scraping and consumed by
// the export layer. Records are immutable after creation; optional fields
// have explicit defaults so every row renders the same column set.
package models

import (
	"strconv"
	"time"

	"tgscraper/pkg/telegram"
)

// UnknownSender is substituted when a message sender cannot be resolved.
const UnknownSender = "Unknown"

const timeLayout = "2006-01-02 15:04:05"

// SenderInfo is the optional sender sub-record of a message.
type SenderInfo struct {
	ID       int64
	Name     string
	Username string
}

// MessageRecord is one exported message row. Channel always matches the
// handle the message was fetched under.
type MessageRecord struct {
	ID        int
	Date      time.Time
	Text      string
	Views     int
	Forwards  int
	Replies   int
	HasMedia  bool
	MediaType string
	Channel   string
	Sender    SenderInfo
}

// NewMessageRecord maps a fetched message onto a flat record for the given
// channel. Sender stays zero-valued; the fetcher fills it in separately.
func NewMessageRecord(msg telegram.Message, channel string) MessageRecord {
	return MessageRecord{
		ID:        msg.ID,
		Date:      msg.Date,
		Text:      msg.Text,
		Views:     msg.Views,
		Forwards:  msg.Forwards,
		Replies:   msg.Replies,
		HasMedia:  msg.HasMedia,
		MediaType: string(msg.MediaKind),
		Channel:   channel,
	}
}

// MessageHeader returns the column names of a message artifact.
func MessageHeader() []string {
	return []string{
		"id", "date", "text", "views", "forwards", "replies",
		"has_media", "media_type", "channel",
		"sender_id", "sender_name", "sender_username",
	}
}

// Row renders the record as one artifact row, in header order.
func (r MessageRecord) Row() []string {
	senderID := ""
	if r.Sender.ID != 0 {
		senderID = strconv.FormatInt(r.Sender.ID, 10)
	}
	return []string{
		strconv.Itoa(r.ID),
		r.Date.Format(timeLayout),
		r.Text,
		strconv.Itoa(r.Views),
		strconv.Itoa(r.Forwards),
		strconv.Itoa(r.Replies),
		strconv.FormatBool(r.HasMedia),
		r.MediaType,
		r.Channel,
		senderID,
		r.Sender.Name,
		r.Sender.Username,
	}
}

// ChannelInfo is the per-channel metadata row, one per channel per run.
// ParticipantsCount and LinkedChatID stay zero when the server does not
// expose them and render as empty cells.
type ChannelInfo struct {
	ID                int64
	Title             string
	Username          string
	About             string
	ParticipantsCount int
	LinkedChatID      int64
	LastChecked       time.Time
}

// ChannelInfoHeader returns the column names of the channel info artifact.
func ChannelInfoHeader() []string {
	return []string{
		"id", "title", "username", "about",
		"participants_count", "linked_chat_id", "last_checked",
	}
}

// Row renders the channel info as one artifact row, in header order.
func (c ChannelInfo) Row() []string {
	participants := ""
	if c.ParticipantsCount > 0 {
		participants = strconv.Itoa(c.ParticipantsCount)
	}
	linked := ""
	if c.LinkedChatID != 0 {
		linked = strconv.FormatInt(c.LinkedChatID, 10)
	}
	return []string{
		strconv.FormatInt(c.ID, 10),
		c.Title,
		c.Username,
		c.About,
		participants,
		linked,
		c.LastChecked.Format(timeLayout),
	}
}
