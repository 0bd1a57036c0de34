package source

import (
	"time"
)

// Handle identifies a resolved source. ID is stable across runs for the same
// identifier, so ledger rows keyed by it survive restarts.
type Handle struct {
	ID         int64
	Title      string
	Identifier string
}

// Media describes the downloadable attachment of an item.
type Media struct {
	Name string
	Ext  string
	Size int64
	URL  string
}

// Item is one remote message/post. Media is nil when the item carries nothing
// downloadable.
type Item struct {
	ID             int64
	ChannelID      int64
	SentAt         time.Time
	SenderID       *int64
	SenderUsername string
	Media          *Media
}
