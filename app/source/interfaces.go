package source

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Resolve for an unknown or inaccessible identifier.
var ErrNotFound = errors.New("source not found")

// Client is the transport boundary of the pipeline. The scanner and the fetch
// executor only ever talk to a source through it.
type Client interface {
	// Resolve maps a human-supplied identifier to a source handle.
	Resolve(ctx context.Context, identifier string) (*Handle, error)

	// EnumerateHistory yields every item of the source, oldest first.
	// Returning an error from fn stops the enumeration.
	EnumerateHistory(ctx context.Context, h Handle, fn func(Item) error) error

	// GetItem re-fetches a single item. A vanished item is (nil, nil):
	// unschedulable right now, not an error.
	GetItem(ctx context.Context, channelID, itemID int64) (*Item, error)

	// FetchMedia writes the item's full media content to destPath. After a
	// reported failure no file is left at destPath.
	FetchMedia(ctx context.Context, item Item, destPath string) error
}
