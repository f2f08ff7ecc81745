// CLAUDE:SUMMARY Notification feed output types: Item, Feed envelope and the not-ready placeholder.
// Package item defines the notification feed returned to callers.
package item

import "slices"

// Item is one notification: a conversation name and the feed icon.
type Item struct {
	Message string `json:"message"`
	Icon    string `json:"icon"`
}

// Feed is the envelope returned to callers, serialised as {"data":[...]}.
// Data is never nil so an empty feed encodes as an empty array.
type Feed struct {
	Data []Item `json:"data"`
}

// Empty returns a feed with no items.
func Empty() Feed {
	return Feed{Data: []Item{}}
}

// NotReady returns the single-item placeholder served while no session is
// established.
func NotReady(message, icon string) Feed {
	return Feed{Data: []Item{{Message: message, Icon: icon}}}
}

// Len returns the number of items.
func (f Feed) Len() int { return len(f.Data) }

// Equal reports whether both feeds hold the same items in the same order.
func (f Feed) Equal(o Feed) bool {
	return slices.Equal(f.Data, o.Data)
}
