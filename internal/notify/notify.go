// Package notify holds the transient messages a wizard session shows its
// user. Posting never blocks and never fails; when the feed is full the
// oldest notice is dropped.
package notify

import "sync"

type Variant string

const (
	VariantDefault     Variant = "default"
	VariantDestructive Variant = "destructive"
)

type Notice struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Variant     Variant `json:"variant"`
}

func Info(title, description string) Notice {
	return Notice{Title: title, Description: description, Variant: VariantDefault}
}

func Error(title, description string) Notice {
	return Notice{Title: title, Description: description, Variant: VariantDestructive}
}

// Notifier is the posting side of a feed.
type Notifier interface {
	Post(n Notice)
}

const DefaultCapacity = 16

// Feed is a bounded FIFO of notices drained into each response.
type Feed struct {
	mu       sync.Mutex
	items    []Notice
	capacity int
}

func NewFeed(capacity int) *Feed {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Feed{capacity: capacity}
}

func (f *Feed) Post(n Notice) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.items) == f.capacity {
		f.items = f.items[1:]
	}
	f.items = append(f.items, n)
}

// Drain returns pending notices oldest first and empties the feed. It never
// returns nil so responses always carry an array.
func (f *Feed) Drain() []Notice {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := f.items
	f.items = nil
	if out == nil {
		return []Notice{}
	}
	return out
}

func (f *Feed) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.items)
}
