// Package gallery is the client side of the photo gallery: a typed API
// client, the lightbox state controller and a sequential batch uploader.
package gallery

import (
	"context"
	"sync"
)

const (
	KeyEscape     = "Escape"
	KeyArrowRight = "ArrowRight"
	KeyArrowLeft  = "ArrowLeft"
)

// Photo is one tile of the grid. Desc doubles as the caption cache.
type Photo struct {
	Key  string
	Desc string
}

// CaptionFetcher loads the description of a photo key.
type CaptionFetcher func(ctx context.Context, key string) (string, error)

// Controller owns the photo list and the lightbox state, closed or
// open(index). It is safe for concurrent use; caption loads may run on
// their own goroutines.
type Controller struct {
	mu      sync.Mutex
	photos  []Photo
	index   int // -1 while closed
	caption string
	seq     uint64
}

func NewController(photos []Photo) *Controller {
	c := &Controller{index: -1}
	c.SetPhotos(photos)
	return c
}

// SetPhotos replaces the grid and closes the lightbox.
func (c *Controller) SetPhotos(photos []Photo) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.photos = append([]Photo(nil), photos...)
	c.closeLocked()
}

func (c *Controller) Photos() []Photo {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Photo(nil), c.photos...)
}

func (c *Controller) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.photos)
}

// Open shows photo i. Out of range indexes are ignored.
func (c *Controller) Open(i int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if i < 0 || i >= len(c.photos) {
		return false
	}
	c.showLocked(i)
	return true
}

func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked()
}

// Next moves to the following photo, wrapping at the end. It does nothing
// while closed.
func (c *Controller) Next() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.index < 0 || len(c.photos) == 0 {
		return
	}
	c.showLocked((c.index + 1) % len(c.photos))
}

func (c *Controller) Prev() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.index < 0 || len(c.photos) == 0 {
		return
	}
	n := len(c.photos)
	c.showLocked((c.index - 1 + n) % n)
}

// HandleKey applies a keyboard event and reports whether it was consumed.
// Keys are ignored while the lightbox is closed.
func (c *Controller) HandleKey(key string) bool {
	if !c.IsOpen() {
		return false
	}

	switch key {
	case KeyEscape:
		c.Close()
	case KeyArrowRight:
		c.Next()
	case KeyArrowLeft:
		c.Prev()
	default:
		return false
	}
	return true
}

func (c *Controller) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.index >= 0
}

// ScrollLocked reports whether page scrolling is suppressed.
func (c *Controller) ScrollLocked() bool { return c.IsOpen() }

// Index returns the open photo index, or -1.
func (c *Controller) Index() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.index
}

func (c *Controller) Current() (Photo, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.index < 0 {
		return Photo{}, false
	}
	return c.photos[c.index], true
}

func (c *Controller) Caption() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.caption
}

// LoadCaption fetches the caption of the open photo. A result that arrives
// after a newer navigation or load is dropped and reported with applied
// false. Captions already known are reused without calling fetch.
func (c *Controller) LoadCaption(ctx context.Context, fetch CaptionFetcher) (caption string, applied bool, err error) {
	c.mu.Lock()
	if c.index < 0 {
		c.mu.Unlock()
		return "", false, nil
	}
	c.seq++
	req := c.seq
	idx := c.index
	photo := c.photos[idx]
	if photo.Desc != "" {
		c.caption = photo.Desc
		c.mu.Unlock()
		return photo.Desc, true, nil
	}
	c.mu.Unlock()

	desc, err := fetch(ctx, photo.Key)
	if err != nil {
		desc = ""
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if req != c.seq {
		return "", false, err
	}
	c.photos[idx].Desc = desc
	c.caption = desc
	return desc, true, err
}

func (c *Controller) showLocked(i int) {
	c.index = i
	c.caption = ""
	c.seq++
}

func (c *Controller) closeLocked() {
	c.index = -1
	c.caption = ""
	c.seq++
}
