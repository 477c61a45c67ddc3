package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/sefazor/ourphotos-gallery/internal/gallery"
)

const browseHelp = `commands:
  ls             list photos
  open N         open photo N in the lightbox
  next, right    next photo
  prev, left     previous photo
  esc, close     close the lightbox
  help           show this help
  exit, quit     leave`

// Browse loads an event ("-" for standalone uploads) and runs the lightbox
// loop on stdin.
func (a *App) Browse(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: browse <eventId|->", ErrUsage)
	}

	var (
		photos []gallery.Photo
		fetch  gallery.CaptionFetcher
	)
	if args[0] == "-" {
		items, err := a.client.ListUploads(ctx)
		if err != nil {
			return err
		}
		for _, it := range items {
			photos = append(photos, gallery.Photo{Key: it.Key, Desc: it.Desc})
		}
		fetch = a.client.Meta
	} else {
		m, err := a.client.GetEvent(ctx, args[0])
		if err != nil {
			return err
		}
		printlnFn(fmt.Sprintf("%s  %s", m.Date, m.Title))
		for _, p := range m.Photos {
			photos = append(photos, gallery.Photo{Key: eventPhotoKey(m.EventID, p.File), Desc: p.Desc})
		}
		// Event descriptions come with the manifest.
		fetch = func(context.Context, string) (string, error) { return "", nil }
	}

	return a.repl(ctx, gallery.NewController(photos), fetch)
}

func (a *App) repl(ctx context.Context, ctrl *gallery.Controller, fetch gallery.CaptionFetcher) error {
	printlnFn(fmt.Sprintf("%d photos. Type help for commands.", ctrl.Len()))

	for {
		if isTerminal() {
			printFn("> ")
		}
		if !a.in.Scan() {
			return a.in.Err()
		}

		fields := strings.Fields(a.in.Text())
		if len(fields) == 0 {
			continue
		}

		cmd := strings.ToLower(fields[0])
		switch cmd {
		case "exit", "quit":
			return nil
		case "help":
			printlnFn(browseHelp)
			continue
		case "ls":
			listPhotos(ctrl)
			continue
		case "open":
			if len(fields) != 2 {
				printlnFn("usage: open N")
				continue
			}
			n, err := strconv.Atoi(fields[1])
			if err != nil || !ctrl.Open(n-1) {
				printlnFn(fmt.Sprintf("No photo %s.", fields[1]))
				continue
			}
		case "next", "right":
			if !ctrl.HandleKey(gallery.KeyArrowRight) {
				printlnFn("Nothing open.")
				continue
			}
		case "prev", "left":
			if !ctrl.HandleKey(gallery.KeyArrowLeft) {
				printlnFn("Nothing open.")
				continue
			}
		case "esc", "close":
			if ctrl.HandleKey(gallery.KeyEscape) {
				printlnFn("Closed.")
			}
			continue
		default:
			printlnFn("Unknown command:", cmd)
			continue
		}

		a.show(ctx, ctrl, fetch)
	}
}

func (a *App) show(ctx context.Context, ctrl *gallery.Controller, fetch gallery.CaptionFetcher) {
	p, ok := ctrl.Current()
	if !ok {
		return
	}

	printlnFn(fmt.Sprintf("[%d/%d] %s", ctrl.Index()+1, ctrl.Len(), a.client.ImageURL(p.Key)))
	caption, applied, _ := ctrl.LoadCaption(ctx, fetch)
	if applied && caption != "" {
		printlnFn(caption)
	}
}

func listPhotos(ctrl *gallery.Controller) {
	photos := ctrl.Photos()
	if len(photos) == 0 {
		printlnFn("No photos.")
		return
	}
	for i, p := range photos {
		line := fmt.Sprintf("%3d. %s", i+1, p.Key)
		if p.Desc != "" {
			line += "  " + p.Desc
		}
		printlnFn(line)
	}
}
