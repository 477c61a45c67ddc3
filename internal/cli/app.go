// Package cli implements the gallery command line client.
package cli

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/term"

	"github.com/sefazor/ourphotos-gallery/internal/gallery"
	"github.com/sefazor/ourphotos-gallery/internal/models"
)

const DefaultAddr = "http://localhost:8080"

// printlnFn and printFn are test seams for user-facing output.
var (
	printlnFn = fmt.Println
	printFn   = fmt.Print
)

// isTerminal is a test seam for term.IsTerminal on stdin.
var isTerminal = func() bool { return term.IsTerminal(int(os.Stdin.Fd())) }

var ErrUsage = errors.New("usage")

const usage = `usage: gallery [-addr URL] <command> [args]

commands:
  events                                 list events
  show <eventId>                         show an event and its photos
  create -title T -date YYYY-MM-DD [-note N]
  update <eventId> [-title T] [-date D] [-note N]
  delete [-yes] <eventId>                delete an event and all its photos
  sweep <eventId>                        remove photos no manifest entry points to
  upload <eventId|-> [-desc D] files...  upload images ("-" for standalone uploads)
  list                                   list standalone uploads
  browse <eventId|->                     open the lightbox browser`

type App struct {
	client   *gallery.Client
	uploader *gallery.Uploader
	in       *bufio.Scanner
}

func NewApp(addr string, in io.Reader) *App {
	client := gallery.NewClient(addr, nil)
	return &App{
		client:   client,
		uploader: gallery.NewUploader(client),
		in:       bufio.NewScanner(in),
	}
}

// Run parses the global flags from args and executes one command.
func Run(ctx context.Context, args []string, in io.Reader) error {
	fs := flag.NewFlagSet("gallery", flag.ContinueOnError)
	addr := fs.String("addr", envOr("GALLERY_ADDR", DefaultAddr), "gallery server address")
	fs.Usage = func() { printlnFn(usage) }
	if err := fs.Parse(args); err != nil {
		return ErrUsage
	}

	return NewApp(*addr, in).Exec(ctx, fs.Args())
}

func (a *App) Exec(ctx context.Context, args []string) error {
	if len(args) == 0 {
		printlnFn(usage)
		return ErrUsage
	}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "events":
		return a.Events(ctx)
	case "show":
		return a.Show(ctx, rest)
	case "create":
		return a.Create(ctx, rest)
	case "update":
		return a.Update(ctx, rest)
	case "delete":
		return a.Delete(ctx, rest)
	case "sweep":
		return a.Sweep(ctx, rest)
	case "upload":
		return a.Upload(ctx, rest)
	case "list":
		return a.List(ctx)
	case "browse":
		return a.Browse(ctx, rest)
	case "help", "-h", "--help":
		printlnFn(usage)
		return nil
	default:
		printlnFn("Unknown command:", cmd)
		printlnFn(usage)
		return ErrUsage
	}
}

func (a *App) Events(ctx context.Context) error {
	events, err := a.client.ListEvents(ctx)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		printlnFn("No events yet.")
		return nil
	}

	var sb strings.Builder
	tw := tabwriter.NewWriter(&sb, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DATE\tTITLE\tPHOTOS\tID")
	for _, e := range events {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", e.Date, e.Title, e.Count, e.EventID)
	}
	_ = tw.Flush()
	printlnFn(strings.TrimRight(sb.String(), "\n"))
	return nil
}

func (a *App) Show(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: show <eventId>", ErrUsage)
	}

	m, err := a.client.GetEvent(ctx, args[0])
	if err != nil {
		return err
	}

	printlnFn(fmt.Sprintf("%s  %s", m.Date, m.Title))
	if m.Note != "" {
		printlnFn(m.Note)
	}
	printlnFn(fmt.Sprintf("%d photos, updated %s", len(m.Photos), m.UpdatedAt))
	for i, p := range m.Photos {
		line := fmt.Sprintf("%3d. %s", i+1, a.client.ImageURL(eventPhotoKey(m.EventID, p.File)))
		if p.File == m.Cover {
			line += "  (cover)"
		}
		if p.Desc != "" {
			line += "  " + p.Desc
		}
		printlnFn(line)
	}
	return nil
}

func (a *App) Create(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("create", flag.ContinueOnError)
	title := fs.String("title", "", "event title")
	date := fs.String("date", "", "event date, YYYY-MM-DD")
	note := fs.String("note", "", "optional note")
	if err := fs.Parse(args); err != nil {
		return ErrUsage
	}

	id, err := a.client.CreateEvent(ctx, models.CreateEventRequest{Title: *title, Date: *date, Note: *note})
	if err != nil {
		return err
	}
	printlnFn("Created", id)
	return nil
}

// Update changes the given fields and keeps the others.
func (a *App) Update(ctx context.Context, args []string) error {
	if len(args) == 0 || strings.HasPrefix(args[0], "-") {
		return fmt.Errorf("%w: update <eventId> [-title T] [-date D] [-note N]", ErrUsage)
	}
	eventID := args[0]

	fs := flag.NewFlagSet("update", flag.ContinueOnError)
	title := fs.String("title", "", "new title")
	date := fs.String("date", "", "new date, YYYY-MM-DD")
	note := fs.String("note", "", "new note")
	if err := fs.Parse(args[1:]); err != nil {
		return ErrUsage
	}

	current, err := a.client.GetEvent(ctx, eventID)
	if err != nil {
		return err
	}

	req := models.UpdateEventRequest{EventID: eventID, Title: current.Title, Date: current.Date, Note: current.Note}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "title":
			req.Title = *title
		case "date":
			req.Date = *date
		case "note":
			req.Note = *note
		}
	})

	if err := a.client.UpdateEvent(ctx, req); err != nil {
		return err
	}
	printlnFn("Updated", eventID)
	return nil
}

func (a *App) Delete(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("delete", flag.ContinueOnError)
	yes := fs.Bool("yes", false, "skip the confirmation prompt")
	if err := fs.Parse(args); err != nil {
		return ErrUsage
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("%w: delete [-yes] <eventId>", ErrUsage)
	}
	eventID := fs.Arg(0)

	if !*yes {
		if !isTerminal() {
			return errors.New("refusing to delete without -yes when stdin is not a terminal")
		}
		printlnFn(fmt.Sprintf("Type %s to delete it with all photos:", eventID))
		if !a.in.Scan() || strings.TrimSpace(a.in.Text()) != eventID {
			printlnFn("Aborted.")
			return nil
		}
	}

	n, err := a.client.DeleteEvent(ctx, eventID)
	if err != nil {
		return err
	}
	printlnFn(fmt.Sprintf("Deleted %d objects.", n))
	return nil
}

func (a *App) Sweep(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: sweep <eventId>", ErrUsage)
	}

	n, err := a.client.SweepEvent(ctx, args[0])
	if err != nil {
		return err
	}
	printlnFn(fmt.Sprintf("Removed %d orphaned objects.", n))
	return nil
}

func (a *App) Upload(ctx context.Context, args []string) error {
	if len(args) == 0 || (strings.HasPrefix(args[0], "-") && args[0] != "-") {
		return fmt.Errorf("%w: upload <eventId|-> [-desc D] files...", ErrUsage)
	}
	eventID := args[0]
	if eventID == "-" {
		eventID = ""
	}

	fs := flag.NewFlagSet("upload", flag.ContinueOnError)
	desc := fs.String("desc", "", "description applied to every file")
	if err := fs.Parse(args[1:]); err != nil {
		return ErrUsage
	}

	files, closeAll, err := openFiles(fs.Args())
	defer closeAll()
	if err != nil {
		return err
	}

	keys, err := a.uploader.UploadBatch(ctx, eventID, files, *desc, func(n, total int, name string) {
		printlnFn(fmt.Sprintf("Uploading... (%d/%d) %s", n, total, name))
	})
	for _, k := range keys {
		printlnFn("Stored", k)
	}
	return err
}

func (a *App) List(ctx context.Context) error {
	items, err := a.client.ListUploads(ctx)
	if err != nil {
		return err
	}
	for _, it := range items {
		if it.Desc != "" {
			printlnFn(it.Key + "  " + it.Desc)
		} else {
			printlnFn(it.Key)
		}
	}
	return nil
}

// openFiles opens paths and sniffs their content type. The returned closer
// is always safe to call.
func openFiles(paths []string) ([]gallery.File, func(), error) {
	var closers []io.Closer
	closeAll := func() {
		for _, c := range closers {
			_ = c.Close()
		}
	}

	files := make([]gallery.File, 0, len(paths))
	for _, p := range paths {
		mt, err := mimetype.DetectFile(p)
		if err != nil {
			return nil, closeAll, fmt.Errorf("failed to read %s: %w", p, err)
		}

		f, err := os.Open(p)
		if err != nil {
			return nil, closeAll, err
		}
		closers = append(closers, f)

		files = append(files, gallery.File{
			Name:        filepath.Base(p),
			ContentType: mt.String(),
			Body:        f,
		})
	}
	return files, closeAll, nil
}

func eventPhotoKey(eventID, file string) string {
	return "events/" + eventID + "/" + file
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
