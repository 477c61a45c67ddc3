package service

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/sefazor/ourphotos-gallery/internal/apperror"
	"github.com/sefazor/ourphotos-gallery/pkg/utils"
)

const timestampLayout = "2006-01-02T15:04:05.000Z"

var mimeExtensions = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
	"image/webp": "webp",
	"image/gif":  "gif",
	"image/avif": "avif",
}

func timestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

// newEventID builds {date}-{slug}-{6hex}. The result is checked against
// the id pattern since the date is only format-validated.
func newEventID(title, date string) (string, error) {
	slug := utils.Slugify(title)
	if slug == "" {
		slug = "event"
	}

	suffix, err := utils.RandomHex(6)
	if err != nil {
		return "", apperror.Internal("Failed to generate eventId", err)
	}

	id := fmt.Sprintf("%s-%s-%s", date, slug, suffix)
	if len(id) > 80 {
		// Keep the random suffix, shorten the slug.
		keep := 80 - len(date) - len(suffix) - 2
		slug = strings.TrimRight(slug[:keep], "-")
		id = fmt.Sprintf("%s-%s-%s", date, slug, suffix)
	}
	if !utils.IsValidEventID(id) {
		return "", apperror.Internal("Failed to generate eventId", fmt.Errorf("generated id %q is invalid", id))
	}
	return id, nil
}

// extension picks the stored suffix: the MIME map first, then the
// original filename, then "bin".
func extension(contentType, filename string) string {
	mt := strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))
	if ext, ok := mimeExtensions[mt]; ok {
		return ext
	}

	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	if ext != "" && isAlnum(ext) {
		return ext
	}
	return "bin"
}

func isAlnum(s string) bool {
	for _, r := range s {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}

// photoFilename is {unixMillis}-{8hex}.{ext}.
func photoFilename(now time.Time, ext string) (string, error) {
	suffix, err := utils.RandomHex(8)
	if err != nil {
		return "", apperror.Internal("Failed to generate filename", err)
	}
	return fmt.Sprintf("%d-%s.%s", now.UnixMilli(), suffix, ext), nil
}

// uploadKey is uploads/{yyyy-mm-dd}/{unixMillis}-{8hex}.{ext}.
func uploadKey(now time.Time, ext string) (string, error) {
	name, err := photoFilename(now, ext)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("uploads/%s/%s", now.UTC().Format("2006-01-02"), name), nil
}

func isImageType(contentType string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(contentType)), "image/")
}
