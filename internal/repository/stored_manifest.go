package repository

import (
	"bytes"
	"encoding/json"
	"sort"

	"github.com/sefazor/ourphotos-gallery/internal/models"
)

// manifestFields is the order known fields are written in.
var manifestFields = []string{"eventId", "title", "date", "note", "cover", "photos", "createdAt", "updatedAt"}

// storedManifest is a manifest together with the document it was decoded
// from. encode patches only what changed since decoding, so fields and
// photo entries written by other tools survive a read-modify-write.
type storedManifest struct {
	manifest *models.Manifest
	decoded  models.Manifest
	fields   map[string]json.RawMessage
	photos   []json.RawMessage
}

func decodeStored(raw []byte) (*storedManifest, error) {
	m, err := decodeManifest(raw)
	if err != nil {
		return nil, err
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}
	if fields == nil {
		fields = map[string]json.RawMessage{}
	}

	var photos []json.RawMessage
	if p, ok := fields["photos"]; ok {
		// Decoding into []Photo succeeded, so this is an array or null.
		_ = json.Unmarshal(p, &photos)
	}

	decoded := *m
	decoded.Photos = append([]models.Photo(nil), m.Photos...)
	return &storedManifest{manifest: m, decoded: decoded, fields: fields, photos: photos}, nil
}

func (s *storedManifest) encode() ([]byte, error) {
	m, d := s.manifest, s.decoded

	changed := map[string]any{}
	for name, pair := range map[string][2]string{
		"eventId":   {d.EventID, m.EventID},
		"title":     {d.Title, m.Title},
		"date":      {d.Date, m.Date},
		"note":      {d.Note, m.Note},
		"cover":     {d.Cover, m.Cover},
		"createdAt": {d.CreatedAt, m.CreatedAt},
		"updatedAt": {d.UpdatedAt, m.UpdatedAt},
	} {
		if pair[0] != pair[1] {
			changed[name] = pair[1]
		}
	}

	out := make(map[string]json.RawMessage, len(s.fields)+len(changed)+1)
	for k, v := range s.fields {
		out[k] = v
	}
	for k, v := range changed {
		raw, err := marshalValue(v)
		if err != nil {
			return nil, err
		}
		out[k] = raw
	}

	if !samePhotos(d.Photos, m.Photos) {
		raw, err := s.encodePhotos()
		if err != nil {
			return nil, err
		}
		out["photos"] = raw
	}

	return writeOrdered(out), nil
}

// encodePhotos reuses the stored bytes of every entry that is unchanged at
// its position and marshals the others.
func (s *storedManifest) encodePhotos() (json.RawMessage, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, p := range s.manifest.Photos {
		if i > 0 {
			buf.WriteByte(',')
		}
		if i < len(s.photos) && i < len(s.decoded.Photos) && s.decoded.Photos[i] == p {
			buf.Write(s.photos[i])
			continue
		}
		raw, err := marshalValue(p)
		if err != nil {
			return nil, err
		}
		buf.Write(raw)
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

func samePhotos(a, b []models.Photo) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func writeOrdered(fields map[string]json.RawMessage) []byte {
	var buf bytes.Buffer
	buf.WriteByte('{')
	n := 0
	write := func(k string) {
		v, ok := fields[k]
		if !ok {
			return
		}
		if n > 0 {
			buf.WriteByte(',')
		}
		key, _ := marshalValue(k)
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(v)
		n++
		delete(fields, k)
	}

	for _, k := range manifestFields {
		write(k)
	}
	rest := make([]string, 0, len(fields))
	for k := range fields {
		rest = append(rest, k)
	}
	sort.Strings(rest)
	for _, k := range rest {
		write(k)
	}

	buf.WriteByte('}')
	return buf.Bytes()
}

func marshalValue(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
