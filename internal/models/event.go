package models

import "strings"

// Manifest is the document of record for one event, stored at
// events/{eventId}/manifest.json.
type Manifest struct {
	EventID   string  `json:"eventId"`
	Title     string  `json:"title"`
	Date      string  `json:"date"`
	Note      string  `json:"note"`
	Cover     string  `json:"cover"`
	Photos    []Photo `json:"photos"`
	CreatedAt string  `json:"createdAt"`
	UpdatedAt string  `json:"updatedAt"`
}

// Photo references an image object inside the event prefix by filename.
type Photo struct {
	File       string `json:"file"`
	Desc       string `json:"desc"`
	UploadedAt string `json:"uploadedAt"`
	UploadID   string `json:"uploadId,omitempty"`
}

// PhotoByUploadID finds a photo recorded with a client upload id.
func (m *Manifest) PhotoByUploadID(uploadID string) (Photo, bool) {
	if uploadID == "" {
		return Photo{}, false
	}
	for _, p := range m.Photos {
		if p.UploadID == uploadID {
			return p, true
		}
	}
	return Photo{}, false
}

// References reports whether file is listed in the manifest photos.
func (m *Manifest) References(file string) bool {
	for _, p := range m.Photos {
		if p.File == file {
			return true
		}
	}
	return false
}

type EventSummary struct {
	EventID    string   `json:"eventId"`
	Title      string   `json:"title"`
	Date       string   `json:"date"`
	Note       string   `json:"note"`
	CoverKey   string   `json:"coverKey"`
	SampleKeys []string `json:"sampleKeys"`
	Count      int      `json:"count"`
}

type CreateEventRequest struct {
	Title string `json:"title" validate:"required"`
	Date  string `json:"date" validate:"required,eventdate"`
	Note  string `json:"note"`
}

type UpdateEventRequest struct {
	EventID string `json:"eventId" validate:"required,eventid"`
	Title   string `json:"title" validate:"required"`
	Date    string `json:"date" validate:"required,eventdate"`
	Note    string `json:"note"`
}

type DeleteEventRequest struct {
	EventID string `json:"eventId" validate:"required,eventid"`
	Force   bool   `json:"force"`
}

type SweepEventRequest struct {
	EventID string `json:"eventId" validate:"required,eventid"`
}

type EventQuery struct {
	EventID string `json:"eventId" query:"eventId" validate:"required,eventid"`
}

type EventQRQuery struct {
	EventID string `json:"eventId" query:"eventId" validate:"required,eventid"`
	Size    int    `json:"size" query:"size" validate:"gte=0"`
}

func (r *CreateEventRequest) Normalize() {
	r.Title = strings.TrimSpace(r.Title)
	r.Date = strings.TrimSpace(r.Date)
	r.Note = strings.TrimSpace(r.Note)
}

func (r *UpdateEventRequest) Normalize() {
	r.EventID = strings.TrimSpace(r.EventID)
	r.Title = strings.TrimSpace(r.Title)
	r.Date = strings.TrimSpace(r.Date)
	r.Note = strings.TrimSpace(r.Note)
}

func (r *DeleteEventRequest) Normalize() { r.EventID = strings.TrimSpace(r.EventID) }

func (r *SweepEventRequest) Normalize() { r.EventID = strings.TrimSpace(r.EventID) }

func (q *EventQuery) Normalize() { q.EventID = strings.TrimSpace(q.EventID) }

func (q *EventQRQuery) Normalize() { q.EventID = strings.TrimSpace(q.EventID) }

type CreateEventResponse struct {
	OK      bool   `json:"ok"`
	EventID string `json:"eventId"`
}

type DeleteEventResponse struct {
	OK      bool `json:"ok"`
	Deleted int  `json:"deleted"`
}

type SweepEventResponse struct {
	OK      bool `json:"ok"`
	Removed int  `json:"removed"`
}

type EventsResponse struct {
	Events []EventSummary `json:"events"`
}
