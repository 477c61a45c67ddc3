package models

import "io"

// PhotoUpload is an image received from a multipart form, already opened.
type PhotoUpload struct {
	EventID     string
	Filename    string
	ContentType string
	Size        int64
	Desc        string
	UploadID    string
	Body        io.Reader
}

type EventUploadResponse struct {
	OK      bool   `json:"ok"`
	Key     string `json:"key"`
	EventID string `json:"eventId"`
	File    string `json:"file"`
}

type UploadResponse struct {
	OK  bool   `json:"ok"`
	Key string `json:"key"`
}

// Item is a standalone upload under uploads/.
type Item struct {
	Key  string `json:"key"`
	Desc string `json:"desc"`
}

type ItemsResponse struct {
	Items []Item `json:"items"`
}

type MetaResponse struct {
	Key  string `json:"key"`
	Desc string `json:"desc"`
}

// Sidecar is the {key}.meta.json document holding an upload's description.
type Sidecar struct {
	Desc string `json:"desc"`
}
