package domain

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"strings"
)

// Attachment is an uploaded file held in memory for the lifetime of a
// request. Every read returns the full content.
type Attachment struct {
	Filename string
	MimeType string
	data     []byte
}

// NewAttachment builds an attachment from raw bytes.
func NewAttachment(filename, mimeType string, data []byte) Attachment {
	return Attachment{
		Filename: filename,
		MimeType: normalizeMime(mimeType),
		data:     append([]byte(nil), data...),
	}
}

// AttachmentFromFileHeader reads a multipart upload into memory.
func AttachmentFromFileHeader(fh *multipart.FileHeader) (Attachment, error) {
	f, err := fh.Open()
	if err != nil {
		return Attachment{}, fmt.Errorf("open upload %s: %w", fh.Filename, err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return Attachment{}, fmt.Errorf("read upload %s: %w", fh.Filename, err)
	}
	return Attachment{
		Filename: fh.Filename,
		MimeType: normalizeMime(fh.Header.Get("Content-Type")),
		data:     data,
	}, nil
}

// Bytes returns a copy of the content.
func (a Attachment) Bytes() []byte {
	return append([]byte(nil), a.data...)
}

// Open returns a new reader positioned at the start of the content.
func (a Attachment) Open() io.Reader {
	return bytes.NewReader(a.data)
}

// normalizeMime lowercases the media type and drops parameters such as charset.
func normalizeMime(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	if mt, _, err := mime.ParseMediaType(value); err == nil {
		return strings.ToLower(mt)
	}
	if idx := strings.Index(value, ";"); idx >= 0 {
		value = value[:idx]
	}
	return strings.ToLower(strings.TrimSpace(value))
}

// FileMeta describes an attachment without its content.
type FileMeta struct {
	Name string `json:"name"`
	Size int    `json:"size"`
	Type string `json:"type"`
}

// Meta returns the attachment's metadata.
func (a Attachment) Meta() FileMeta {
	return FileMeta{Name: a.Filename, Size: len(a.data), Type: a.MimeType}
}
