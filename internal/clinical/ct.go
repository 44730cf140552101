package clinical

import (
	"encoding/base64"

	"brainsim/internal/domain"
)

// DefaultImageMime is assumed for CT uploads without a content type.
const DefaultImageMime = "image/png"

// InlineImage is a base64 payload attached directly to a model request.
type InlineImage struct {
	MimeType string
	Data     string
}

// EncodeCTImages base64-encodes every CT upload. Attachments stay readable
// afterwards.
func EncodeCTImages(files []domain.Attachment) []InlineImage {
	out := make([]InlineImage, 0, len(files))
	for _, f := range files {
		mime := f.MimeType
		if mime == "" {
			mime = DefaultImageMime
		}
		out = append(out, InlineImage{
			MimeType: mime,
			Data:     base64.StdEncoding.EncodeToString(f.Bytes()),
		})
	}
	return out
}
