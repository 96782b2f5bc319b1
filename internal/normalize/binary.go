package normalize

import (
	"bytes"
	"encoding/base64"
	"mime"
	"strings"

	"github.com/jackzampolin/memoir/internal/types"
)

// File signatures used to catch binary bodies served with a text media type.
var (
	sigPNG  = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}
	sigJPEG = []byte{0xFF, 0xD8, 0xFF}
	sigGIF7 = []byte("GIF87a")
	sigGIF9 = []byte("GIF89a")
	sigRIFF = []byte("RIFF")
	sigWEBP = []byte("WEBP")
	sigFTYP = []byte("ftyp")
)

// SniffSignature returns the media type implied by the leading bytes of
// body, or "" if none of the known signatures match.
func SniffSignature(body []byte) string {
	switch {
	case bytes.HasPrefix(body, sigPNG):
		return "image/png"
	case bytes.HasPrefix(body, sigJPEG):
		return "image/jpeg"
	case bytes.HasPrefix(body, sigGIF7), bytes.HasPrefix(body, sigGIF9):
		return "image/gif"
	case len(body) >= 12 && bytes.HasPrefix(body, sigRIFF) && bytes.Equal(body[8:12], sigWEBP):
		return "image/webp"
	case len(body) >= 8 && bytes.Equal(body[4:8], sigFTYP):
		return "video/mp4"
	}
	return ""
}

// DataURI encodes body as a base64 data URI tagged with mime.
func DataURI(mime string, body []byte) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(body)
}

// binaryMediaType decides whether a response is binary media and, if so,
// which media type to tag it with.
func binaryMediaType(contentType string, body []byte, kind types.Kind) (string, bool) {
	declared := ""
	if contentType != "" {
		if mt, _, err := mime.ParseMediaType(contentType); err == nil {
			declared = strings.ToLower(mt)
		} else {
			declared = strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))
		}
	}

	switch {
	case strings.HasPrefix(declared, "image/"), strings.HasPrefix(declared, "video/"):
		return declared, true
	case declared == "application/octet-stream":
		if sniffed := SniffSignature(body); sniffed != "" {
			return sniffed, true
		}
		if kind == types.KindVideo {
			return "video/mp4", true
		}
		return "image/png", true
	}

	// Upstream does not always label binary bodies correctly.
	if sniffed := SniffSignature(body); sniffed != "" {
		return sniffed, true
	}
	return "", false
}
