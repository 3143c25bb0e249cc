package capture

import (
	"bytes"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"net/http"
	"strings"
)

// FileInfo describes an accepted upload.
type FileInfo struct {
	ContentType string
	Width       int
	Height      int
}

// InspectFile checks an uploaded file against the accepted kinds and the size
// limit. Only images and PDF documents are accepted; the declared type of the
// upload is ignored in favour of the content itself.
func InspectFile(data []byte, maxBytes int64) (*FileInfo, error) {
	if len(data) == 0 {
		return nil, ErrEmptyFile
	}
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return nil, ErrFileTooLarge
	}

	contentType := http.DetectContentType(data)
	if i := strings.Index(contentType, ";"); i >= 0 {
		contentType = contentType[:i]
	}
	if !strings.HasPrefix(contentType, "image/") && contentType != "application/pdf" {
		return nil, ErrUnsupportedFile
	}

	info := &FileInfo{ContentType: contentType}
	if strings.HasPrefix(contentType, "image/") {
		if cfg, _, err := image.DecodeConfig(bytes.NewReader(data)); err == nil {
			info.Width, info.Height = cfg.Width, cfg.Height
		}
	}
	return info, nil
}
