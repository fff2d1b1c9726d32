package urlutil

import (
	"net/url"
	"strings"
)

// binaryExtensions are URL path suffixes for resources that are never
// rendered to Markdown.
var binaryExtensions = []string{
	".pdf", ".jpg", ".jpeg", ".png", ".gif", ".svg",
	".webp", ".ico", ".bmp", ".tiff", ".mp4", ".mp3",
	".zip", ".doc", ".docx", ".xls", ".xlsx", ".ppt", ".pptx",
}

// IsBinary reports whether the URL's path ends in a non-HTML extension
// (documents, images, archives, audio/video). The check is case-insensitive
// and ignores query and fragment.
func IsBinary(rawURL string) bool {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	p := strings.ToLower(parsed.Path)
	for _, ext := range binaryExtensions {
		if strings.HasSuffix(p, ext) {
			return true
		}
	}
	return false
}

// BinaryExtensions returns a copy of the skip-list.
func BinaryExtensions() []string {
	return append([]string(nil), binaryExtensions...)
}
