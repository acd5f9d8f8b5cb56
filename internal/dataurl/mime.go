package dataurl

import (
	"mime"
	"path/filepath"
	"strings"
)

// extensionTypes covers the asset types bundles commonly import. Entries here
// win over the platform MIME database, which differs between hosts.
var extensionTypes = map[string]string{
	".apng":  "image/apng",
	".avif":  "image/avif",
	".bmp":   "image/bmp",
	".gif":   "image/gif",
	".ico":   "image/vnd.microsoft.icon",
	".jpeg":  "image/jpeg",
	".jpg":   "image/jpeg",
	".png":   "image/png",
	".svg":   "image/svg+xml",
	".webp":  "image/webp",
	".otf":   "font/otf",
	".ttf":   "font/ttf",
	".woff":  "font/woff",
	".woff2": "font/woff2",
	".mp3":   "audio/mpeg",
	".ogg":   "audio/ogg",
	".wav":   "audio/wav",
	".mp4":   "video/mp4",
	".webm":  "video/webm",
	".css":   "text/css",
	".csv":   "text/csv",
	".html":  "text/html",
	".js":    "text/javascript",
	".json":  "application/json",
	".md":    "text/markdown",
	".txt":   "text/plain",
	".xml":   "application/xml",
	".pdf":   "application/pdf",
	".wasm":  "application/wasm",
	".zip":   "application/zip",
}

const defaultMimeType = "application/octet-stream"

// MimeType infers the MIME type of an asset from its extension, falling back
// to the platform database and then to the content's magic bytes.
func MimeType(path string, content []byte) string {
	ext := strings.ToLower(filepath.Ext(path))
	if t, ok := extensionTypes[ext]; ok {
		return t
	}
	if ext != "" {
		if t := mime.TypeByExtension(ext); t != "" {
			// data URIs cannot carry whitespace inside the media type
			return strings.ReplaceAll(t, " ", "")
		}
	}
	return sniff(content)
}

func sniff(contents []byte) string {
	if len(contents) == 0 {
		return defaultMimeType
	}

	if len(contents) >= 12 {
		if contents[0] == 0x89 && contents[1] == 'P' && contents[2] == 'N' && contents[3] == 'G' {
			return "image/png"
		}
		if contents[0] == 'G' && contents[1] == 'I' && contents[2] == 'F' && contents[3] == '8' {
			return "image/gif"
		}
		if contents[0] == 'R' && contents[1] == 'I' && contents[2] == 'F' && contents[3] == 'F' &&
			contents[8] == 'W' && contents[9] == 'E' && contents[10] == 'B' && contents[11] == 'P' {
			return "image/webp"
		}
	}

	if len(contents) >= 3 && contents[0] == 0xFF && contents[1] == 0xD8 && contents[2] == 0xFF {
		return "image/jpeg"
	}
	if len(contents) >= 5 && string(contents[:5]) == "%PDF-" {
		return "application/pdf"
	}
	if len(contents) >= 4 && contents[0] == 'P' && contents[1] == 'K' && contents[2] == 0x03 && contents[3] == 0x04 {
		return "application/zip"
	}
	if len(contents) >= 4 && contents[0] == 0x00 && contents[1] == 'a' && contents[2] == 's' && contents[3] == 'm' {
		return "application/wasm"
	}

	n := min(len(contents), 512)
	for _, b := range contents[:n] {
		if b < 0x08 || (b > 0x0D && b < 0x20 && b != 0x1B) {
			return defaultMimeType
		}
	}

	return "text/plain"
}
