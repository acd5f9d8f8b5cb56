package dataurl

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/wolfeidau/assetmods/internal/module"
)

const (
	// EncodingBase64 produces data:<mime>;base64,<payload>.
	EncodingBase64 = "base64"
	// EncodingNone produces data:<mime>,<percent-encoded payload>.
	EncodingNone = "false"
)

var ErrInvalidDataURI = errors.New("invalid data URI")

// EncodeContext is passed to a custom EncodeFunc.
type EncodeContext struct {
	Path     string
	MimeType string
}

// EncodeFunc replaces the default encoding algorithm entirely.
type EncodeFunc func(content []byte, ectx EncodeContext) (string, error)

// Options configures an Encoder. The zero value encodes base64 with the MIME
// type inferred from the file extension.
type Options struct {
	Encoding string
	MimeType string
	Encode   EncodeFunc
}

// Encoder turns raw asset bytes into a data URI.
type Encoder struct {
	opts Options
}

func New(opts Options) (*Encoder, error) {
	switch opts.Encoding {
	case "":
		opts.Encoding = EncodingBase64
	case EncodingBase64, EncodingNone:
	default:
		return nil, module.NewConfigurationError("generator.dataUrl.encoding", opts.Encoding, "must be base64 or false")
	}
	return &Encoder{opts: opts}, nil
}

// Encode returns the data URI for content. path is only used to infer the
// MIME type.
func (e *Encoder) Encode(path string, content []byte) (string, error) {
	mimeType := e.opts.MimeType
	if mimeType == "" {
		mimeType = MimeType(path, content)
	}

	if e.opts.Encode != nil {
		uri, err := e.opts.Encode(content, EncodeContext{Path: path, MimeType: mimeType})
		if err != nil {
			return "", fmt.Errorf("custom data URI encoder failed for %s: %w", path, err)
		}
		return uri, nil
	}

	var sb strings.Builder
	sb.WriteString("data:")
	sb.WriteString(mimeType)
	if e.opts.Encoding == EncodingBase64 {
		sb.WriteString(";base64,")
		sb.WriteString(base64.StdEncoding.EncodeToString(content))
	} else {
		sb.WriteByte(',')
		sb.WriteString(escape(content))
	}
	return sb.String(), nil
}

// Decode parses a data URI produced by Encode.
func Decode(uri string) (mimeType string, content []byte, err error) {
	rest, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return "", nil, fmt.Errorf("%w: missing data: prefix", ErrInvalidDataURI)
	}
	header, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, fmt.Errorf("%w: missing payload separator", ErrInvalidDataURI)
	}

	if mt, isBase64 := strings.CutSuffix(header, ";base64"); isBase64 {
		content, err = base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return "", nil, fmt.Errorf("%w: %w", ErrInvalidDataURI, err)
		}
		return mt, content, nil
	}

	decoded, err := url.PathUnescape(payload)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %w", ErrInvalidDataURI, err)
	}
	return header, []byte(decoded), nil
}

// escape percent-encodes everything except the characters
// encodeURIComponent leaves alone.
func escape(content []byte) string {
	const hex = "0123456789ABCDEF"
	var sb strings.Builder
	sb.Grow(len(content))
	for _, c := range content {
		if isUnreserved(c) {
			sb.WriteByte(c)
			continue
		}
		sb.WriteByte('%')
		sb.WriteByte(hex[c>>4])
		sb.WriteByte(hex[c&0x0F])
	}
	return sb.String()
}

func isUnreserved(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	}
	return strings.IndexByte("-_.!~*'()", c) >= 0
}
