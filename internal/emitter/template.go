package emitter

import (
	"strconv"
	"strings"

	"github.com/wolfeidau/assetmods/internal/module"
)

// DefaultFilenameTemplate names emitted assets by content hash.
const DefaultFilenameTemplate FilenameTemplate = "[hash][ext][query]"

// FilenameTemplate is a path pattern with bracketed placeholders:
// [hash], [contenthash], [hash:N], [contenthash:N], [name], [ext], [path],
// [query] and [fragment].
type FilenameTemplate string

// TemplateData holds the values substituted into a FilenameTemplate.
type TemplateData struct {
	// Hash is the full digest; it is truncated per placeholder.
	Hash string
	// Name is the base name without extension.
	Name string
	// Ext includes the leading dot.
	Ext string
	// Path is the source directory relative to the context, with a trailing
	// slash, or empty.
	Path     string
	Query    string
	Fragment string
}

// Validate checks that every placeholder in the template is known.
func (t FilenameTemplate) Validate() error {
	_, err := t.Resolve(TemplateData{}, DefaultHashDigestLength)
	return err
}

// Resolve substitutes data into the template. hashLength applies to [hash]
// and [contenthash] placeholders that carry no explicit length.
func (t FilenameTemplate) Resolve(data TemplateData, hashLength int) (string, error) {
	s := string(t)
	var sb strings.Builder
	sb.Grow(len(s) + len(data.Hash))

	for {
		open := strings.IndexByte(s, '[')
		if open < 0 {
			sb.WriteString(s)
			break
		}
		end := strings.IndexByte(s[open:], ']')
		if end < 0 {
			sb.WriteString(s)
			break
		}
		end += open

		sb.WriteString(s[:open])
		value, err := placeholder(s[open+1:end], data, hashLength)
		if err != nil {
			return "", err
		}
		sb.WriteString(value)
		s = s[end+1:]
	}

	return sb.String(), nil
}

func placeholder(token string, data TemplateData, hashLength int) (string, error) {
	name, arg, hasArg := strings.Cut(token, ":")

	switch name {
	case "hash", "contenthash":
		n := hashLength
		if hasArg {
			v, err := strconv.Atoi(arg)
			if err != nil || v <= 0 {
				return "", module.NewConfigurationError("filename", "["+token+"]", "hash length must be a positive integer")
			}
			n = v
		}
		if n > 0 && n < len(data.Hash) {
			return data.Hash[:n], nil
		}
		return data.Hash, nil
	}

	if hasArg {
		return "", module.NewConfigurationError("filename", "["+token+"]", "only hash placeholders take a length")
	}

	switch name {
	case "name":
		return data.Name, nil
	case "ext":
		return data.Ext, nil
	case "path":
		return data.Path, nil
	case "query":
		return data.Query, nil
	case "fragment":
		return data.Fragment, nil
	}

	return "", module.NewConfigurationError("filename", "["+token+"]", "unknown placeholder")
}
