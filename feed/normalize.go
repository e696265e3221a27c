package feed

import (
	"errors"
	"html"
	"strings"

	"github.com/jaytaylor/html2text"
	"github.com/mitchellh/go-wordwrap"
)

const DefaultWrapWidth = 80

var (
	// ErrNoQuotedText is returned when quote extraction is enabled and the
	// post has fewer than two double quote characters.
	ErrNoQuotedText = errors.New("failed to parse post content between \"")

	ErrEmptyContent = errors.New("post content is empty after normalization")
)

// Normalizer turns the HTML body of a post into plain text
type Normalizer struct {
	// WrapWidth is the column at which plain text is wrapped
	WrapWidth int

	// ExtractQuoted keeps only the text between the first pair of double quotes
	ExtractQuoted bool
}

func NewNormalizer(wrapWidth int, extractQuoted bool) *Normalizer {
	if wrapWidth <= 0 {
		wrapWidth = DefaultWrapWidth
	}
	return &Normalizer{
		WrapWidth:     wrapWidth,
		ExtractQuoted: extractQuoted,
	}
}

// Normalize decodes entities, strips markup, wraps the text and, when
// configured, extracts the quoted part.
func (n *Normalizer) Normalize(raw string) (string, error) {
	decoded := html.UnescapeString(raw)

	text, err := html2text.FromString(decoded, html2text.Options{
		OmitLinks: true,
		TextOnly:  true,
	})
	if err != nil {
		return "", err
	}

	width := n.WrapWidth
	if width <= 0 {
		width = DefaultWrapWidth
	}
	text = wordwrap.WrapString(text, uint(width))

	if n.ExtractQuoted {
		parts := strings.Split(text, "\"")
		if len(parts) < 3 {
			return "", ErrNoQuotedText
		}
		text = parts[1]
	}

	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyContent
	}

	return text, nil
}
