// Package encoding normalizes the character encoding of uploaded batch
// files. Partner banks export CSV in whatever their core system speaks, so
// everything is decoded to UTF-8 before parsing.
package encoding

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/saintfish/chardet"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// detectionWindow is how many bytes are inspected before deciding on a
// charset.
const detectionWindow = 4096

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// NewUTF8Reader wraps r with a decoder for whatever encoding the content
// appears to use. UTF-8 input passes through with any BOM stripped, UTF-16
// is decoded by BOM, and legacy single-byte content goes through chardet
// with Windows-1252 as the fallback.
func NewUTF8Reader(r io.Reader) (io.Reader, error) {
	br := bufio.NewReader(r)

	head, err := br.Peek(detectionWindow)
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("peeking input: %w", err)
	}

	if bytes.HasPrefix(head, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
		return br, nil
	}
	if bytes.HasPrefix(head, []byte{0xFF, 0xFE}) {
		return transform.NewReader(br, unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewDecoder()), nil
	}
	if bytes.HasPrefix(head, []byte{0xFE, 0xFF}) {
		return transform.NewReader(br, unicode.UTF16(unicode.BigEndian, unicode.UseBOM).NewDecoder()), nil
	}

	if utf8.Valid(head) {
		return br, nil
	}

	if result, err := chardet.NewTextDetector().DetectBest(head); err == nil {
		switch result.Charset {
		case "UTF-8":
			return br, nil
		case "ISO-8859-15":
			return transform.NewReader(br, charmap.ISO8859_15.NewDecoder()), nil
		case "ISO-8859-9":
			return transform.NewReader(br, charmap.ISO8859_9.NewDecoder()), nil
		}
	}

	// Windows-1252 decodes every byte, so it doubles as the fallback for
	// ISO-8859-1 and anything chardet cannot place.
	return transform.NewReader(br, charmap.Windows1252.NewDecoder()), nil
}
