package charset

import (
	"bytes"
	"errors"
	"fmt"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
)

// Encoding represents a text encoding
type Encoding string

const (
	EncodingAuto        Encoding = "auto"
	EncodingUTF8        Encoding = "utf-8"
	EncodingWindows1250 Encoding = "windows-1250"
	EncodingWindows1252 Encoding = "windows-1252"
	EncodingISO88592    Encoding = "iso-8859-2"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ErrMalformed is returned when content is not valid in the requested encoding
var ErrMalformed = errors.New("malformed text encoding")

// ErrBinary is returned when content looks like a binary file
var ErrBinary = errors.New("content appears to be binary")

// IsSupported checks whether enc names a supported encoding
func IsSupported(enc Encoding) bool {
	switch enc {
	case "", EncodingAuto, EncodingUTF8, EncodingWindows1250, EncodingWindows1252, EncodingISO88592:
		return true
	}
	return false
}

// Decode converts data in the given encoding to a UTF-8 string.
// Under auto and utf-8 the content must be valid UTF-8; single-byte
// encodings must be requested explicitly.
func Decode(data []byte, enc Encoding) (string, error) {
	if bytes.IndexByte(data, 0x00) >= 0 {
		return "", ErrBinary
	}

	switch enc {
	case "", EncodingAuto, EncodingUTF8:
		data = bytes.TrimPrefix(data, utf8BOM)
		if !utf8.Valid(data) {
			return "", fmt.Errorf("%w: content is not valid UTF-8", ErrMalformed)
		}
		return string(data), nil
	case EncodingWindows1250:
		return decodeWith(charmap.Windows1250, data)
	case EncodingWindows1252:
		return decodeWith(charmap.Windows1252, data)
	case EncodingISO88592:
		return decodeWith(charmap.ISO8859_2, data)
	default:
		return "", fmt.Errorf("unsupported encoding %q", enc)
	}
}

func decodeWith(enc encoding.Encoding, data []byte) (string, error) {
	// A valid UTF-8 file mislabelled as single-byte is returned as-is
	if utf8.Valid(data) {
		return string(bytes.TrimPrefix(data, utf8BOM)), nil
	}
	out, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return string(out), nil
}
