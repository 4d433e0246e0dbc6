package process

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/h2non/filetype"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/encoding/unicode/utf32"
	"golang.org/x/text/transform"
)

const stylesheetExt = ".css"

type srcEncoding int

const (
	encUnknown srcEncoding = iota
	encUTF8
	encUTF16BigEndian
	encUTF16LittleEndian
	encUTF32BigEndian
	encUTF32LittleEndian
)

// detectUTF looks for byte order mark.
func detectUTF(buf []byte) srcEncoding {
	switch {
	case bytes.HasPrefix(buf, []byte{0xEF, 0xBB, 0xBF}):
		return encUTF8
	case bytes.HasPrefix(buf, []byte{0x00, 0x00, 0xFE, 0xFF}):
		return encUTF32BigEndian
	case bytes.HasPrefix(buf, []byte{0xFF, 0xFE, 0x00, 0x00}):
		// must be checked before UTF-16LE, has the same start
		return encUTF32LittleEndian
	case bytes.HasPrefix(buf, []byte{0xFE, 0xFF}):
		return encUTF16BigEndian
	case bytes.HasPrefix(buf, []byte{0xFF, 0xFE}):
		return encUTF16LittleEndian
	}
	return encUnknown
}

// decodeStylesheet returns UTF-8 text of the stylesheet without byte order
// mark. Input without BOM is assumed to be UTF-8 already.
func decodeStylesheet(data []byte) ([]byte, error) {
	var enc encoding.Encoding
	switch detectUTF(data) {
	case encUnknown:
		return data, nil
	case encUTF8:
		return data[3:], nil
	case encUTF16BigEndian:
		enc = unicode.UTF16(unicode.BigEndian, unicode.ExpectBOM)
	case encUTF16LittleEndian:
		enc = unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM)
	case encUTF32BigEndian:
		enc = utf32.UTF32(utf32.BigEndian, utf32.ExpectBOM)
	case encUTF32LittleEndian:
		enc = utf32.UTF32(utf32.LittleEndian, utf32.ExpectBOM)
	}
	out, _, err := transform.Bytes(enc.NewDecoder(), data)
	if err != nil {
		return nil, fmt.Errorf("unable to decode stylesheet: %w", err)
	}
	return out, nil
}

// isArchiveFile checks that file with zip extension really is zip archive.
func isArchiveFile(path string) (bool, error) {
	if !strings.EqualFold(filepath.Ext(path), ".zip") {
		return false, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	// enough for any signature filetype knows about
	head := make([]byte, 262)
	n, err := io.ReadFull(f, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return false, err
	}
	return filetype.Is(head[:n], "zip"), nil
}

func isStylesheet(name string) bool {
	return strings.EqualFold(filepath.Ext(name), stylesheetExt)
}

// isProduced reports whether name looks like result of previous run, so
// scoped stylesheets are not scoped again when output goes next to sources.
func isProduced(name, suffix string) bool {
	base := filepath.Base(name)
	return strings.HasSuffix(strings.TrimSuffix(base, filepath.Ext(base)), suffix)
}
