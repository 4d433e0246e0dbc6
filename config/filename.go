package config

import (
	"os"
	"strings"
	"unicode"
)

// CleanFileName removes characters not allowed in file names on this
// platform. Leading dots and spaces are dropped too, so stylesheet names do
// not turn into hidden files.
func CleanFileName(in string) string {
	bad := badFileNameChars + string(os.PathSeparator) + string(os.PathListSeparator)
	out := strings.Map(func(sym rune) rune {
		if unicode.IsControl(sym) || strings.ContainsRune(bad, sym) {
			return -1
		}
		return sym
	}, in)
	out = strings.TrimLeft(out, ". ")
	if len(out) == 0 {
		out = "_bad_file_name_"
	}
	return out
}
