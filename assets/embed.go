// Package assets bundles the kana deck and the SQL migrations into the binary.
package assets

import (
	"bufio"
	"embed"
	"io"
	"io/fs"
	"strings"
)

//go:embed kana.tsv sql/*.sql
var FS embed.FS

// readRows splits a tab-separated file into trimmed fields, skipping blank
// lines and # comments.
func readRows(r io.Reader) ([][]string, error) {
	var out [][]string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		s := strings.TrimSpace(sc.Text())
		if s == "" || strings.HasPrefix(s, "#") {
			continue
		}
		fields := strings.Split(s, "\t")
		for i := range fields {
			fields[i] = strings.TrimSpace(fields[i])
		}
		out = append(out, fields)
	}
	return out, sc.Err()
}

// KanaRows returns the embedded deck, one row per card.
func KanaRows() ([][]string, error) {
	f, err := FS.Open("kana.tsv")
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return readRows(f)
}

// ParseRows parses a deck in the same format from any reader (KANA_FILE).
func ParseRows(r io.Reader) ([][]string, error) {
	return readRows(r)
}

// Migrations exposes the sql/ directory.
func Migrations() fs.FS {
	sub, err := fs.Sub(FS, "sql")
	if err != nil {
		// sql/ is embedded at build time; Sub only fails on an invalid path.
		panic(err)
	}
	return sub
}
