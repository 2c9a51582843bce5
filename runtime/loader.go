// Package runtime hosts the server-side machinery of the room: the
// broker that fans change events out to subscribers, the backend bound
// to storage and moderation, and the supervised workers.
package runtime

import (
	"bufio"
	"bytes"
	"embed"
	"io/fs"
	"strings"

	errs "chat-room/errors"
)

//go:embed censored/*
var censoredFS embed.FS

// CensoredData carries the loaded word lists plus metadata for logging.
type CensoredData struct {
	Words     []string
	Languages []string
}

// LoadCensoredWords reads the embedded per-language dictionaries
// (e.g. "en.txt") into a deduplicated word list.
func LoadCensoredWords() (*CensoredData, error) {
	const dir = "censored"
	entries, err := fs.ReadDir(censoredFS, dir)
	if err != nil {
		return nil, err
	}

	var languages []string
	unique := make(map[string]struct{})

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		languages = append(languages, strings.TrimSuffix(entry.Name(), ".txt"))

		data, err := censoredFS.ReadFile(dir + "/" + entry.Name())
		if err != nil {
			return nil, err
		}

		// A scanner handles both \n and \r\n line endings.
		scanner := bufio.NewScanner(bytes.NewReader(data))
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line != "" {
				unique[line] = struct{}{}
			}
		}
		if err := scanner.Err(); err != nil {
			return nil, err
		}
	}

	if len(unique) == 0 {
		return nil, errs.ErrEmptyWords
	}

	words := make([]string, 0, len(unique))
	for w := range unique {
		words = append(words, w)
	}
	return &CensoredData{Words: words, Languages: languages}, nil
}
