package player

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"

	id3 "github.com/mikkyang/id3-go"
)

// IsMP3 reports whether name carries an .mp3 extension.
func IsMP3(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".mp3")
}

// HasTag reports whether the file starts with an ID3v2 header.
func HasTag(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	header := make([]byte, 3)
	if _, err := io.ReadFull(f, header); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return false, nil
		}
		return false, err
	}
	return bytes.Equal(header, []byte("ID3")), nil
}

// ReadTitle returns the ID3 title of an mp3 file, or "" when the file carries no tag.
//
// Untagged files are left untouched; opening them through id3 would write a fresh tag on close.
func ReadTitle(path string) (string, error) {
	tagged, err := HasTag(path)
	if err != nil || !tagged {
		return "", err
	}

	f, err := id3.Open(path)
	if err != nil {
		return "", err
	}
	title := strings.Trim(f.Title(), "\x00 ")
	return title, f.Close()
}

// WriteTags sets the title and album of an mp3 file.
func WriteTags(path, title, album string) error {
	f, err := id3.Open(path)
	if err != nil {
		return err
	}
	f.SetTitle(title)
	if album != "" {
		f.SetAlbum(album)
	}
	return f.Close()
}
