package audio

import (
	"os"
	"strings"

	"github.com/dhowden/tag"
)

// Tags holds embedded metadata useful as classification hints.
type Tags struct {
	Title  string
	Artist string
	Album  string
	Genre  string
	Year   int
}

// Empty reports whether no tag carried a value.
func (t Tags) Empty() bool {
	return t.Title == "" && t.Artist == "" && t.Album == "" && t.Genre == "" && t.Year == 0
}

// ReadTags reads ID3/MP4/FLAC/OGG tags from path. Files without tags return
// an empty Tags and the library error.
func ReadTags(path string) (Tags, error) {
	f, err := os.Open(path)
	if err != nil {
		return Tags{}, err
	}
	defer f.Close()

	m, err := tag.ReadFrom(f)
	if err != nil {
		return Tags{}, err
	}
	return Tags{
		Title:  strings.TrimSpace(m.Title()),
		Artist: strings.TrimSpace(m.Artist()),
		Album:  strings.TrimSpace(m.Album()),
		Genre:  strings.TrimSpace(m.Genre()),
		Year:   m.Year(),
	}, nil
}
