package song

import "github.com/invasionlatina/backend/core"

// Normalize returns the form of a title or an artist used to detect duplicates:
// surrounding whitespace trimmed, lowercased. Nothing else is folded.
func Normalize(text string) string {
	return core.CleanString(text, true /* lower */)
}

// Key identifies a song within an event. Two requests with the same Key are the same song.
type Key struct {
	EventID string
	Title   string
	Artist  string
}

func KeyFor(eventID, title, artist string) Key {
	return Key{EventID: eventID, Title: Normalize(title), Artist: Normalize(artist)}
}

// Key returns the matching key of r.
func (r Request) Key() Key {
	return Key{EventID: r.EventID, Title: r.SongTitleNormalized, Artist: r.ArtistNameNormalized}
}
