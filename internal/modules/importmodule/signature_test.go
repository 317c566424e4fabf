package importmodule

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSignatureIsDeterministic(t *testing.T) {
	a := Signature("/Music/Song.mp3", 1024, 1700000000000)
	b := Signature("/Music/Song.mp3", 1024, 1700000000000)
	assert.Equal(t, a, b)
}

func TestSignatureIsCaseInsensitiveOnPath(t *testing.T) {
	a := Signature("/Music/SONG.mp3", 1024, 1700000000000)
	b := Signature("/music/song.mp3", 1024, 1700000000000)
	assert.Equal(t, a, b)
}

func TestSignatureChangesWithEachComponent(t *testing.T) {
	base := Signature("/music/song.mp3", 1024, 1700000000000)

	assert.NotEqual(t, base, Signature("/music/other.mp3", 1024, 1700000000000))
	assert.NotEqual(t, base, Signature("/music/song.mp3", 1025, 1700000000000))
	// A one-milli bump in mtime is a different identity.
	assert.NotEqual(t, base, Signature("/music/song.mp3", 1024, 1700000000001))
}

func TestCandidateSignaturePrefersPath(t *testing.T) {
	withPath := Candidate{Path: "/music/song.mp3", Name: "song.mp3", Size: 10, ModMillis: 5}
	nameOnly := Candidate{Name: "song.mp3", Size: 10, ModMillis: 5}

	assert.Equal(t, Signature("/music/song.mp3", 10, 5), CandidateSignature(withPath))
	assert.Equal(t, Signature("song.mp3", 10, 5), CandidateSignature(nameOnly))
}
