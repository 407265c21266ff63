package record

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFingerprintDeterminism(t *testing.T) {
	s := NewSnapshot([]string{"id", "title"}, []Record{
		{"id": Int(1), "title": String("A")},
	})

	f1, err := s.Fingerprint()
	require.NoError(t, err)
	f2, err := s.Fingerprint()
	require.NoError(t, err)

	assert.Equal(t, f1, f2)
	assert.Len(t, f1, 64, "SHA-256 hex is 64 characters")
}

func TestFingerprintTracksRowOrder(t *testing.T) {
	a := NewSnapshot([]string{"id"}, []Record{{"id": Int(1)}, {"id": Int(2)}})
	b := NewSnapshot([]string{"id"}, []Record{{"id": Int(2)}, {"id": Int(1)}})

	fa, err := a.Fingerprint()
	require.NoError(t, err)
	fb, err := b.Fingerprint()
	require.NoError(t, err)
	assert.NotEqual(t, fa, fb)
}

func TestCycleIDChangesWithInput(t *testing.T) {
	id1, err := CycleID("s1", "movies", "k1", 1)
	require.NoError(t, err)
	id2, err := CycleID("s1", "movies", "k1", 2)
	require.NoError(t, err)
	id3, err := CycleID("s2", "movies", "k1", 1)
	require.NoError(t, err)

	assert.NotEqual(t, id1, id2)
	assert.NotEqual(t, id1, id3)
}

func TestDomainSeparation(t *testing.T) {
	data := []byte(`{"a":1}`)
	assert.NotEqual(t, hashWithDomain(DomainSnapshot, data), hashWithDomain(DomainCycle, data))
}
