package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalog(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	ids := make([]string, 0)
	for _, tr := range c.Tracks() {
		ids = append(ids, tr.ID)
		assert.NotEmpty(t, tr.Expression, tr.ID)
		assert.Equal(t, "https://creativecommons.org/publicdomain/zero/1.0/", tr.LicenseURL)
	}
	assert.Equal(t, []string{"calm-1", "calm-2", "calm-3", "deep-1"}, ids)
	assert.Equal(t, "calm-1", c.DefaultTrack())
	assert.Equal(t, "jane", c.DefaultVoice())
	assert.Len(t, c.Voices(), 6)

	track, ok := c.Track("deep-1")
	require.True(t, ok)
	assert.Equal(t, "Deep Breathing", track.TitleEN)
	assert.False(t, c.HasTrack("ambient-9"))
}

func TestBundleLookup(t *testing.T) {
	c := MustDefault()

	jane := c.Bundle("jane")
	assert.Equal(t, "jane", jane.Yandex)
	assert.Equal(t, "ru-RU-SvetlanaNeural", jane.EdgeVoice)
	assert.Equal(t, 145, jane.EspeakSpeed)

	// alias of the alice preset
	alyss := c.Bundle("alyss")
	assert.Equal(t, "alena", alyss.Yandex)
	assert.Equal(t, "-6%", alyss.EdgeRate)

	unknown := c.Bundle("nobody")
	assert.Equal(t, "", unknown.Yandex)
	assert.Equal(t, "ru+f2", unknown.EspeakVoice)
	assert.Equal(t, 50, unknown.EspeakPitch)
}

func TestParseRejectsBrokenCatalogs(t *testing.T) {
	_, err := Parse([]byte(`default_track = "x"`))
	assert.Error(t, err)

	_, err = Parse([]byte(`
default_track = "a"
[[tracks]]
id = "a"
expression = "sin(t)"
[[tracks]]
id = "a"
expression = "sin(t)"
`))
	assert.ErrorContains(t, err, "duplicate")

	_, err = Parse([]byte(`
default_track = "missing"
[[tracks]]
id = "a"
expression = "sin(t)"
`))
	assert.ErrorContains(t, err, "default track")
}

func TestPackages(t *testing.T) {
	pkgs := Packages(30, map[int]int{300: 450, 120: 190, 180: 290, 240: 390})
	require.Len(t, pkgs, 5)

	assert.Equal(t, "demo_30s", pkgs[0].Code)
	assert.True(t, pkgs[0].IsDemo)
	assert.Equal(t, "30 sec demo", pkgs[0].DurationLabel)
	assert.Equal(t, 0, pkgs[0].Price)

	assert.Equal(t, "pack_120", pkgs[1].Code)
	assert.Equal(t, "2 min", pkgs[1].DurationLabel)
	assert.Equal(t, 450, pkgs[4].Price)
}
