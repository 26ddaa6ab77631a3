package catalog

import (
	_ "embed"
	"fmt"
	"sort"

	"github.com/pelletier/go-toml/v2"

	"github.com/affirmstudio/api/internal/model"
)

//go:embed catalog.toml
var defaultCatalog []byte

// Track is a background bed known to the mixing engine.
type Track struct {
	ID         string `toml:"id" json:"id"`
	TitleRU    string `toml:"title_ru" json:"titleRu"`
	TitleEN    string `toml:"title_en" json:"titleEn"`
	Mood       string `toml:"mood" json:"mood"`
	Source     string `toml:"-" json:"source"`
	LicenseURL string `toml:"-" json:"licenseUrl"`
	PreviewURL string `toml:"-" json:"previewUrl,omitempty"`

	// Expression is the aevalsrc sum of sines for the generated bed.
	Expression string `toml:"expression" json:"-"`
	// LibraryKey locates the licensed recording in the blob store.
	LibraryKey string `toml:"library_key" json:"-"`
}

// VoiceBundle holds the provider-specific parameters of one logical voice.
type VoiceBundle struct {
	Yandex      string `toml:"yandex" json:"-"`
	EdgeVoice   string `toml:"edge_voice" json:"-"`
	EdgeRate    string `toml:"edge_rate" json:"-"`
	EdgePitch   string `toml:"edge_pitch" json:"-"`
	EspeakVoice string `toml:"espeak_voice" json:"-"`
	EspeakSpeed int    `toml:"espeak_speed" json:"-"`
	EspeakPitch int    `toml:"espeak_pitch" json:"-"`
}

// Voice is a system voice offered to users.
type Voice struct {
	ID      string   `toml:"id" json:"id"`
	Aliases []string `toml:"aliases" json:"-"`
	Gender  string   `toml:"gender" json:"gender"`
	LabelRU string   `toml:"label_ru" json:"labelRu"`
	LabelEN string   `toml:"label_en" json:"labelEn"`
	Style   string   `toml:"style" json:"style"`
	// PreviewURL is filled in by the HTTP layer.
	PreviewURL string `toml:"-" json:"previewUrl,omitempty"`
	VoiceBundle
}

type file struct {
	DefaultVoice  string      `toml:"default_voice"`
	DefaultTrack  string      `toml:"default_track"`
	LicenseURL    string      `toml:"license_url"`
	Source        string      `toml:"source"`
	FallbackVoice VoiceBundle `toml:"fallback_voice"`
	Tracks        []Track     `toml:"tracks"`
	Voices        []Voice     `toml:"voices"`
}

// Catalog is the read-only lookup of tracks and voices.
type Catalog struct {
	defaultVoice string
	defaultTrack string
	fallback     VoiceBundle
	tracks       []Track
	trackByID    map[string]Track
	voices       []Voice
	voiceByID    map[string]Voice
}

// Default parses the embedded catalog.
func Default() (*Catalog, error) {
	return Parse(defaultCatalog)
}

// MustDefault is Default for process startup.
func MustDefault() *Catalog {
	c, err := Default()
	if err != nil {
		panic(err)
	}
	return c
}

// Parse builds a Catalog from TOML.
func Parse(data []byte) (*Catalog, error) {
	var f file
	if err := toml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	if len(f.Tracks) == 0 {
		return nil, fmt.Errorf("catalog has no tracks")
	}

	c := &Catalog{
		defaultVoice: f.DefaultVoice,
		defaultTrack: f.DefaultTrack,
		fallback:     f.FallbackVoice,
		trackByID:    make(map[string]Track, len(f.Tracks)),
		voiceByID:    make(map[string]Voice, len(f.Voices)),
	}

	for _, t := range f.Tracks {
		if t.ID == "" || t.Expression == "" {
			return nil, fmt.Errorf("catalog track %q is incomplete", t.ID)
		}
		if _, dup := c.trackByID[t.ID]; dup {
			return nil, fmt.Errorf("duplicate catalog track %q", t.ID)
		}
		t.Source = f.Source
		t.LicenseURL = f.LicenseURL
		c.tracks = append(c.tracks, t)
		c.trackByID[t.ID] = t
	}
	if _, ok := c.trackByID[c.defaultTrack]; !ok {
		return nil, fmt.Errorf("default track %q is not in the catalog", c.defaultTrack)
	}

	for _, v := range f.Voices {
		c.voices = append(c.voices, v)
		c.voiceByID[v.ID] = v
		for _, alias := range v.Aliases {
			c.voiceByID[alias] = v
		}
	}

	return c, nil
}

// Tracks lists the tracks in catalog order.
func (c *Catalog) Tracks() []Track {
	out := make([]Track, len(c.tracks))
	copy(out, c.tracks)
	return out
}

// Track looks up a track by id.
func (c *Catalog) Track(id string) (Track, bool) {
	t, ok := c.trackByID[id]
	return t, ok
}

// HasTrack reports whether id names a known track.
func (c *Catalog) HasTrack(id string) bool {
	_, ok := c.trackByID[id]
	return ok
}

// DefaultTrack is the id used when a request omits the track.
func (c *Catalog) DefaultTrack() string {
	return c.defaultTrack
}

// Voices lists the system voices in catalog order.
func (c *Catalog) Voices() []Voice {
	out := make([]Voice, len(c.voices))
	copy(out, c.voices)
	return out
}

// DefaultVoice is the logical voice used when none is chosen.
func (c *Catalog) DefaultVoice() string {
	return c.defaultVoice
}

// Bundle resolves a logical voice to its provider parameters. Unknown ids get the fallback bundle.
func (c *Catalog) Bundle(voiceID string) VoiceBundle {
	if v, ok := c.voiceByID[voiceID]; ok {
		return v.VoiceBundle
	}
	return c.fallback
}

// Packages returns the demo package followed by the paid packages sorted by duration.
func Packages(demoDurationSec int, prices map[int]int) []model.Package {
	items := []model.Package{{
		Code:          fmt.Sprintf("demo_%ds", demoDurationSec),
		DurationSec:   demoDurationSec,
		DurationLabel: DurationLabel(demoDurationSec, demoDurationSec),
		Price:         0,
		IsDemo:        true,
	}}

	durations := make([]int, 0, len(prices))
	for d := range prices {
		if d != demoDurationSec {
			durations = append(durations, d)
		}
	}
	sort.Ints(durations)

	for _, d := range durations {
		items = append(items, model.Package{
			Code:          fmt.Sprintf("pack_%d", d),
			DurationSec:   d,
			DurationLabel: DurationLabel(d, demoDurationSec),
			Price:         prices[d],
		})
	}
	return items
}

// DurationLabel renders a human label for a package duration.
func DurationLabel(durationSec, demoDurationSec int) string {
	if durationSec == demoDurationSec {
		return fmt.Sprintf("%d sec demo", durationSec)
	}
	return fmt.Sprintf("%d min", durationSec/60)
}
