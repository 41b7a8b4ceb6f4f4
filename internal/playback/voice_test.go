package playback

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSelectVoice(t *testing.T) {
	tests := []struct {
		name   string
		voices []Voice
		want   string
		ok     bool
	}{
		{
			name:   "priority order wins",
			voices: []Voice{{Name: "en", Lang: "en-US"}, {Name: "mx", Lang: "es-MX"}, {Name: "es", Lang: "es-ES"}},
			want:   "es",
			ok:     true,
		},
		{
			name:   "underscore tags",
			voices: []Voice{{Name: "ar", Lang: "es_AR"}, {Name: "us", Lang: "es_US"}},
			want:   "us",
			ok:     true,
		},
		{
			name:   "any spanish voice",
			voices: []Voice{{Name: "fr", Lang: "fr-FR"}, {Name: "pe", Lang: "es-PE"}},
			want:   "pe",
			ok:     true,
		},
		{
			name:   "no spanish voice",
			voices: []Voice{{Name: "en", Lang: "en-GB"}, {Name: "est", Lang: "et-EE"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, ok := SelectVoice(tt.voices, DefaultPriorities)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, v.Name)
		})
	}
}

func TestUtteranceFallsBackToDefaultLang(t *testing.T) {
	u := DefaultSettings().utterance("t1", "hola", []Voice{{Name: "en", Lang: "en-US"}})
	assert.Nil(t, u.Voice)
	assert.Equal(t, DefaultLang, u.Lang)
	assert.InDelta(t, 0.85, u.Rate, 1e-9)
	assert.InDelta(t, 1.0, u.Pitch, 1e-9)
	assert.InDelta(t, 0.9, u.Volume, 1e-9)
}

func TestSettingsWithDefaults(t *testing.T) {
	s := Settings{Rate: 1.2}.withDefaults()
	assert.InDelta(t, 1.2, s.Rate, 1e-9)
	assert.InDelta(t, 0.9, s.Volume, 1e-9)
	assert.Equal(t, DefaultPriorities, s.Priorities)
}
