package playback

import "strings"

// DefaultLang is used when no Spanish voice is installed.
const DefaultLang = "es-ES"

// DefaultPriorities is the preferred order of Spanish locales.
var DefaultPriorities = []string{"es-ES", "es-MX", "es-US", "es-AR", "es-CO"}

// Settings tune every utterance a Controller starts.
type Settings struct {
	Rate        float64
	Pitch       float64
	Volume      float64
	DefaultLang string
	Priorities  []string
}

// DefaultSettings returns the slightly slowed, slightly quieter voice
// parameters used for reading replies.
func DefaultSettings() Settings {
	return Settings{
		Rate:        0.85,
		Pitch:       1.0,
		Volume:      0.9,
		DefaultLang: DefaultLang,
		Priorities:  append([]string(nil), DefaultPriorities...),
	}
}

func (s Settings) withDefaults() Settings {
	d := DefaultSettings()
	if s.Rate <= 0 {
		s.Rate = d.Rate
	}
	if s.Pitch <= 0 {
		s.Pitch = d.Pitch
	}
	if s.Volume <= 0 {
		s.Volume = d.Volume
	}
	if s.DefaultLang == "" {
		s.DefaultLang = d.DefaultLang
	}
	if len(s.Priorities) == 0 {
		s.Priorities = d.Priorities
	}
	return s
}

// SelectVoice picks the best Spanish voice: the first priority locale with
// an exact match, then any Spanish voice. ok is false when none is Spanish.
func SelectVoice(voices []Voice, priorities []string) (Voice, bool) {
	var spanish []Voice
	for _, v := range voices {
		if isSpanish(v.Lang) {
			spanish = append(spanish, v)
		}
	}
	if len(spanish) == 0 {
		return Voice{}, false
	}

	for _, want := range priorities {
		for _, v := range spanish {
			if strings.EqualFold(normalizeLang(v.Lang), want) {
				return v, true
			}
		}
	}
	return spanish[0], true
}

func isSpanish(lang string) bool {
	lang = strings.ToLower(normalizeLang(lang))
	return lang == "es" || strings.HasPrefix(lang, "es-")
}

func normalizeLang(lang string) string {
	return strings.ReplaceAll(strings.TrimSpace(lang), "_", "-")
}

// utterance builds the utterance for text using the best available voice.
func (s Settings) utterance(trigger TriggerID, text string, voices []Voice) Utterance {
	u := Utterance{
		Trigger: trigger,
		Text:    text,
		Lang:    s.DefaultLang,
		Rate:    s.Rate,
		Pitch:   s.Pitch,
		Volume:  s.Volume,
	}
	if v, ok := SelectVoice(voices, s.Priorities); ok {
		u.Voice = &v
		u.Lang = v.Lang
	}
	return u
}
