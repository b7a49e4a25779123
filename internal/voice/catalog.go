package voice

import (
	"strings"
	"unicode"
)

// BackendKind identifies a synthesis backend.
type BackendKind int

const (
	BackendNone BackendKind = iota
	BackendPiper
	BackendEspeak
)

// PiperConfig is the payload for a piper-backed voice.
type PiperConfig struct {
	Model string
	// Speaker pins a multi-speaker model to one voice. -1 means the
	// model default.
	Speaker int
	// SpeakerCandidates are probed in order against the model's actual
	// roster when Speaker is not pinned.
	SpeakerCandidates []string
}

// EspeakConfig is the payload for the espeak-ng fallback.
type EspeakConfig struct {
	Voice string
}

// Backend is a tagged variant: exactly one payload matches Kind.
type Backend struct {
	Kind   BackendKind
	Piper  *PiperConfig
	Espeak *EspeakConfig
	// LowercaseTurkish applies Turkish-safe lowercasing before
	// synthesis; some models mispronounce uppercase dotted I.
	LowercaseTurkish bool
}

type catalogKey struct {
	language string
	gender   string
}

// Catalog maps (language, gender) onto a backend configuration.
type Catalog struct {
	entries map[catalogKey]Backend
}

// DefaultCatalog returns the built-in voice roster.
func DefaultCatalog() *Catalog {
	c := &Catalog{entries: make(map[catalogKey]Backend)}
	add := func(language, gender, model string, lowercaseTurkish bool) {
		c.entries[catalogKey{language, gender}] = Backend{
			Kind:             BackendPiper,
			Piper:            &PiperConfig{Model: model, Speaker: -1},
			LowercaseTurkish: lowercaseTurkish,
		}
	}
	add("en", "female", "en_US-amy-medium", false)
	add("en", "male", "en_US-ryan-high", false)
	add("ru", "female", "ru_RU-irina-medium", false)
	add("ru", "male", "ru_RU-dmitri-medium", false)
	add("es", "male", "es_ES-davefx-medium", false)
	add("fr", "female", "fr_FR-siwis-medium", false)
	add("de", "male", "de_DE-thorsten-medium", false)
	add("it", "male", "it_IT-riccardo-x_low", false)
	add("tr", "male", "tr_TR-fahrettin-medium", true)

	// uk_UA-ukrainian_tts is a multi-speaker model; the voice is chosen
	// from its roster at synthesis time.
	ukrainian := func(gender string, candidates ...string) {
		c.entries[catalogKey{"uk", gender}] = Backend{
			Kind: BackendPiper,
			Piper: &PiperConfig{
				Model:             "uk_UA-ukrainian_tts-medium",
				Speaker:           -1,
				SpeakerCandidates: candidates,
			},
		}
	}
	ukrainian("female", "lada", "olena")
	ukrainian("male", "mykyta")
	return c
}

// Register adds or replaces a catalog entry.
func (c *Catalog) Register(language, gender string, backend Backend) {
	c.entries[catalogKey{strings.ToLower(language), strings.ToLower(gender)}] = backend
}

// Resolve looks up the backend for a (language, gender) pair. The second
// return is false when the pair is not in the catalog; callers branch on
// it instead of handling an error.
func (c *Catalog) Resolve(language, gender string) (Backend, bool) {
	backend, ok := c.entries[catalogKey{strings.ToLower(language), strings.ToLower(gender)}]
	return backend, ok
}

// ResolveAny tries the requested gender first, then any entry for the
// language.
func (c *Catalog) ResolveAny(language, gender string) (Backend, bool) {
	if backend, ok := c.Resolve(language, gender); ok {
		return backend, true
	}
	for _, other := range []string{"female", "male"} {
		if backend, ok := c.Resolve(language, other); ok {
			return backend, true
		}
	}
	return Backend{}, false
}

// NormalizeText applies the backend's text normalization rule.
func (b Backend) NormalizeText(text string) string {
	if b.LowercaseTurkish {
		return strings.ToLowerSpecial(unicode.TurkishCase, text)
	}
	return text
}
