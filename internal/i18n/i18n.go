// Package i18n loads the en/es/pt message bundles and formats translated
// strings. Keys are dotted paths into the YAML bundles ("auth.errorQuerying").
// A key missing from a language falls back to English; a key missing from
// English renders as the key itself.
package i18n

import (
	"embed"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
	"gopkg.in/yaml.v3"

	"github.com/abelbrown/crmdesk/internal/session"
)

//go:embed locales/*.yaml
var locales embed.FS

// Bundle holds compiled catalogs for every supported language.
type Bundle struct {
	keys     map[session.Language]map[string]bool
	printers map[session.Language]*message.Printer
}

// Load parses the embedded bundles.
func Load() (*Bundle, error) {
	b := &Bundle{
		keys:     make(map[session.Language]map[string]bool),
		printers: make(map[session.Language]*message.Printer),
	}
	cat := catalog.NewBuilder(catalog.Fallback(language.English))

	for _, lang := range session.Supported {
		raw, err := locales.ReadFile("locales/" + string(lang) + ".yaml")
		if err != nil {
			return nil, fmt.Errorf("read %s bundle: %w", lang, err)
		}
		var tree map[string]any
		if err := yaml.Unmarshal(raw, &tree); err != nil {
			return nil, fmt.Errorf("parse %s bundle: %w", lang, err)
		}

		flat := make(map[string]string)
		flatten("", tree, flat)

		b.keys[lang] = make(map[string]bool, len(flat))
		for key, msg := range flat {
			if err := cat.SetString(lang.Tag(), key, msg); err != nil {
				return nil, fmt.Errorf("%s %s: %w", lang, key, err)
			}
			b.keys[lang][key] = true
		}
	}

	for _, lang := range session.Supported {
		b.printers[lang] = message.NewPrinter(lang.Tag(), message.Catalog(cat))
	}
	return b, nil
}

// MustLoad is Load for program start-up and tests.
func MustLoad() *Bundle {
	b, err := Load()
	if err != nil {
		panic(err)
	}
	return b
}

// flatten turns nested maps into dotted keys, the way the endpoint registry
// resolves nested groups.
func flatten(prefix string, node map[string]any, out map[string]string) {
	for k, v := range node {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		switch val := v.(type) {
		case map[string]any:
			flatten(key, val, out)
		case string:
			out[key] = val
		default:
			out[key] = fmt.Sprint(val)
		}
	}
}

// T translates key into lang, formatting args with the message's verbs.
func (b *Bundle) T(lang session.Language, key string, args ...any) string {
	if !b.Has(lang, key) {
		lang = session.English
		if !b.Has(lang, key) {
			return key
		}
	}
	return b.printers[lang].Sprintf(key, args...)
}

// Has reports whether lang defines key directly.
func (b *Bundle) Has(lang session.Language, key string) bool {
	return b.keys[lang][key]
}

// Keys returns every key defined for lang, sorted.
func (b *Bundle) Keys(lang session.Language) []string {
	out := make([]string, 0, len(b.keys[lang]))
	for k := range b.keys[lang] {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Missing lists English keys that lang does not translate.
func (b *Bundle) Missing(lang session.Language) []string {
	var out []string
	for _, k := range b.Keys(session.English) {
		if !b.Has(lang, k) {
			out = append(out, k)
		}
	}
	return out
}

// Translator binds a Bundle to a language source so callers can write
// tr.T("modals.successSave") without threading the language through.
type Translator struct {
	bundle *Bundle
	lang   func() session.Language
}

// For returns a Translator that reads the language from p on every call.
func (b *Bundle) For(p session.Provider) Translator {
	return Translator{bundle: b, lang: func() session.Language {
		return p.Context().LanguageOrDefault()
	}}
}

// Fixed returns a Translator pinned to one language.
func (b *Bundle) Fixed(lang session.Language) Translator {
	return Translator{bundle: b, lang: func() session.Language { return lang }}
}

// T translates key in the current language.
func (t Translator) T(key string, args ...any) string {
	if t.bundle == nil {
		return key
	}
	return t.bundle.T(t.lang(), key, args...)
}

// Language returns the language the translator currently resolves to.
func (t Translator) Language() session.Language {
	if t.lang == nil {
		return session.English
	}
	return t.lang()
}

// Join translates key and appends suffix with a single space, as in
// "Error querying catalogs/hotel".
func (t Translator) Join(key, suffix string) string {
	return strings.TrimSpace(t.T(key) + " " + suffix)
}
