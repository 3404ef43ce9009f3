// Package session owns the process-wide credential and language preference.
//
// Both values live in client-local storage. Outgoing requests never read the
// storage directly; they take a Context snapshot, which is immutable once
// returned. Only SetCredential, ClearCredential and ChangeLanguage mutate the
// stored values.
package session

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"golang.org/x/text/language"

	"github.com/abelbrown/crmdesk/internal/logging"
	"github.com/abelbrown/crmdesk/internal/otel"
	"github.com/abelbrown/crmdesk/internal/store"
)

// Language is a supported UI language code.
type Language string

const (
	English    Language = "en"
	Spanish    Language = "es"
	Portuguese Language = "pt"
)

// Supported lists the languages in fallback order; English first.
var Supported = []Language{English, Spanish, Portuguese}

// ErrUnsupportedLanguage is returned by ChangeLanguage for codes outside Supported.
var ErrUnsupportedLanguage = errors.New("session: unsupported language")

var matcher = language.NewMatcher([]language.Tag{language.English, language.Spanish, language.Portuguese})

// Tag returns the BCP 47 tag for l.
func (l Language) Tag() language.Tag {
	switch l {
	case Spanish:
		return language.Spanish
	case Portuguese:
		return language.Portuguese
	default:
		return language.English
	}
}

// ParseLanguage validates a language code. Region subtags are dropped,
// so "es-MX" is Spanish.
func ParseLanguage(s string) (Language, error) {
	tag, err := language.Parse(strings.TrimSpace(s))
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedLanguage, s)
	}
	base, _ := tag.Base()
	for _, l := range Supported {
		if base.String() == string(l) {
			return l, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedLanguage, s)
}

// SystemLanguage picks the closest supported language from the POSIX locale
// variables, or English.
func SystemLanguage() Language {
	var candidates []string
	for _, key := range []string{"LC_ALL", "LC_MESSAGES", "LANG"} {
		v := os.Getenv(key)
		if v == "" || v == "C" || v == "POSIX" {
			continue
		}
		// es_MX.UTF-8@euro -> es_MX
		if i := strings.IndexAny(v, ".@"); i >= 0 {
			v = v[:i]
		}
		candidates = append(candidates, strings.ReplaceAll(v, "_", "-"))
	}
	if len(candidates) == 0 {
		return English
	}
	_, idx := language.MatchStrings(matcher, candidates...)
	return Supported[idx]
}

// Context is a read-only snapshot of the session taken at request time.
type Context struct {
	Token    string
	Language Language
}

// HasToken reports whether a credential is present.
func (c Context) HasToken() bool {
	return c.Token != ""
}

// LanguageOrDefault returns the snapshot language, falling back to English.
func (c Context) LanguageOrDefault() Language {
	if c.Language == "" {
		return English
	}
	return c.Language
}

// Storage is the client-local key/value storage. *store.Store satisfies it.
type Storage interface {
	GetPref(key string) (string, bool, error)
	SetPref(key, value string) error
	DeletePref(key string) error
}

var _ Storage = (*store.Store)(nil)

// Provider hands out session snapshots.
type Provider interface {
	Context() Context
}

// Manager caches the stored values and persists every change.
type Manager struct {
	mu        sync.RWMutex
	storage   Storage
	ctx       Context
	listeners []func(Language)
	diag      *otel.Logger
}

// NewManager loads the credential and language from storage. A missing
// language falls back to the system locale, then English.
func NewManager(storage Storage, diag *otel.Logger) (*Manager, error) {
	m := &Manager{storage: storage, diag: diag}

	token, _, err := storage.GetPref(store.PrefAccessToken)
	if err != nil {
		return nil, fmt.Errorf("load credential: %w", err)
	}
	m.ctx.Token = token

	stored, ok, err := storage.GetPref(store.PrefLanguage)
	if err != nil {
		return nil, fmt.Errorf("load language: %w", err)
	}
	m.ctx.Language = SystemLanguage()
	if ok {
		if lang, err := ParseLanguage(stored); err == nil {
			m.ctx.Language = lang
		} else {
			logging.Warn("session: ignoring stored language", "value", stored)
		}
	}

	return m, nil
}

// Context returns the current snapshot.
func (m *Manager) Context() Context {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.ctx
}

// Language returns the current language.
func (m *Manager) Language() Language {
	return m.Context().LanguageOrDefault()
}

// SetCredential stores a new access token.
func (m *Manager) SetCredential(token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return m.ClearCredential()
	}
	if err := m.storage.SetPref(store.PrefAccessToken, token); err != nil {
		return fmt.Errorf("store credential: %w", err)
	}
	m.mu.Lock()
	m.ctx.Token = token
	m.mu.Unlock()
	return nil
}

// ClearCredential removes the stored token. Later requests omit Authorization.
func (m *Manager) ClearCredential() error {
	if err := m.storage.DeletePref(store.PrefAccessToken); err != nil {
		return fmt.Errorf("clear credential: %w", err)
	}
	m.mu.Lock()
	m.ctx.Token = ""
	m.mu.Unlock()
	return nil
}

// ChangeLanguage validates, persists and broadcasts a new language.
func (m *Manager) ChangeLanguage(code string) error {
	lang, err := ParseLanguage(code)
	if err != nil {
		return err
	}
	if err := m.storage.SetPref(store.PrefLanguage, string(lang)); err != nil {
		return fmt.Errorf("store language: %w", err)
	}

	m.mu.Lock()
	m.ctx.Language = lang
	listeners := append([]func(Language){}, m.listeners...)
	m.mu.Unlock()

	m.diag.Emit(otel.Event{Level: otel.LevelInfo, Kind: otel.KindSessionLanguage, Comp: "session", Msg: string(lang)})
	for _, fn := range listeners {
		fn(lang)
	}
	return nil
}

// OnLanguageChange registers fn to run after every successful ChangeLanguage.
func (m *Manager) OnLanguageChange(fn func(Language)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}

// Claims decodes the current token. See ParseClaims.
func (m *Manager) Claims() (Claims, error) {
	return ParseClaims(m.Context().Token)
}

// Static is a fixed Provider, handy for tests and one-shot CLI calls.
type Static Context

// Context implements Provider.
func (s Static) Context() Context {
	return Context(s)
}
