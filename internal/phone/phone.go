// Package phone parses, formats and lists phone numbers by country.
// Values travel as "+<calling code> <national number>", e.g. "+52 5512345678".
package phone

import (
	"strconv"
	"strings"
	"sync"

	"github.com/nyaruka/phonenumbers"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"github.com/abelbrown/crmdesk/internal/filter"
	"github.com/abelbrown/crmdesk/internal/session"
)

// DefaultCountry is used when a number carries no recognizable country.
const DefaultCountry = "MX"

// MaxLength caps the national number input.
const MaxLength = 250

const unknownRegion = "ZZ"

// Format joins a calling code and a national number. A possible number is
// rendered in international format; anything else as "+lada number". Either
// part missing gives "".
func Format(lada, number string) string {
	lada = strings.TrimPrefix(strings.TrimSpace(lada), "+")
	number = strings.TrimSpace(number)
	if lada == "" || number == "" {
		return ""
	}
	raw := "+" + lada + " " + number
	if num, err := phonenumbers.Parse(raw, unknownRegion); err == nil && phonenumbers.IsPossibleNumber(num) {
		return phonenumbers.Format(num, phonenumbers.INTERNATIONAL)
	}
	return raw
}

// Parts is a number split into country and national digits.
type Parts struct {
	CountryCode string // region ("US") when parsed, calling code digits ("1") otherwise
	CellPhone   string
}

// Split separates the country from the number. A parseable, possible number
// yields its region and national number; anything else is split on the first
// space with the leading "+" dropped.
func Split(phone string) Parts {
	if num, err := phonenumbers.Parse(phone, unknownRegion); err == nil && phonenumbers.IsPossibleNumber(num) {
		region := phonenumbers.GetRegionCodeForNumber(num)
		if region == unknownRegion {
			region = ""
		}
		return Parts{CountryCode: region, CellPhone: phonenumbers.GetNationalSignificantNumber(num)}
	}
	fields := strings.Split(phone, " ")
	return Parts{
		CountryCode: strings.ReplaceAll(fields[0], "+", ""),
		CellPhone:   strings.Join(fields[1:], ""),
	}
}

// CountryByCallingCode maps "+52" (or "52") to "MX". Unknown codes give "".
func CountryByCallingCode(code string) string {
	n, err := strconv.Atoi(strings.TrimPrefix(strings.TrimSpace(code), "+"))
	if err != nil || n <= 0 {
		return ""
	}
	region := phonenumbers.GetRegionCodeForCountryCode(n)
	if region == "" || region == unknownRegion {
		return ""
	}
	return region
}

// CallingCode returns "+<code>" for a region, or "" when unknown.
func CallingCode(region string) string {
	n := phonenumbers.GetCountryCodeForRegion(strings.ToUpper(region))
	if n == 0 {
		return ""
	}
	return "+" + strconv.Itoa(n)
}

// Parsed is a number resolved to a region.
type Parsed struct {
	Country  string
	National string
}

// ParseWithDefault resolves phone to a region and national number, falling
// back to DefaultCountry. Used to seed the phone input from a stored value.
func ParseWithDefault(phone string) Parsed {
	out := Parsed{Country: DefaultCountry, National: phone}

	if num, err := phonenumbers.Parse(phone, unknownRegion); err == nil {
		if region := phonenumbers.GetRegionCodeForNumber(num); region != "" && region != unknownRegion {
			out.Country = region
		}
		if national := phonenumbers.GetNationalSignificantNumber(num); national != "" {
			out.National = national
		}
		return out
	}

	parts := strings.Split(phone, " ")
	if len(parts) > 1 {
		if region := CountryByCallingCode(parts[0]); region != "" {
			out.Country = region
		}
		out.National = strings.Join(parts[1:], " ")
	}
	return out
}

// Valid reports whether phone is a valid international number.
func Valid(phone string) bool {
	num, err := phonenumbers.Parse(phone, unknownRegion)
	if err != nil {
		return false
	}
	return phonenumbers.IsValidNumber(num)
}

// Flag returns the regional-indicator emoji for a two-letter region.
func Flag(region string) string {
	region = strings.ToUpper(region)
	if len(region) != 2 {
		return ""
	}
	var b strings.Builder
	for _, c := range region {
		if c < 'A' || c > 'Z' {
			return ""
		}
		b.WriteRune(0x1F1E6 + (c - 'A'))
	}
	return b.String()
}

// Country is one entry of the country selector.
type Country struct {
	Region      string // "MX"
	Name        string // localized, "México"
	Flag        string
	CallingCode string // "+52"
}

// Label renders the option the way the selector lists it.
func (c Country) Label() string {
	return c.Flag + " " + c.Name + " " + c.CallingCode
}

var (
	countriesMu    sync.Mutex
	countriesCache = map[session.Language][]Country{}
)

// Countries lists every supported region with names in lang, sorted by
// lang's collation. The result is shared; callers must not modify it.
func Countries(lang session.Language) []Country {
	countriesMu.Lock()
	defer countriesMu.Unlock()
	if list, ok := countriesCache[lang]; ok {
		return list
	}

	namer := display.Regions(lang.Tag())
	english := display.Regions(language.English)

	regions := phonenumbers.GetSupportedRegions()
	list := make([]Country, 0, len(regions))
	for region := range regions {
		r, err := language.ParseRegion(region)
		if err != nil {
			continue
		}
		name := namer.Name(r)
		if name == "" {
			name = english.Name(r)
		}
		if name == "" {
			name = region
		}
		list = append(list, Country{
			Region:      region,
			Name:        name,
			Flag:        Flag(region),
			CallingCode: CallingCode(region),
		})
	}

	list = filter.SortLocalized(list, lang, func(c Country) string { return c.Name })
	countriesCache[lang] = list
	return list
}

// FindCountry returns the entry for region in lang.
func FindCountry(lang session.Language, region string) (Country, bool) {
	region = strings.ToUpper(region)
	for _, c := range Countries(lang) {
		if c.Region == region {
			return c, true
		}
	}
	return Country{}, false
}

// allowedKeys are the editing keys the digits-only input accepts.
var allowedKeys = map[string]bool{
	"backspace": true,
	"home":      true,
	"end":       true,
	"left":      true,
	"right":     true,
	"delete":    true,
	"tab":       true,
	"enter":     true,
}

// OnlyDigitsKey reports whether a key press may reach a digits-only input.
// Key names follow bubbletea's KeyMsg.String().
func OnlyDigitsKey(key string) bool {
	if allowedKeys[key] {
		return true
	}
	return len(key) == 1 && key[0] >= '0' && key[0] <= '9'
}
