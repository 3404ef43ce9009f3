// Package rules holds the form validation rules shared by every edit form.
//
// A rule checks one string value and names the i18n key of its message.
// Empty values pass every rule except Required, so optional fields only
// validate what the user typed.
package rules

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/abelbrown/crmdesk/internal/i18n"
	"github.com/abelbrown/crmdesk/internal/phone"
)

// Rule validates a single value.
type Rule struct {
	Key  string // message key, "rules.required"
	Args []any  // message arguments
	// checkEmpty runs the check on empty values too.
	checkEmpty bool
	check      func(value string) bool
}

// Violation is a failed rule.
type Violation struct {
	Key  string
	Args []any
}

// Message translates the violation.
func (v Violation) Message(tr i18n.Translator) string {
	return tr.T(v.Key, v.Args...)
}

// Set is an ordered list of rules for one field.
type Set []Rule

// Validate runs every rule in order and returns the failures.
func (s Set) Validate(value string) []Violation {
	var out []Violation
	for _, r := range s {
		if value == "" && !r.checkEmpty {
			continue
		}
		if !r.check(value) {
			out = append(out, Violation{Key: r.Key, Args: r.Args})
		}
	}
	return out
}

// First returns the first failure, if any.
func (s Set) First(value string) (Violation, bool) {
	v := s.Validate(value)
	if len(v) == 0 {
		return Violation{}, false
	}
	return v[0], true
}

// Validate is Set(rules).Validate(value).
func Validate(value string, rules ...Rule) []Violation {
	return Set(rules).Validate(value)
}

var (
	noSpecialChars      = regexp.MustCompile(`^[a-zA-Z0-9 ñÑáÁéÉíÍóÓúÚüÜ]+$`)
	noSpecialCharsPhone = regexp.MustCompile(`^\+?[a-zA-Z0-9 ñÑáÁéÉíÍóÓúÚüÜ]+$`)
	onlyNumber          = regexp.MustCompile(`^[0-9]+$`)
	alphabetWithDot     = regexp.MustCompile(`^[a-zA-Z]+\.$`)
	email               = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
)

// MaxCharLen limits the value to n characters.
func MaxCharLen(n int) Rule {
	return Rule{Key: "rules.maxCharLen", Args: []any{n}, check: func(v string) bool {
		return utf8.RuneCountInString(v) <= n
	}}
}

// MinCharLen requires at least n characters.
func MinCharLen(n int) Rule {
	return Rule{Key: "rules.minCharLen", Args: []any{n}, check: func(v string) bool {
		return utf8.RuneCountInString(v) >= n
	}}
}

// Required rejects empty and whitespace-only values.
func Required() Rule {
	return Rule{Key: "rules.required", checkEmpty: true, check: func(v string) bool {
		return strings.TrimSpace(v) != ""
	}}
}

// NoSpecialChars allows letters, digits, spaces and Spanish accents.
func NoSpecialChars() Rule {
	return Rule{Key: "rules.onlyNumbersAndLetters", check: noSpecialChars.MatchString}
}

// NoSpecialCharsPhone is NoSpecialChars with an optional leading "+".
func NoSpecialCharsPhone() Rule {
	return Rule{Key: "rules.onlyNumbersAndLetters", check: noSpecialCharsPhone.MatchString}
}

// OnlyNumber allows ASCII digits.
func OnlyNumber() Rule {
	return Rule{Key: "rules.onlyNumbers", check: onlyNumber.MatchString}
}

// AlphabetWithDot allows letters followed by one final dot, as in "Lic.".
func AlphabetWithDot() Rule {
	return Rule{Key: "rules.onlyLettersAndFinalDot", check: alphabetWithDot.MatchString}
}

// Email requires an address shape.
func Email() Rule {
	return Rule{Key: "rules.validEmail", check: email.MatchString}
}

// ValidPhoneNumber requires a present value to be a valid international number.
func ValidPhoneNumber() Rule {
	return Rule{Key: "rules.validPhoneNumber", check: phone.Valid}
}

// RequiredPhoneNumber requires both the calling code and the number of a
// "+code number" value.
func RequiredPhoneNumber() Rule {
	return Rule{Key: "rules.required", checkEmpty: true, check: func(v string) bool {
		if strings.TrimSpace(v) == "" {
			return false
		}
		parts := strings.Split(v, " ")
		return len(parts) >= 2 && strings.Join(parts[1:], "") != ""
	}}
}

// Field rule sets used across the catalog forms.
var (
	OnlyNumberSet                = Set{MaxCharLen(15), OnlyNumber()}
	OnlyPhone                    = Set{MaxCharLen(13), OnlyNumber()}
	RequiredMediumStringWithDot  = Set{MaxCharLen(50), Required(), AlphabetWithDot()}
	RequiredMediumString         = Set{MaxCharLen(50), Required(), NoSpecialChars()}
	RequiredFiveChars            = Set{MaxCharLen(5), Required(), NoSpecialChars()}
	RequiredUID                  = Set{MaxCharLen(50), Required()}
	RequiredMediumStringSpecials = Set{MaxCharLen(50), Required()}
	RequiredOnlyNumber           = Set{MaxCharLen(15), Required(), OnlyNumber()}
	RequiredPhone                = Set{MaxCharLen(13), Required(), OnlyNumber()}
	RequiredLongString           = Set{MaxCharLen(100), Required(), NoSpecialChars()}
	RequiredShortString          = Set{MaxCharLen(13), Required(), NoSpecialChars()}
	RequiredVeryShortString      = Set{MaxCharLen(10), Required(), NoSpecialChars()}
	RequiredVeryLongString       = Set{MaxCharLen(500), Required(), NoSpecialChars()}
	RequiredEmail                = Set{Required(), Email()}
	RequiredInternationalPhone   = Set{RequiredPhoneNumber(), ValidPhoneNumber()}
	InternationalPhone           = Set{ValidPhoneNumber()}
)
