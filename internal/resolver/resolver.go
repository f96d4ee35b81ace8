// Package resolver decides whether a message is a follow-up about a product
// already on screen, and which product it refers to.
package resolver

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/Veraticus/shopassist/internal/catalog"
	"github.com/Veraticus/shopassist/internal/intent"
	"github.com/Veraticus/shopassist/internal/session"
)

// Outcome is the result kind of a resolution.
type Outcome int

const (
	// OutcomeNone means the message is not a targeted product question.
	OutcomeNone Outcome = iota
	// OutcomeFound means the message is about Resolution.Target.
	OutcomeFound
	// OutcomeNeedsClarification means the message asks about a product that
	// cannot be identified.
	OutcomeNeedsClarification
)

// String returns a lowercase name for logs.
func (o Outcome) String() string {
	switch o {
	case OutcomeFound:
		return "found"
	case OutcomeNeedsClarification:
		return "needs_clarification"
	default:
		return "none"
	}
}

// Source names where the target came from.
type Source string

// Target sources.
const (
	SourceNone       Source = ""
	SourcePositional Source = "positional"
	SourceSelected   Source = "selected"
	SourceContext    Source = "context"
)

// QuestionType is the aspect of a product being asked about.
type QuestionType string

// Question types.
const (
	TypeNone         QuestionType = ""
	TypeImages       QuestionType = "images"
	TypeColor        QuestionType = "color"
	TypeSize         QuestionType = "size"
	TypeMaterial     QuestionType = "material"
	TypeDiscount     QuestionType = "discount"
	TypePrice        QuestionType = "price"
	TypeAvailability QuestionType = "availability"
	TypeOptions      QuestionType = "options"
	TypeGeneral      QuestionType = "general"
)

// Resolution is the outcome of resolving one message.
type Resolution struct {
	Outcome             Outcome
	IsProductQuestion   bool
	QuestionType        QuestionType
	HasProductReference bool
	ShouldUseContext    bool
	Target              *catalog.Product
	Source              Source
	// Position is the 1-based position the message referred to, if any.
	Position int
}

// DefaultOverlapThreshold is the share of significant title words a message
// must contain to count as naming the product.
const DefaultOverlapThreshold = 0.5

// Resolver resolves product references.
type Resolver struct {
	keywordFallback  bool
	overlapThreshold float64
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithKeywordFallback toggles treating any broad product keyword as a
// general product question when no specific type matched.
func WithKeywordFallback(enabled bool) Option {
	return func(r *Resolver) {
		r.keywordFallback = enabled
	}
}

// WithOverlapThreshold sets the title overlap ratio in (0, 1].
func WithOverlapThreshold(t float64) Option {
	return func(r *Resolver) {
		if t > 0 && t <= 1 {
			r.overlapThreshold = t
		}
	}
}

// New creates a resolver. Keyword fallback is on by default.
func New(opts ...Option) *Resolver {
	r := &Resolver{
		keywordFallback:  true,
		overlapThreshold: DefaultOverlapThreshold,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

var (
	typePatterns = []struct {
		qtype QuestionType
		re    *regexp.Regexp
	}{
		{TypeImages, regexp.MustCompile(`(?i)\b(?:images?|photos?|pictures?|pics?|look|looks)\b`)},
		{TypeColor, regexp.MustCompile(`(?i)\b(?:colou?rs?)\b`)},
		{TypeSize, regexp.MustCompile(`(?i)\b(?:sizes?|sizing|fits?)\b`)},
		{TypeMaterial, regexp.MustCompile(`(?i)\b(?:materials?|fabrics?|made\s+(?:of|from)|textile)\b`)},
		{TypeDiscount, regexp.MustCompile(`(?i)\b(?:discounts?|discounted|sale|offers?|deals?|coupons?|promo)\b`)},
		{TypePrice, regexp.MustCompile(`(?i)\b(?:prices?|priced|cost|costs|how\s+much|expensive)\b`)},
		{TypeAvailability, regexp.MustCompile(`(?i)\b(?:stock|available|availability|sold\s+out|inventory)\b`)},
		{TypeOptions, regexp.MustCompile(`(?i)\b(?:options?|variants?|versions?|choices)\b`)},
	}

	broadKeywords = []string{
		"color", "colour", "size", "available", "price", "cost", "discount",
		"stock", "option", "material", "image", "photo", "look",
	}

	newSearchPattern   = regexp.MustCompile(`(?i)\b(?:show\s+me|find|search|looking\s+for|look\s+for|do\s+you\s+have|do\s+you\s+sell|i\s+want|i\s+need|get\s+me|recommend)\b`)
	referentialPattern = regexp.MustCompile(`(?i)\b(?:it|its|it's|this|that|these|those|them|one|ones)\b`)
	questionPattern    = regexp.MustCompile(`(?i)(?:\?\s*$|^\s*(?:is|are|does|do|can|could|what|how|which|tell\s+me))`)
)

// DetectQuestionType returns the first matching product aspect, or TypeNone.
func DetectQuestionType(message string) QuestionType {
	for _, tp := range typePatterns {
		if tp.re.MatchString(message) {
			return tp.qtype
		}
	}
	return TypeNone
}

// Resolve resolves message against the session's products. Order:
// an explicit position on the current page, the selected product, then the
// product in focus.
func (r *Resolver) Resolve(message string, st *session.State, prefs intent.Preferences) Resolution {
	qtype := DetectQuestionType(message)

	if prefs.Position != nil {
		return r.resolvePositional(*prefs.Position, st, qtype)
	}

	var res Resolution
	switch {
	case st != nil && st.SelectedProduct != nil:
		res.Target, res.Source = st.SelectedProduct, SourceSelected
	case st != nil && st.ContextProduct != nil:
		res.Target, res.Source = st.ContextProduct, SourceContext
	}
	if res.Target != nil {
		res.HasProductReference = r.mentionsTitle(message, res.Target.Title)
	}

	referential := referentialPattern.MatchString(message)
	newSearch := newSearchPattern.MatchString(message) && !referential

	switch {
	case newSearch:
		res.IsProductQuestion = false
	case qtype != TypeNone:
		res.IsProductQuestion = true
		res.QuestionType = qtype
	case res.Target != nil && r.keywordFallback && containsBroadKeyword(message):
		res.IsProductQuestion = true
		res.QuestionType = TypeGeneral
	case res.Target != nil && res.HasProductReference:
		res.IsProductQuestion = true
		res.QuestionType = TypeGeneral
	case res.Target != nil && referential && questionPattern.MatchString(message):
		res.IsProductQuestion = true
		res.QuestionType = TypeGeneral
	}

	switch {
	case res.IsProductQuestion && res.Target == nil:
		res.Outcome = OutcomeNeedsClarification
	case res.IsProductQuestion:
		res.Outcome = OutcomeFound
		res.ShouldUseContext = true
	default:
		res.Outcome = OutcomeNone
		res.QuestionType = TypeNone
		res.Target, res.Source = nil, SourceNone
	}
	return res
}

func (r *Resolver) resolvePositional(n int, st *session.State, qtype QuestionType) Resolution {
	if qtype == TypeNone {
		qtype = TypeGeneral
	}
	res := Resolution{
		IsProductQuestion:   true,
		QuestionType:        qtype,
		HasProductReference: true,
		Position:            n,
	}
	if st == nil || n < 1 || n > len(st.RecentProducts) {
		res.Outcome = OutcomeNeedsClarification
		return res
	}
	p, ok := st.Numbered(n)
	if !ok {
		res.Outcome = OutcomeNeedsClarification
		return res
	}
	res.Outcome = OutcomeFound
	res.Target = p
	res.Source = SourcePositional
	res.ShouldUseContext = true
	return res
}

// mentionsTitle reports whether message names the product: enough of the
// title's significant words appear, or the message says "for <title>".
func (r *Resolver) mentionsTitle(message, title string) bool {
	lowerMsg := strings.ToLower(message)
	lowerTitle := strings.ToLower(strings.TrimSpace(title))
	if lowerTitle != "" && strings.Contains(lowerMsg, "for "+lowerTitle) {
		return true
	}

	significant := significantWords(lowerTitle)
	if len(significant) == 0 {
		return false
	}
	msgWords := make(map[string]struct{})
	for _, w := range words(lowerMsg) {
		msgWords[w] = struct{}{}
	}
	matched := 0
	for _, w := range significant {
		if _, ok := msgWords[w]; ok {
			matched++
		}
	}
	return float64(matched)/float64(len(significant)) >= r.overlapThreshold
}

func significantWords(s string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, w := range words(s) {
		if len(w) <= 3 {
			continue
		}
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		out = append(out, w)
	}
	return out
}

func words(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func containsBroadKeyword(message string) bool {
	lower := strings.ToLower(message)
	for _, k := range broadKeywords {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}
