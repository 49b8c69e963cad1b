package sso

import (
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"
)

// Kind tags the classification of one SSO response body.
type Kind int

const (
	KindUnclassified Kind = iota
	KindTicket
	KindMFACodeRequired
	KindMFASetupRequired
	KindInvalidCredentials
	KindAccountLocked
)

func (k Kind) String() string {
	switch k {
	case KindTicket:
		return "ticket"
	case KindMFACodeRequired:
		return "mfa-code-required"
	case KindMFASetupRequired:
		return "mfa-setup-required"
	case KindInvalidCredentials:
		return "invalid-credentials"
	case KindAccountLocked:
		return "account-locked"
	default:
		return "unclassified"
	}
}

// Result is the tagged outcome of classifying one response.
type Result struct {
	Kind   Kind
	Ticket string // set when Kind is KindTicket
	CSRF   string // whatever CSRF token the page exposed, possibly empty
	Title  string // page title, for diagnostics
}

// The vendor publishes no API contract for these pages; every pattern below
// is a substring/regex contract over unversioned HTML observed in the wild.
var ticketPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\?ticket=([^"'&\s]+)`),
	regexp.MustCompile(`embed\?ticket="([^"]+)"`),
	regexp.MustCompile(`"serviceTicket"\s*:\s*"([^"]+)"`),
}

// broadTicketPatterns is the last-resort set used only after the ordered
// patterns above and the redirect header have both come up empty.
var broadTicketPatterns = []*regexp.Regexp{
	regexp.MustCompile(`ticket=([A-Za-z0-9._\-]{8,})`),
	regexp.MustCompile(`ticket["'\s:=]+([A-Za-z0-9._\-]{8,})`),
}

var csrfPatterns = []*regexp.Regexp{
	regexp.MustCompile(`name="_csrf"\s+value="([^"]+)"`),
	regexp.MustCompile(`name='_csrf'\s+value='([^']+)'`),
	regexp.MustCompile(`"_csrf"\s*:\s*"([^"]+)"`),
	regexp.MustCompile(`_csrf\s*[:=]\s*["']?([A-Za-z0-9+/=._\-]{8,})`),
}

var mfaCodeMarkers = []string{"loginEnterMfaCode", "enter-mfa-code-form", `name="mfa-code"`}

var mfaSetupMarkers = []string{"setup-mfa-required-form", "setupMfaRequired"}

var lockedKeywords = []string{"locked", "too many failed"}

var credentialKeywords = []string{"invalid username or password", "incorrect username or password", "sign in failed"}

// ExtractCSRF scans body for a CSRF token using the known pattern variants
// and returns the first match.
func ExtractCSRF(body string) (string, bool) {
	for _, p := range csrfPatterns {
		if m := p.FindStringSubmatch(body); m != nil {
			return m[1], true
		}
	}
	return "", false
}

func extractTicket(body string, broad bool) (string, bool) {
	for _, p := range ticketPatterns {
		if m := p.FindStringSubmatch(body); m != nil {
			return m[1], true
		}
	}
	if broad {
		for _, p := range broadTicketPatterns {
			if m := p.FindStringSubmatch(body); m != nil {
				return m[1], true
			}
		}
	}
	return "", false
}

// ticketFromLocation pulls a service ticket out of a redirect target. Some
// flows expose the ticket only in the Location header, so it takes
// precedence over anything found in the body.
func ticketFromLocation(location string) (string, bool) {
	if location == "" {
		return "", false
	}
	if u, err := url.Parse(location); err == nil {
		if t := u.Query().Get("ticket"); t != "" {
			return t, true
		}
	}
	return extractTicket(location, false)
}

// page is the parsed view of one response that classification rules run over.
type page struct {
	body    string
	lower   string
	title   string
	headers http.Header
}

func newPage(body string, headers http.Header) *page {
	p := &page{body: body, lower: strings.ToLower(body), headers: headers}
	if doc, err := goquery.NewDocumentFromReader(strings.NewReader(body)); err == nil {
		p.title = strings.TrimSpace(doc.Find("title").First().Text())
	}
	return p
}

func (p *page) containsAny(markers []string) bool {
	for _, m := range markers {
		if strings.Contains(p.body, m) {
			return true
		}
	}
	return false
}

type rule struct {
	name     string
	classify func(p *page) (Result, bool)
}

// Classifier turns raw SSO response bodies into tagged results by running an
// ordered rule list; the first rule that matches wins. New vendor markup
// variants are handled by adding rules or patterns, not by changing control
// flow.
type Classifier struct {
	logger zerolog.Logger
	rules  []rule
}

// NewClassifier creates a Classifier with the default rule set.
func NewClassifier(logger zerolog.Logger) *Classifier {
	c := &Classifier{logger: logger}
	c.rules = []rule{
		{"ticket-from-redirect", c.ticketFromRedirect},
		{"ticket-from-body", c.ticketFromBody},
		{"success-without-ticket", c.successWithoutTicket},
		{"mfa-code-required", c.mfaCodeRequired},
		{"mfa-setup-required", c.mfaSetupRequired},
		{"credential-errors", c.credentialErrors},
	}
	return c
}

// Classify runs the rule list over one response body and its headers. It is
// a pure function of its inputs apart from diagnostic logging.
func (c *Classifier) Classify(body string, headers http.Header) Result {
	p := newPage(body, headers)
	csrf, _ := ExtractCSRF(body)

	for _, r := range c.rules {
		if res, ok := r.classify(p); ok {
			if res.CSRF == "" {
				res.CSRF = csrf
			}
			res.Title = p.title
			c.logger.Debug().Str("rule", r.name).Str("kind", res.Kind.String()).Msg("Classified SSO response")
			return res
		}
	}
	return Result{Kind: KindUnclassified, CSRF: csrf, Title: p.title}
}

func (c *Classifier) ticketFromRedirect(p *page) (Result, bool) {
	if t, ok := ticketFromLocation(p.headers.Get("Location")); ok {
		return Result{Kind: KindTicket, Ticket: t}, true
	}
	return Result{}, false
}

func (c *Classifier) ticketFromBody(p *page) (Result, bool) {
	if t, ok := extractTicket(p.body, false); ok {
		return Result{Kind: KindTicket, Ticket: t}, true
	}
	return Result{}, false
}

// successWithoutTicket never matches; a "Success" page from which no ticket
// can be extracted is a classifier gap, not a user error, so the full body
// is logged for diagnosis and classification continues.
func (c *Classifier) successWithoutTicket(p *page) (Result, bool) {
	if strings.EqualFold(p.title, "Success") {
		c.logger.Error().Str("title", p.title).Str("body", p.body).Msg("Success page with no extractable ticket")
	}
	return Result{}, false
}

func (c *Classifier) mfaCodeRequired(p *page) (Result, bool) {
	if p.containsAny(mfaCodeMarkers) {
		return Result{Kind: KindMFACodeRequired}, true
	}
	return Result{}, false
}

// mfaSetupRequired fires when the page carries an MFA title with
// setup-specific markers rather than code-entry markers. Setup-required
// means the account has no MFA configured: login cannot proceed until the
// user acts on the vendor's website, so the distinction matters.
func (c *Classifier) mfaSetupRequired(p *page) (Result, bool) {
	if strings.Contains(strings.ToLower(p.title), "mfa") && p.containsAny(mfaSetupMarkers) {
		return Result{Kind: KindMFASetupRequired}, true
	}
	return Result{}, false
}

func (c *Classifier) credentialErrors(p *page) (Result, bool) {
	haystack := p.lower
	if doc, err := goquery.NewDocumentFromReader(strings.NewReader(p.body)); err == nil {
		if errText := doc.Find("#status, .error, .alert, .error-message").Text(); errText != "" {
			haystack = strings.ToLower(errText) + "\n" + haystack
		}
	}
	for _, kw := range lockedKeywords {
		if strings.Contains(haystack, kw) {
			return Result{Kind: KindAccountLocked}, true
		}
	}
	for _, kw := range credentialKeywords {
		if strings.Contains(haystack, kw) {
			return Result{Kind: KindInvalidCredentials}, true
		}
	}
	return Result{}, false
}
