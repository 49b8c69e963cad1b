package sso

import (
	"net/http"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func newTestClassifier() *Classifier {
	return NewClassifier(zerolog.Nop())
}

func TestClassifyTicketVariants(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		ticket string
	}{
		{
			"embed ticket literal",
			`<html><title>Success</title><script>var response_url = "/embed?ticket="ST-012345-aBcDef";</script></html>`,
			"ST-012345-aBcDef",
		},
		{
			"query string ticket",
			`<html><body><a href="https://sso.example.com/embed?ticket=ST-98765-zYxWv">continue</a></body></html>`,
			"ST-98765-zYxWv",
		},
		{
			"json serviceTicket field",
			`{"status":"ok","serviceTicket":"ST-11111-json"}`,
			"ST-11111-json",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			result := newTestClassifier().Classify(tc.body, nil)
			require.Equal(t, KindTicket, result.Kind)
			require.Equal(t, tc.ticket, result.Ticket)
		})
	}
}

func TestClassifyRedirectHeaderTicketTakesPrecedence(t *testing.T) {
	headers := http.Header{}
	headers.Set("Location", "https://sso.example.com/embed?ticket=ST-header-1234")

	body := `<html><script>var u = "/embed?ticket="ST-body-5678";</script></html>`
	result := newTestClassifier().Classify(body, headers)
	require.Equal(t, KindTicket, result.Kind)
	require.Equal(t, "ST-header-1234", result.Ticket)
}

func TestClassifyTicketWinsOverErrorText(t *testing.T) {
	// Real vendor success pages embed boilerplate error-looking markup; the
	// success path must win over the keyword heuristics.
	body := `<html><title>Success</title>
<div class="error" style="display:none">Invalid username or password</div>
<script>var response_url = "/embed?ticket="ST-00001-mixed";</script></html>`

	result := newTestClassifier().Classify(body, nil)
	require.Equal(t, KindTicket, result.Kind)
	require.Equal(t, "ST-00001-mixed", result.Ticket)
}

func TestClassifyMFACodeRequired(t *testing.T) {
	body := `<html><title>MFA</title>
<input type="hidden" name="_csrf" value="csrf-token-123"/>
<script src="loginEnterMfaCode.js"></script></html>`

	result := newTestClassifier().Classify(body, nil)
	require.Equal(t, KindMFACodeRequired, result.Kind)
	require.Equal(t, "csrf-token-123", result.CSRF)
}

func TestClassifyMFASetupRequired(t *testing.T) {
	body := `<html><title>MFA required</title>
<form id="setup-mfa-required-form" action="/setupMFA"></form></html>`

	result := newTestClassifier().Classify(body, nil)
	require.Equal(t, KindMFASetupRequired, result.Kind)
}

func TestClassifySetupDistinctFromCodeEntry(t *testing.T) {
	// A page carrying the code-entry marker is code-required even when the
	// title announces MFA.
	body := `<html><title>MFA required</title>
<form id="enter-mfa-code-form"><input name="mfa-code"/></form></html>`

	result := newTestClassifier().Classify(body, nil)
	require.Equal(t, KindMFACodeRequired, result.Kind)
}

func TestClassifyCredentialErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want Kind
	}{
		{
			"invalid credentials in status container",
			`<html><title>Sign In</title><div id="status" class="error">Invalid username or password</div></html>`,
			KindInvalidCredentials,
		},
		{
			"account locked",
			`<html><title>Sign In</title><div class="error">Your account has been locked. Contact support.</div></html>`,
			KindAccountLocked,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			result := newTestClassifier().Classify(tc.body, nil)
			require.Equal(t, tc.want, result.Kind)
		})
	}
}

func TestClassifySuccessTitleWithoutTicketIsUnclassified(t *testing.T) {
	body := `<html><title>Success</title><p>Nothing else here.</p></html>`
	result := newTestClassifier().Classify(body, nil)
	require.Equal(t, KindUnclassified, result.Kind)
	require.Equal(t, "Success", result.Title)
}

func TestClassifyIsIdempotent(t *testing.T) {
	c := newTestClassifier()
	body := `<html><title>MFA</title><script src="loginEnterMfaCode.js"></script>
<input name="_csrf" value="abc-123-csrf"/></html>`

	first := c.Classify(body, nil)
	second := c.Classify(body, nil)
	require.Equal(t, first, second)
}

func TestClassifyUnclassifiedCarriesCSRFAndTitle(t *testing.T) {
	body := `<html><title>Something New</title>
<input type="hidden" name="_csrf" value="fresh-csrf-456"/></html>`

	result := newTestClassifier().Classify(body, nil)
	require.Equal(t, KindUnclassified, result.Kind)
	require.Equal(t, "fresh-csrf-456", result.CSRF)
	require.Equal(t, "Something New", result.Title)
}

func TestExtractCSRFVariants(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"double quoted attribute", `<input name="_csrf" value="tok-double"/>`, "tok-double"},
		{"single quoted attribute", `<input name='_csrf' value='tok-single'/>`, "tok-single"},
		{"json field", `{"_csrf":"tok-json"}`, "tok-json"},
		{"loose key value", `window._csrf = tok-loose-1234`, "tok-loose-1234"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := ExtractCSRF(tc.body)
			require.True(t, ok)
			require.Equal(t, tc.want, got)
		})
	}

	_, ok := ExtractCSRF(`<html><body>no token here</body></html>`)
	require.False(t, ok)
}
