package transportfakes

import (
	"context"
	"io"
	"net/http"
	"sync"

	"github.com/jrsteele09/go-auth-client/transport"
)

var _ transport.Doer = (*FakeDoer)(nil)

// Call records one request dispatched through the fake.
type Call struct {
	Method  string
	URL     string
	Body    string
	Headers map[string]string
}

// FakeDoer replays canned responses keyed by "METHOD url-prefix" and records
// every call it sees.
type FakeDoer struct {
	lock      sync.Mutex
	calls     []Call
	responses map[string]*transport.Response
	errs      map[string]error
}

func NewFakeDoer() *FakeDoer {
	return &FakeDoer{
		responses: make(map[string]*transport.Response),
		errs:      make(map[string]error),
	}
}

// Respond registers a canned response for requests whose "METHOD URL" string
// begins with key.
func (f *FakeDoer) Respond(key string, status int, body string, headers http.Header) {
	f.lock.Lock()
	defer f.lock.Unlock()
	if headers == nil {
		headers = http.Header{}
	}
	f.responses[key] = &transport.Response{Status: status, Body: []byte(body), Headers: headers}
}

// Fail registers an error for requests matching key.
func (f *FakeDoer) Fail(key string, err error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.errs[key] = err
}

func (f *FakeDoer) Do(ctx context.Context, method, url string, body io.Reader, headers map[string]string) (*transport.Response, error) {
	var bodyStr string
	if body != nil {
		data, err := io.ReadAll(body)
		if err != nil {
			return nil, err
		}
		bodyStr = string(data)
	}

	f.lock.Lock()
	defer f.lock.Unlock()
	f.calls = append(f.calls, Call{Method: method, URL: url, Body: bodyStr, Headers: headers})

	full := method + " " + url
	for key, err := range f.errs {
		if matchPrefix(full, key) {
			return nil, err
		}
	}
	for key, resp := range f.responses {
		if matchPrefix(full, key) {
			return resp, nil
		}
	}
	return &transport.Response{Status: 404, Body: []byte("not found"), Headers: http.Header{}}, nil
}

// Calls returns a copy of everything dispatched through the fake.
func (f *FakeDoer) Calls() []Call {
	f.lock.Lock()
	defer f.lock.Unlock()
	out := make([]Call, len(f.calls))
	copy(out, f.calls)
	return out
}

// CallCount returns the number of dispatched requests.
func (f *FakeDoer) CallCount() int {
	f.lock.Lock()
	defer f.lock.Unlock()
	return len(f.calls)
}

func matchPrefix(full, key string) bool {
	return len(full) >= len(key) && full[:len(key)] == key
}
