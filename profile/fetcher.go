package profile

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/jrsteele09/go-auth-client/transport"
)

const socialProfilePath = "/userprofile-service/socialProfile"

// Fetcher retrieves profiles from the authenticated API host.
type Fetcher struct {
	doer       transport.Doer
	apiBaseURL string
	logger     zerolog.Logger
}

// NewFetcher initializes a Fetcher against apiBaseURL.
func NewFetcher(doer transport.Doer, apiBaseURL string, logger zerolog.Logger) (*Fetcher, error) {
	if doer == nil {
		return nil, errors.New("[NewFetcher] transport is required")
	}
	if apiBaseURL == "" {
		return nil, errors.New("[NewFetcher] apiBaseURL is required")
	}
	return &Fetcher{doer: doer, apiBaseURL: strings.TrimRight(apiBaseURL, "/"), logger: logger}, nil
}

// Fetch retrieves the profile using a bearer token. An unusable display name
// is blanked, never replaced with a placeholder. Callers treat any returned
// error as a degraded-but-non-fatal condition.
func (f *Fetcher) Fetch(ctx context.Context, accessToken string) (*Profile, error) {
	resp, err := f.doer.Do(ctx, "GET", f.apiBaseURL+socialProfilePath, nil, map[string]string{
		"Authorization": "Bearer " + accessToken,
	})
	if err != nil {
		return nil, errors.Wrap(err, "[Fetch] profile request")
	}
	if resp.Status != 200 {
		return nil, fmt.Errorf("[Fetch] profile endpoint returned status %d", resp.Status)
	}

	var p Profile
	if err := json.Unmarshal(resp.Body, &p); err != nil {
		return nil, errors.Wrap(err, "[Fetch] decoding profile response")
	}

	if !UsableDisplayName(p.DisplayName) {
		f.logger.Warn().Str("display_name", p.DisplayName).Msg("Profile display name not usable, blanking it")
		p.DisplayName = ""
	}
	return &p, nil
}
