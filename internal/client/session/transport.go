package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/dmitrijs2005/storefront/internal/common"
	"golang.org/x/sync/singleflight"
)

// ErrSessionExpired is returned when the server rejected the access
// credential and the one refresh attempt did not recover the request: the
// refresh itself failed, or the retried request was rejected again. Local
// credentials are gone by the time it is returned.
var ErrSessionExpired = errors.New("session expired, please log in again")

// Transport is an http.RoundTripper that carries the session. Concurrent
// requests that hit a 401 with the same refresh token share one refresh
// call.
type Transport struct {
	base       http.RoundTripper
	store      CredentialStore
	gate       *RedirectGate
	refreshURL string
	group      singleflight.Group
}

// NewTransport wraps base (http.DefaultTransport when nil). refreshURL is
// the absolute URL of the refresh endpoint.
func NewTransport(base http.RoundTripper, store CredentialStore, gate *RedirectGate, refreshURL string) *Transport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &Transport{base: base, store: store, gate: gate, refreshURL: refreshURL}
}

func withBearer(req *http.Request, token string) (*http.Request, error) {
	r := req.Clone(req.Context())
	if req.Body != nil && req.Body != http.NoBody {
		if req.GetBody == nil {
			return nil, errors.New("request body cannot be replayed")
		}
		body, err := req.GetBody()
		if err != nil {
			return nil, err
		}
		r.Body = body
	}
	r.Header.Del("Authorization")
	if token != "" {
		r.Header.Set("Authorization", common.BearerScheme+" "+token)
	}
	return r, nil
}

// bufferBody makes req replayable so it can be resent after a refresh.
func bufferBody(req *http.Request) error {
	if req.Body == nil || req.Body == http.NoBody || req.GetBody != nil {
		return nil
	}
	data, err := io.ReadAll(req.Body)
	_ = req.Body.Close()
	if err != nil {
		return err
	}
	req.Body = io.NopCloser(bytes.NewReader(data))
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(data)), nil
	}
	return nil
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	if err := bufferBody(req); err != nil {
		return nil, err
	}

	creds, err := t.store.Load(ctx)
	if err != nil {
		return nil, err
	}

	first, err := withBearer(req, creds.AccessToken)
	if err != nil {
		return nil, err
	}
	resp, err := t.base.RoundTrip(first)
	if err != nil || resp.StatusCode != http.StatusUnauthorized || creds.AccessToken == "" {
		return resp, err
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()

	next, err := t.renew(ctx, creds)
	if err != nil {
		return nil, err
	}

	retry, err := withBearer(req, next.AccessToken)
	if err != nil {
		return nil, err
	}
	resp, err = t.base.RoundTrip(retry)
	if err != nil || resp.StatusCode != http.StatusUnauthorized {
		return resp, err
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()

	// Fresh credentials were rejected too: the account is gone or disabled,
	// and a second refresh would not help.
	if current, err := t.store.Load(ctx); err == nil && current.AccessToken == next.AccessToken {
		t.expire(ctx)
	} else if t.gate != nil {
		t.gate.Trigger()
	}
	return nil, fmt.Errorf("%w: request rejected after refresh", ErrSessionExpired)
}

// expire drops the local session and fires the login redirect.
func (t *Transport) expire(ctx context.Context) {
	_ = t.store.Clear(ctx)
	if t.gate != nil {
		t.gate.Trigger()
	}
}

// renew returns credentials to retry with. When another request already
// rotated the session it uses those; otherwise it refreshes once. On
// failure it clears the session and fires the login redirect.
func (t *Transport) renew(ctx context.Context, sent Credentials) (Credentials, error) {
	current, err := t.store.Load(ctx)
	if err != nil {
		return Credentials{}, err
	}
	if current.AccessToken != "" && current.AccessToken != sent.AccessToken {
		return current, nil
	}

	v, err, _ := t.group.Do(sent.RefreshToken, func() (any, error) {
		if sent.RefreshToken == "" {
			return nil, ErrSessionExpired
		}
		// a refresh for this token may have finished just before this call
		if latest, err := t.store.Load(ctx); err == nil && latest.AccessToken != "" && latest.AccessToken != sent.AccessToken {
			return latest, nil
		}
		next, err := t.refresh(ctx, sent.RefreshToken)
		if err != nil {
			return nil, err
		}
		if err := t.store.Save(ctx, next); err != nil {
			return nil, err
		}
		return next, nil
	})
	if err != nil {
		t.expire(ctx)
		return Credentials{}, fmt.Errorf("%w: %v", ErrSessionExpired, err)
	}
	return v.(Credentials), nil
}

type refreshResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

func (t *Transport) refresh(ctx context.Context, refreshToken string) (Credentials, error) {
	body, err := json.Marshal(map[string]string{"refreshToken": refreshToken})
	if err != nil {
		return Credentials{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.refreshURL, bytes.NewReader(body))
	if err != nil {
		return Credentials{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return Credentials{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Credentials{}, fmt.Errorf("refresh rejected with status %d", resp.StatusCode)
	}
	var out refreshResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Credentials{}, fmt.Errorf("decode refresh response: %w", err)
	}
	if out.AccessToken == "" || out.RefreshToken == "" {
		return Credentials{}, errors.New("refresh response is missing tokens")
	}
	return Credentials{AccessToken: out.AccessToken, RefreshToken: out.RefreshToken}, nil
}
