// Package license implements C's external collaborator of spec §6: the
// License / Session-Lock cloud service client. Grounded on
// internal/broker/live.go's REST shape (go-retryablehttp client configured
// from internal/result.DefaultRetrySpec, JSON request/response bodies,
// status-code-driven Permanent/Transient classification) and extended with
// a golang-jwt bearer token derived from the device fingerprint, per spec
// §6's "bearer-signed" contract. The service itself is out of scope (spec
// §1 Non-goals); only this client is implemented.
package license

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"

	"github.com/chidi150c/apexfutures/internal/result"
)

// State mirrors risk.LicenseState but lives in this package to avoid a
// reverse dependency from license on risk; callers (the engine, C10) map
// between the two.
type State int

const (
	Valid State = iota
	GraceWithPosition
	ExpiredNoPosition
	Conflict
)

func (s State) String() string {
	switch s {
	case Valid:
		return "VALID"
	case GraceWithPosition:
		return "GRACE_WITH_POSITION"
	case ExpiredNoPosition:
		return "EXPIRED_NO_POSITION"
	case Conflict:
		return "CONFLICT"
	default:
		return "UNKNOWN"
	}
}

// ValidateResponse is the `/validate` contract from spec §6: "{valid,
// expiration_iso, days_until_expiration, session_conflict,
// estimated_wait_seconds}".
type ValidateResponse struct {
	Valid                 bool      `json:"valid"`
	ExpirationISO         time.Time `json:"expiration_iso"`
	DaysUntilExpiration   float64   `json:"days_until_expiration"`
	SessionConflict       bool      `json:"session_conflict"`
	EstimatedWaitSeconds  int       `json:"estimated_wait_seconds"`
}

type validateRequest struct {
	LicenseKey       string `json:"license_key"`
	DeviceFingerprint string `json:"device_fingerprint"`
}

type heartbeatRequest struct {
	DeviceFingerprint string `json:"device_fingerprint"`
}

type heartbeatResponse struct {
	SessionConflict bool `json:"session_conflict"`
}

// jwtClaims is the device-fingerprint bearer the client signs itself and
// attaches as Authorization, per spec §6's "device-fingerprint bearer
// auth" (signature scheme NimbleMarkets/dbn-go's auth style inspired, HMAC
// keyed on the license key since no asymmetric key is issued to clients).
type jwtClaims struct {
	jwt.RegisteredClaims
	DeviceFingerprint string `json:"device_fingerprint"`
}

// Client talks to the License/Session-Lock service. One Client per engine
// instance; Validate is called at startup and every 300s (spec §4.10),
// Heartbeat every 20s, Release on clean shutdown.
type Client struct {
	baseURL          string
	licenseKey       string
	deviceFingerprint string
	hc               *retryablehttp.Client
	log              zerolog.Logger

	mu              sync.Mutex
	lastState       State
	lastHeartbeatAt time.Time
}

// New returns a Client pointed at baseURL, authenticating with licenseKey
// and a stable deviceFingerprint (derived by the caller from machine/OS
// identifiers; this package does not compute it).
func New(baseURL, licenseKey, deviceFingerprint string, log zerolog.Logger) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	hc := retryablehttp.NewClient()
	hc.RetryMax = result.DefaultRetrySpec.Max
	hc.RetryWaitMin = result.DefaultRetrySpec.BaseDelay
	hc.RetryWaitMax = result.DefaultRetrySpec.MaxDelay
	hc.Logger = nil
	return &Client{
		baseURL:           baseURL,
		licenseKey:        licenseKey,
		deviceFingerprint: deviceFingerprint,
		hc:                hc,
		log:               log,
		lastState:         ExpiredNoPosition,
	}
}

// bearerToken mints a short-lived JWT carrying the device fingerprint,
// HMAC-signed with the license key (the shared secret both sides hold).
func (c *Client) bearerToken() (string, error) {
	claims := jwtClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(time.Now().UTC()),
			ExpiresAt: jwt.NewNumericDate(time.Now().UTC().Add(2 * time.Minute)),
		},
		DeviceFingerprint: c.deviceFingerprint,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(c.licenseKey))
}

func (c *Client) doJSON(ctx context.Context, method, path string, reqBody any, respBody any) (*http.Response, error) {
	var buf bytes.Buffer
	if reqBody != nil {
		if err := json.NewEncoder(&buf).Encode(reqBody); err != nil {
			return nil, result.WrapPermanent(err)
		}
	}
	httpReq, err := retryablehttp.NewRequestWithContext(ctx, method, c.baseURL+path, buf.Bytes())
	if err != nil {
		return nil, result.WrapPermanent(err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	token, err := c.bearerToken()
	if err != nil {
		return nil, result.WrapPermanent(fmt.Errorf("license: sign bearer: %w", err))
	}
	httpReq.Header.Set("Authorization", "Bearer "+token)

	res, err := c.hc.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if res.StatusCode >= 400 && res.StatusCode < 500 {
		return res, result.WrapPermanent(fmt.Errorf("license: %s %s status %d", method, path, res.StatusCode))
	}
	if res.StatusCode >= 500 {
		return res, fmt.Errorf("license: %s %s venue error, status %d", method, path, res.StatusCode)
	}
	if respBody != nil {
		if err := json.NewDecoder(res.Body).Decode(respBody); err != nil {
			return res, err
		}
	}
	return res, nil
}

// Validate calls POST /validate and classifies the response into a State,
// per spec §4.5's grace rules: expired+no position disables all trading
// immediately; expired+open position enters grace (managed to exit, no new
// entries); session_conflict with an open position is LICENSE_CONFLICT.
func (c *Client) Validate(ctx context.Context, hasOpenPosition bool) (State, ValidateResponse, error) {
	var resp ValidateResponse
	_, err := c.doJSON(ctx, http.MethodPost, "/validate", validateRequest{
		LicenseKey: c.licenseKey, DeviceFingerprint: c.deviceFingerprint,
	}, &resp)
	if err != nil {
		return c.currentState(), resp, err
	}

	state := c.classify(resp.Valid, resp.SessionConflict, hasOpenPosition)
	c.mu.Lock()
	c.lastState = state
	c.mu.Unlock()
	return state, resp, nil
}

func (c *Client) classify(valid, sessionConflict, hasOpenPosition bool) State {
	switch {
	case sessionConflict && hasOpenPosition:
		return Conflict
	case valid:
		return Valid
	case hasOpenPosition:
		return GraceWithPosition
	default:
		return ExpiredNoPosition
	}
}

func (c *Client) currentState() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastState
}

// Heartbeat calls POST /heartbeat, refreshing the session-lock (spec
// §4.10's 20s cadence). Contract: if heartbeat < 40s old and a different
// device validates, the server rejects that OTHER device's validate call;
// this client only ever observes session_conflict via its own Validate
// response (spec §6), so Heartbeat here only refreshes liveness.
func (c *Client) Heartbeat(ctx context.Context) error {
	_, err := c.doJSON(ctx, http.MethodPost, "/heartbeat", heartbeatRequest{
		DeviceFingerprint: c.deviceFingerprint,
	}, &heartbeatResponse{})
	if err != nil {
		c.log.Warn().Err(err).Msg("license heartbeat failed")
		return err
	}
	c.mu.Lock()
	c.lastHeartbeatAt = time.Now().UTC()
	c.mu.Unlock()
	return nil
}

// Release calls POST /release on clean shutdown, giving up the session
// lock so another device can validate immediately instead of waiting out
// the 40s liveness window.
func (c *Client) Release(ctx context.Context) error {
	_, err := c.doJSON(ctx, http.MethodPost, "/release", heartbeatRequest{
		DeviceFingerprint: c.deviceFingerprint,
	}, nil)
	return err
}

// LastHeartbeatAt reports when the most recent successful Heartbeat
// completed, for the health/metrics surface.
func (c *Client) LastHeartbeatAt() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastHeartbeatAt
}
