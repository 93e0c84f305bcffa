package client

import (
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/lensbridge/camlink/protocol"
	"github.com/lensbridge/camlink/types"
)

// Credential is the single bearer token the client forwards on calls that
// require authentication. ExpiresAt is a hint extracted from the token when it
// happens to be a JWT; zero otherwise.
type Credential struct {
	Token     string
	ExpiresAt time.Time
}

// AuthRequiredHandler is invoked when a call fails with an authentication
// error and the stored credential has been cleared. The UI layer prompts for
// re-authentication; the core never retries on its own.
type AuthRequiredHandler func()

// authState owns the credential slot and the auth-required listener list.
// The slot has last-write-wins semantics.
type authState struct {
	mu           sync.RWMutex
	cred         *Credential
	handlerID    int
	handlers     map[int]AuthRequiredHandler
	handlerOrder []int
	logger       types.Logger
}

func newAuthState(logger types.Logger) *authState {
	return &authState{
		handlers: make(map[int]AuthRequiredHandler),
		logger:   logger,
	}
}

// SetCredential replaces the stored credential wholesale. When the token
// parses as a JWT, its exp claim is kept as an expiry hint; the token is never
// validated here (the server does that).
func (a *authState) SetCredential(token string) {
	cred := &Credential{Token: token}
	if expiry, ok := tokenExpiry(token); ok {
		cred.ExpiresAt = expiry
	}

	a.mu.Lock()
	a.cred = cred
	a.mu.Unlock()
}

// ClearCredential drops the stored credential.
func (a *authState) ClearCredential() {
	a.mu.Lock()
	a.cred = nil
	a.mu.Unlock()
}

// Credential returns the current credential, if any.
func (a *authState) Credential() (Credential, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.cred == nil {
		return Credential{}, false
	}
	return *a.cred, true
}

// Decorate merges the credential into outgoing params for calls that require
// auth. The original map is not modified.
func (a *authState) Decorate(params map[string]interface{}) (map[string]interface{}, bool) {
	cred, ok := a.Credential()
	if !ok {
		return params, false
	}
	decorated := make(map[string]interface{}, len(params)+1)
	for k, v := range params {
		decorated[k] = v
	}
	decorated["auth_token"] = cred.Token
	return decorated, true
}

// OnAuthRequired registers a listener and returns its unsubscribe function.
func (a *authState) OnAuthRequired(handler AuthRequiredHandler) func() {
	a.mu.Lock()
	a.handlerID++
	id := a.handlerID
	a.handlers[id] = handler
	a.handlerOrder = append(a.handlerOrder, id)
	a.mu.Unlock()

	return func() {
		a.mu.Lock()
		defer a.mu.Unlock()
		delete(a.handlers, id)
		for i, hid := range a.handlerOrder {
			if hid == id {
				a.handlerOrder = append(a.handlerOrder[:i], a.handlerOrder[i+1:]...)
				break
			}
		}
	}
}

// IsAuthError reports whether an error carries the authentication-failed code.
func (a *authState) IsAuthError(err error) bool {
	code, ok := ServerErrorCode(err)
	return ok && protocol.IsAuthErrorCode(code)
}

// handleAuthFailure clears the credential and notifies listeners. Called by
// the client whenever a response carries an authentication-failed code.
func (a *authState) handleAuthFailure() {
	a.mu.Lock()
	a.cred = nil
	handlers := make([]AuthRequiredHandler, 0, len(a.handlerOrder))
	for _, id := range a.handlerOrder {
		if h, ok := a.handlers[id]; ok {
			handlers = append(handlers, h)
		}
	}
	a.mu.Unlock()

	a.logger.Warn("authentication failed, credential cleared")
	for _, h := range handlers {
		a.invokeHandler(h)
	}
}

func (a *authState) invokeHandler(h AuthRequiredHandler) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("auth-required handler panicked: %v", r)
		}
	}()
	h()
}

// handlerCount returns the number of registered listeners. Used by tests.
func (a *authState) handlerCount() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.handlers)
}

// tokenExpiry extracts the exp claim from a JWT without verifying the
// signature. Returns false for opaque tokens.
func tokenExpiry(token string) (time.Time, bool) {
	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}
