// Copyright 2025 The A2A Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package push

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/lestrrat-go/jwx/v3/jwk"
)

// BodyHashClaim carries the hex sha256 of the notification body.
const BodyHashClaim = "request_body_sha256"

const tokenLifetime = 5 * time.Minute

// WellKnownJWKSPath is where agents usually publish the keys of [KeyManager.JWKSHandler].
const WellKnownJWKSPath = "/.well-known/jwks.json"

// KeyManager signs push notifications with an ES256 key and publishes the public half
// as a JWK set, so that receivers can check a notification came from this agent.
type KeyManager struct {
	kid  string
	key  *ecdsa.PrivateKey
	jwks []byte
	now  func() time.Time
}

// NewKeyManager generates a P-256 key identified by kid.
func NewKeyManager(kid string) (*KeyManager, error) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate private key: %w", err)
	}

	pub, err := jwk.Import(&priv.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("failed to import public key: %w", err)
	}
	if err := pub.Set(jwk.KeyIDKey, kid); err != nil {
		return nil, err
	}
	if err := pub.Set(jwk.AlgorithmKey, jwa.ES256()); err != nil {
		return nil, err
	}
	if err := pub.Set(jwk.KeyUsageKey, "sig"); err != nil {
		return nil, err
	}

	set := jwk.NewSet()
	if err := set.AddKey(pub); err != nil {
		return nil, fmt.Errorf("failed to build key set: %w", err)
	}
	jwks, err := json.Marshal(set)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal key set: %w", err)
	}

	return &KeyManager{kid: kid, key: priv, jwks: jwks, now: time.Now}, nil
}

// KeyID returns the id published in the token header and the key set.
func (m *KeyManager) KeyID() string {
	return m.kid
}

// Sign returns a compact JWT bound to the notification body.
func (m *KeyManager) Sign(body []byte) (string, error) {
	sum := sha256.Sum256(body)
	now := m.now()
	claims := jwt.MapClaims{
		"iat":         now.Unix(),
		"exp":         now.Add(tokenLifetime).Unix(),
		BodyHashClaim: hex.EncodeToString(sum[:]),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodES256, claims)
	token.Header["kid"] = m.kid
	return token.SignedString(m.key)
}

// JWKS returns the JSON encoded public key set.
func (m *KeyManager) JWKS() []byte {
	return m.jwks
}

// JWKSHandler serves the public key set, usually at /.well-known/jwks.json.
func (m *KeyManager) JWKSHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(m.jwks)
	})
}

// VerifyNotification checks a token produced by [KeyManager.Sign] against a published key
// set and the received body.
func VerifyNotification(token string, body []byte, jwks []byte) error {
	set, err := jwk.Parse(jwks)
	if err != nil {
		return fmt.Errorf("failed to parse key set: %w", err)
	}

	claims := jwt.MapClaims{}
	_, err = jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		kid, ok := t.Header["kid"].(string)
		if !ok {
			return nil, errors.New("kid not found in token header")
		}
		key, ok := set.LookupKeyID(kid)
		if !ok {
			return nil, fmt.Errorf("key not found: %s", kid)
		}
		var pub ecdsa.PublicKey
		if err := jwk.Export(key, &pub); err != nil {
			return nil, fmt.Errorf("failed to export key: %w", err)
		}
		return &pub, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodES256.Alg()}))
	if err != nil {
		return fmt.Errorf("invalid notification token: %w", err)
	}

	sum := sha256.Sum256(body)
	if got, _ := claims[BodyHashClaim].(string); got != hex.EncodeToString(sum[:]) {
		return errors.New("notification body hash mismatch")
	}
	return nil
}
