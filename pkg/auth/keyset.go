package auth

import (
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"os"

	"github.com/golang-jwt/jwt/v5"
)

// KeySet holds the IdP's published verification keys, selected by the
// token's kid header. Symmetric (oct, HS256) and RSA (RS256) keys are
// supported.
type KeySet struct {
	keys map[string]any
}

type jwksDocument struct {
	Keys []jwksKey `json:"keys"`
}

type jwksKey struct {
	Kid string `json:"kid"`
	Kty string `json:"kty"`
	Alg string `json:"alg,omitempty"`
	K   string `json:"k,omitempty"`
	N   string `json:"n,omitempty"`
	E   string `json:"e,omitempty"`
}

// LoadKeySet reads a JWKS JSON file from disk.
func LoadKeySet(path string) (*KeySet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read key set: %w", err)
	}
	return ParseKeySet(data)
}

// ParseKeySet parses a JWKS JSON document.
func ParseKeySet(data []byte) (*KeySet, error) {
	var doc jwksDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse key set: %w", err)
	}
	if len(doc.Keys) == 0 {
		return nil, errors.New("key set contains no keys")
	}
	ks := &KeySet{keys: make(map[string]any, len(doc.Keys))}
	for _, k := range doc.Keys {
		if k.Kid == "" {
			return nil, errors.New("key set entry missing kid")
		}
		switch k.Kty {
		case "oct":
			secret, err := base64.RawURLEncoding.DecodeString(k.K)
			if err != nil {
				return nil, fmt.Errorf("decode oct key %s: %w", k.Kid, err)
			}
			ks.keys[k.Kid] = secret
		case "RSA":
			pub, err := parseRSAKey(k)
			if err != nil {
				return nil, fmt.Errorf("decode RSA key %s: %w", k.Kid, err)
			}
			ks.keys[k.Kid] = pub
		default:
			return nil, fmt.Errorf("unsupported key type: %s", k.Kty)
		}
	}
	return ks, nil
}

func parseRSAKey(k jwksKey) (*rsa.PublicKey, error) {
	nBytes, err := base64.RawURLEncoding.DecodeString(k.N)
	if err != nil {
		return nil, fmt.Errorf("modulus: %w", err)
	}
	eBytes, err := base64.RawURLEncoding.DecodeString(k.E)
	if err != nil {
		return nil, fmt.Errorf("exponent: %w", err)
	}
	e := new(big.Int).SetBytes(eBytes)
	if !e.IsInt64() || e.Int64() <= 0 {
		return nil, errors.New("exponent out of range")
	}
	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(nBytes),
		E: int(e.Int64()),
	}, nil
}

// Keyfunc selects the verification key for a token by its kid header.
func (ks *KeySet) Keyfunc(token *jwt.Token) (any, error) {
	kid, ok := token.Header["kid"].(string)
	if !ok || kid == "" {
		return nil, errors.New("missing kid in header")
	}
	key, exists := ks.keys[kid]
	if !exists {
		return nil, fmt.Errorf("key not found: %s", kid)
	}
	switch token.Method.(type) {
	case *jwt.SigningMethodHMAC:
		if _, isSecret := key.([]byte); !isSecret {
			return nil, fmt.Errorf("key %s is not symmetric", kid)
		}
	case *jwt.SigningMethodRSA:
		if _, isRSA := key.(*rsa.PublicKey); !isRSA {
			return nil, fmt.Errorf("key %s is not RSA", kid)
		}
	default:
		return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
	}
	return key, nil
}
