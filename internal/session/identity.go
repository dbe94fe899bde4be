package session

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"storefront-proxy/internal/model"
)

// payloadKeys are the token payload fields that may carry the user id, in
// order of preference.
var payloadKeys = []string{"id", "_id", "userId"}

var segmentParser = jwt.NewParser(jwt.WithPaddingAllowed())

// ResolveUserID returns the id of the logged-in user. The user record wins;
// otherwise the id is read from the token payload. The payload is decoded
// without verifying the signature, since the upstream API is the authority
// on the token. Returns false when no id can be found.
func ResolveUserID(user *model.User, token string) (string, bool) {
	if user != nil {
		if user.ID != "" {
			return user.ID, true
		}
		if user.AltID != "" {
			return user.AltID, true
		}
	}
	return userIDFromToken(token)
}

func userIDFromToken(token string) (string, bool) {
	parts := strings.Split(token, ".")
	if len(parts) < 2 || parts[1] == "" {
		return "", false
	}

	raw, err := segmentParser.DecodeSegment(parts[1])
	if err != nil {
		return "", false
	}

	var claims map[string]any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&claims); err != nil {
		return "", false
	}

	for _, key := range payloadKeys {
		switch v := claims[key].(type) {
		case string:
			if v != "" {
				return v, true
			}
		case json.Number:
			return v.String(), true
		}
	}
	return "", false
}
