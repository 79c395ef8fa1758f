package apiclient

import (
	"fmt"
	"sort"
)

// Payload normalization for a backend whose response shapes have drifted
// across versions. Every helper is tolerant: a shape that does not match
// yields a zero value, never an error. The recognized key spellings below,
// misspellings included, are exactly what the backend has been seen to emit.

// identityKeys mark a map as "this is a user record" when matching a
// top-level response object directly.
var identityKeys = []string{"_id", "id", "email", "name"}

// TokenFromPayload digs a bearer token out of a login/registration response.
func TokenFromPayload(payload map[string]any) string {
	if payload == nil {
		return ""
	}

	for _, key := range []string{"token", "accessToken", "access_token"} {
		if s, ok := payload[key].(string); ok && s != "" {
			return s
		}
	}
	if data, ok := payload["data"].(map[string]any); ok {
		if s, ok := data["token"].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// ProfileFromPayload extracts a user profile from a response: the payload
// itself when it carries identifying fields, otherwise the first object
// found under one of the wrapper keys. Returns nil when nothing matches.
func ProfileFromPayload(payload map[string]any, wrapperKeys []string) map[string]any {
	if payload == nil {
		return nil
	}

	if hasIdentity(payload) {
		return payload
	}

	for _, key := range wrapperKeys {
		if m, ok := payload[key].(map[string]any); ok {
			return m
		}
	}
	return nil
}

func hasIdentity(m map[string]any) bool {
	for _, key := range identityKeys {
		if v, ok := m[key]; ok && v != nil {
			return true
		}
	}
	return false
}

// UsersFromPayload normalizes the many shapes a user list arrives in:
// a bare array, arrays under users/user/data.users/data, a single object
// under user or data, or as a last resort the first array value anywhere in
// the payload.
func UsersFromPayload(payload any) []map[string]any {
	switch p := payload.(type) {
	case nil:
		return nil
	case []any:
		return objectsOf(p)
	case []map[string]any:
		return p
	case map[string]any:
		if arr := objectsOf(asArray(p["users"])); arr != nil {
			return arr
		}
		if arr := objectsOf(asArray(p["user"])); arr != nil {
			return arr
		}
		if data, ok := p["data"].(map[string]any); ok {
			if arr := objectsOf(asArray(data["users"])); arr != nil {
				return arr
			}
		}
		if arr := objectsOf(asArray(p["data"])); arr != nil {
			return arr
		}

		if user, ok := p["user"].(map[string]any); ok {
			return []map[string]any{user}
		}
		if data, ok := p["data"].(map[string]any); ok && hasIdentity(data) {
			return []map[string]any{data}
		}

		// Fallback: first array anywhere in the payload. Keys are walked in
		// sorted order so the result is deterministic.
		keys := make([]string, 0, len(p))
		for k := range p {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if arr := objectsOf(asArray(p[k])); arr != nil {
				return arr
			}
		}
	}
	return nil
}

func asArray(v any) []any {
	arr, _ := v.([]any)
	return arr
}

func objectsOf(arr []any) []map[string]any {
	if arr == nil {
		return nil
	}

	out := make([]map[string]any, 0, len(arr))
	for _, v := range arr {
		if m, ok := v.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

// referralCodeKeys, in lookup order, cover every spelling the backend and
// its stored profiles have used for the invite code.
var referralCodeKeys = []string{
	"referralCode",
	"inviterefferal",
	"invitereferal",
	"inviteReferral",
}

// ReferralCodeFromPayload finds the caller's invite code in a referrals
// response, falling back to the cached user profile.
func ReferralCodeFromPayload(payload, user map[string]any) string {
	if code := codeFrom(payload); code != "" {
		return code
	}
	if payload != nil {
		if data, ok := payload["data"].(map[string]any); ok {
			if code := codeFrom(data); code != "" {
				return code
			}
		}
	}

	if code := codeFrom(user); code != "" {
		return code
	}
	if user != nil {
		if nested, ok := user["user"].(map[string]any); ok {
			if code := codeFrom(nested); code != "" {
				return code
			}
		}
	}
	return ""
}

func codeFrom(m map[string]any) string {
	if m == nil {
		return ""
	}
	for _, key := range referralCodeKeys {
		if s := stringify(m[key]); s != "" {
			return s
		}
	}
	return ""
}

// pinDirectKeys are tried on the record itself; pinNestedKeys inside likely
// container objects; pinContainerKeys name those containers.
var (
	pinDirectKeys = []string{
		"businessPincode", "businessPinCode", "pincode", "pinCode", "pin",
		"postalCode", "postal_code", "zip", "zipcode", "postal",
	}
	pinNestedKeys = []string{
		"pincode", "pinCode", "pin", "postalCode", "postal_code", "postal",
		"zipcode", "zip",
	}
	pinContainerKeys = []string{"address", "location", "meta", "details", "contact", "business"}
	pinArrayKeys     = []string{"addresses", "locations", "places"}
)

// PinFromRecord extracts a postal code from a business record, trying direct
// keys, nested container objects, and address/location arrays in turn.
func PinFromRecord(record map[string]any) string {
	if record == nil {
		return ""
	}

	if pin := firstKey(record, pinDirectKeys); pin != "" {
		return pin
	}

	for _, containerKey := range pinContainerKeys {
		if container, ok := record[containerKey].(map[string]any); ok {
			if pin := firstKey(container, pinNestedKeys); pin != "" {
				return pin
			}
		}
	}

	for _, arrayKey := range pinArrayKeys {
		for _, entry := range asArray(record[arrayKey]) {
			if m, ok := entry.(map[string]any); ok {
				if pin := firstKey(m, pinNestedKeys); pin != "" {
					return pin
				}
			}
		}
	}
	return ""
}

func firstKey(m map[string]any, keys []string) string {
	for _, key := range keys {
		if s := stringify(m[key]); s != "" {
			return s
		}
	}
	return ""
}

// stringify renders scalar JSON values; decoded numbers arrive as float64
// and pincodes are frequently numeric in the wild.
func stringify(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case float64:
		if s == float64(int64(s)) {
			return fmt.Sprintf("%d", int64(s))
		}
		return fmt.Sprintf("%v", s)
	case bool:
		return ""
	default:
		return ""
	}
}
