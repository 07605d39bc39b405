package sso

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ParseClaimPath splits a dotted claim-path specification into its logical
// segments. A dot preceded by a backslash is part of the segment, not a
// separator, so "attr.role\.name.values" parses to
// ["attr", "role.name", "values"]. The first segment names the claim type to
// match; the rest describe a descent path into a nested JSON value.
func ParseClaimPath(spec string) []string {
	var segments []string
	var current strings.Builder

	for i := 0; i < len(spec); i++ {
		switch {
		case spec[i] == '\\' && i+1 < len(spec) && spec[i+1] == '.':
			current.WriteByte('.')
			i++
		case spec[i] == '.':
			segments = append(segments, current.String())
			current.Reset()
		default:
			current.WriteByte(spec[i])
		}
	}
	segments = append(segments, current.String())

	return segments
}

// ExtractRoles extracts the role list a single claim contributes under the
// given claim path.
//
// A claim whose type does not match the first path segment is not applicable
// and contributes nothing. A single-segment path takes the claim value
// verbatim as the sole role. A multi-segment path parses the value as JSON
// and descends through it: every intermediate segment must resolve to an
// object, and the final segment must resolve to an array of strings.
// Any shape violation is reported as ErrMalformedClaim; callers treat that
// as zero roles rather than aborting the callback, so noise from unrelated
// attributes cannot take logins down.
func ExtractRoles(segments []string, claimType, claimValue string) ([]string, error) {
	if len(segments) == 0 || claimType != segments[0] {
		return nil, nil
	}

	if len(segments) == 1 {
		return []string{claimValue}, nil
	}

	var node any
	if err := json.Unmarshal([]byte(claimValue), &node); err != nil {
		return nil, fmt.Errorf("%w: claim %q is not valid JSON", ErrMalformedClaim, claimType)
	}

	for i := 1; i < len(segments); i++ {
		obj, ok := node.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: segment %q does not resolve to an object", ErrMalformedClaim, segments[i-1])
		}
		node, ok = obj[segments[i]]
		if !ok {
			return nil, fmt.Errorf("%w: segment %q not present", ErrMalformedClaim, segments[i])
		}
	}

	arr, ok := node.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: path %q does not end in an array", ErrMalformedClaim, strings.Join(segments, "."))
	}

	roles := make([]string, 0, len(arr))
	for _, v := range arr {
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("%w: role list contains a non-string element", ErrMalformedClaim)
		}
		roles = append(roles, s)
	}

	return roles, nil
}
