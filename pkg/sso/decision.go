package sso

import (
	"encoding/json"
	"sort"

	"github.com/sirupsen/logrus"
)

// claimFold is the outcome of folding one claim set through the claim-path
// resolver and the role policy. Roles are kept alongside the decision so
// callers can log observed vs. expected roles on a mismatch.
type claimFold struct {
	Decision IdentityDecision
	Roles    []string
	Subject  string
}

// foldClaims folds every claim in the set through ExtractRoles and evaluates
// the accumulated roles against the policy, producing one immutable
// decision. Evaluation is strictly sequential in claim-set order; repeated
// claims of the matching type accumulate roles (append-only union).
//
// Username resolution: the value of usernameClaim is primary. If no claim of
// that type yields a valid login, the subject identifier is used instead and
// only the no-role-gating check is re-run; admin and folder grants are not
// re-evaluated on the fallback path.
func foldClaims(claims []Claim, segments []string, usernameClaim, subject string, policy RolePolicy, log *logrus.Logger) claimFold {
	var roles []string
	var username string

	for _, c := range claims {
		if c.Type == usernameClaim {
			username = c.Value
		}
		extracted, err := ExtractRoles(segments, c.Type, c.Value)
		if err != nil {
			// Soft failure: the claim contributes zero roles.
			log.WithError(err).WithField("claim", c.Type).Debug("skipping malformed claim")
			continue
		}
		roles = append(roles, extracted...)
	}

	res := policy.Evaluate(roles)
	decision := IdentityDecision{
		Valid:    res.Valid,
		Username: username,
		IsAdmin:  res.IsAdmin,
		Folders:  res.Folders,
	}

	if (username == "" || !decision.Valid) && subject != "" {
		decision.Username = subject
		decision.Valid = len(policy.AllowedRoles) == 0
	}

	return claimFold{Decision: decision, Roles: roles, Subject: subject}
}

// claimSetFromMap flattens a decoded claim object into an ordered claim set.
// String values are taken verbatim; anything else is re-encoded as JSON so
// the claim-path resolver can descend into it. Keys are sorted so evaluation
// order is deterministic.
func claimSetFromMap(raw map[string]any) []Claim {
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	claims := make([]Claim, 0, len(keys))
	for _, k := range keys {
		switch v := raw[k].(type) {
		case string:
			claims = append(claims, Claim{Type: k, Value: v})
		default:
			encoded, err := json.Marshal(v)
			if err != nil {
				continue
			}
			claims = append(claims, Claim{Type: k, Value: string(encoded)})
		}
	}
	return claims
}
