// Package password implements the credential policy: bcrypt hashing and
// password strength validation.
package password

import (
	"unicode"

	"github.com/avdeev-dm/accountd/internal/common"
	"golang.org/x/crypto/bcrypt"
)

// Policy hashes and verifies passwords and enforces strength rules.
// The zero cost falls back to bcrypt.DefaultCost, so a Policy can be
// constructed directly in tests.
type Policy struct {
	cost int
}

func NewPolicy(cost int) *Policy {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &Policy{cost: cost}
}

// Hash returns a salted bcrypt hash of the password. The hash encodes its own
// cost, so raising the configured cost later only affects new hashes and old
// ones keep verifying.
func (p *Policy) Hash(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), p.cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Verify reports whether password matches the stored hash.
func (p *Policy) Verify(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// NeedsRehash reports whether the stored hash was produced with a cost lower
// than the currently configured one.
func (p *Policy) NeedsRehash(hash string) bool {
	cost, err := bcrypt.Cost([]byte(hash))
	if err != nil {
		return true
	}
	return cost < p.cost
}

// ValidateStrength checks the candidate password against the strength rules
// and returns a *common.WeakPasswordError naming the first failing rule.
// Rules are checked in a fixed order: minimum length (8), uppercase,
// lowercase, digit, symbol.
func (p *Policy) ValidateStrength(password string) error {
	runes := []rune(password)
	if len(runes) < 8 {
		return &common.WeakPasswordError{Rule: common.RuleMinLength}
	}

	var hasUpper, hasLower, hasDigit, hasSymbol bool
	for _, r := range runes {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			hasSymbol = true
		}
	}

	switch {
	case !hasUpper:
		return &common.WeakPasswordError{Rule: common.RuleUppercase}
	case !hasLower:
		return &common.WeakPasswordError{Rule: common.RuleLowercase}
	case !hasDigit:
		return &common.WeakPasswordError{Rule: common.RuleDigit}
	case !hasSymbol:
		return &common.WeakPasswordError{Rule: common.RuleSymbol}
	}

	return nil
}
