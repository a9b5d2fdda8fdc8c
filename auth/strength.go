// Package auth provides password policy checks and strength scoring for
// the vault. Scoring is advisory only: it never sits on the critical path
// of authentication or encryption.
package auth

import (
	"strings"
	"unicode"

	zxcvbn "github.com/nbutton23/zxcvbn-go"
)

// Level is a coarse strength classification.
type Level int

const (
	LevelWeak Level = iota
	LevelFair
	LevelGood
	LevelStrong
)

// String returns the lower-case label for a level.
func (l Level) String() string {
	switch l {
	case LevelFair:
		return "fair"
	case LevelGood:
		return "good"
	case LevelStrong:
		return "strong"
	default:
		return "weak"
	}
}

// Advice is a strength estimate: a 0-100 score, a coarse level, and
// human-readable feedback.
type Advice struct {
	Score    int      `json:"score"`
	Level    string   `json:"level"`
	Feedback []string `json:"feedback"`
}

const specialChars = "!\"#$%&'()*+,-./:;<=>?@[\\]^_{|}~`"

// LocalScore evaluates a candidate secret with the local rule set plus the
// zxcvbn estimator. It is fast, offline, and always available; remote
// advice may supplement it but never stands in for it.
func LocalScore(password string) Advice {
	if password == "" {
		return Advice{Score: 0, Level: LevelWeak.String(), Feedback: []string{"password is empty"}}
	}

	var feedback []string
	if len(password) < 12 {
		feedback = append(feedback, "use at least 12 characters")
	}
	if !hasClass(password, unicode.IsUpper) {
		feedback = append(feedback, "add an uppercase letter")
	}
	if !hasClass(password, unicode.IsLower) {
		feedback = append(feedback, "add a lowercase letter")
	}
	if !hasClass(password, unicode.IsDigit) {
		feedback = append(feedback, "add a digit")
	}
	if !strings.ContainsAny(password, specialChars) {
		feedback = append(feedback, "add a special character")
	}

	match := zxcvbn.PasswordStrength(password, nil)

	// zxcvbn scores 0-4; stretch to 0-100 and reserve the top of each
	// band for passwords that also satisfy every local rule.
	score := match.Score * 20
	if len(feedback) == 0 {
		score += 15
	}
	if len(password) >= 16 {
		score += 5
	}
	if score > 100 {
		score = 100
	}

	return Advice{Score: score, Level: levelFor(score).String(), Feedback: feedback}
}

func levelFor(score int) Level {
	switch {
	case score >= 85:
		return LevelStrong
	case score >= 60:
		return LevelGood
	case score >= 40:
		return LevelFair
	default:
		return LevelWeak
	}
}

func hasClass(s string, is func(rune) bool) bool {
	for _, r := range s {
		if is(r) {
			return true
		}
	}
	return false
}
