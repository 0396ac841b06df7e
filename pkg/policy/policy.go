// Package policy decides whether task input needs a human checkpoint
// before the pipeline may execute it. The surface is deliberately not a
// rule language: a fixed registry of reason codes, each with a list of
// substring patterns, evaluated in registration order.
package policy

import (
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/redsunjin/NestClaw/pkg/task"
)

// Rule couples a reason code with the patterns that trigger it.
type Rule struct {
	Reason   string
	Patterns []string
}

// Detector scans task input for registered patterns. It is a pure
// function of (input, approved reasons) and safe for concurrent use
// after construction.
type Detector struct {
	rules []rule
}

type rule struct {
	reason   string
	patterns []string
}

// NewDetector builds a detector from the given rules, keeping their
// order. Patterns are matched case-insensitively on NFC-normalized
// text, so composed and decomposed Hangul input behave identically.
func NewDetector(rules ...Rule) *Detector {
	d := &Detector{}
	for _, r := range rules {
		d.register(r.Reason, r.Patterns)
	}
	return d
}

// Default returns the baseline registry: a single reason flagging
// outbound-transmission intent.
func Default() *Detector {
	return NewDetector(Rule{
		Reason: task.ReasonExternalSend,
		Patterns: []string{
			"외부 전송",
			"external send",
			"메일 발송",
			"send externally",
			"http://",
			"https://",
		},
	})
}

// Register appends a reason code after construction. Later rules are
// evaluated after earlier ones.
func (d *Detector) Register(reason string, patterns ...string) {
	d.register(reason, patterns)
}

func (d *Detector) register(reason string, patterns []string) {
	normed := make([]string, len(patterns))
	for i, p := range patterns {
		normed[i] = canon(p)
	}
	d.rules = append(d.rules, rule{reason: reason, patterns: normed})
}

// Detect returns the first reason code whose patterns match the input
// and that is not already cleared in approved. The scan covers the
// concatenation of all string-valued input fields, in sorted key order
// so the result does not depend on map iteration.
func (d *Detector) Detect(input map[string]any, approved []string) (string, bool) {
	text := scanText(input)
	if text == "" {
		return "", false
	}
	for _, r := range d.rules {
		if containsString(approved, r.reason) {
			continue
		}
		for _, p := range r.patterns {
			if strings.Contains(text, p) {
				return r.reason, true
			}
		}
	}
	return "", false
}

func scanText(input map[string]any) string {
	keys := make([]string, 0, len(input))
	for k, v := range input {
		if _, ok := v.(string); ok {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return ""
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, input[k].(string))
	}
	return canon(strings.Join(parts, " "))
}

func canon(s string) string {
	return strings.ToLower(norm.NFC.String(s))
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
