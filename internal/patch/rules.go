// Package patch applies declarative regular-expression rules to source
// files. A rule set must be idempotent: applying it to its own output
// changes nothing.
package patch

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrNotIdempotent is returned when a second pass over patched text would
// change it again.
var ErrNotIdempotent = errors.New("patch: rules are not idempotent")

// Rule replaces every match of Pattern with Replacement ($1 style
// expansion). When Guard is set and matches the current text the rule is
// skipped, which is how insert-once rules stay idempotent.
type Rule struct {
	Name        string `yaml:"name"`
	Pattern     string `yaml:"pattern"`
	Replacement string `yaml:"replacement"`
	Guard       string `yaml:"guard,omitempty"`
}

type ruleFile struct {
	Rules []Rule `yaml:"rules"`
}

func LoadRules(path string) ([]Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules: %w", err)
	}

	rules, err := ParseRules(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return rules, nil
}

func ParseRules(data []byte) ([]Rule, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var file ruleFile
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("decode rules: %w", err)
	}
	if len(file.Rules) == 0 {
		return nil, errors.New("rule file has no rules")
	}
	return file.Rules, nil
}

type compiledRule struct {
	Rule
	re    *regexp.Regexp
	guard *regexp.Regexp
}

// Pipeline is an ordered, compiled rule list.
type Pipeline struct {
	rules []compiledRule
}

// Compile validates every rule and its regular expressions.
func Compile(rules []Rule) (*Pipeline, error) {
	compiled := make([]compiledRule, 0, len(rules))
	seen := make(map[string]bool, len(rules))

	for i, rule := range rules {
		name := strings.TrimSpace(rule.Name)
		if name == "" {
			return nil, fmt.Errorf("rule %d: name is required", i+1)
		}
		if seen[name] {
			return nil, fmt.Errorf("rule %s: duplicate name", name)
		}
		seen[name] = true

		if rule.Pattern == "" {
			return nil, fmt.Errorf("rule %s: pattern is required", name)
		}
		re, err := regexp.Compile(rule.Pattern)
		if err != nil {
			return nil, fmt.Errorf("rule %s: pattern: %w", name, err)
		}

		c := compiledRule{Rule: rule, re: re}
		c.Name = name
		if rule.Guard != "" {
			if c.guard, err = regexp.Compile(rule.Guard); err != nil {
				return nil, fmt.Errorf("rule %s: guard: %w", name, err)
			}
		}
		compiled = append(compiled, c)
	}

	return &Pipeline{rules: compiled}, nil
}

// Change records how many matches one rule rewrote.
type Change struct {
	Rule  string
	Count int
}

// Apply runs every rule in order over src. Rules whose replacement leaves
// the text as it was produce no Change.
func (p *Pipeline) Apply(src string) (string, []Change) {
	var changes []Change
	text := src

	for _, rule := range p.rules {
		if rule.guard != nil && rule.guard.MatchString(text) {
			continue
		}

		matches := rule.re.FindAllStringIndex(text, -1)
		if len(matches) == 0 {
			continue
		}

		out := rule.re.ReplaceAllString(text, rule.Replacement)
		if out == text {
			continue
		}

		changes = append(changes, Change{Rule: rule.Name, Count: len(matches)})
		text = out
	}

	return text, changes
}

// ApplyChecked is Apply followed by a second pass over the result; any change
// in the second pass yields ErrNotIdempotent.
func (p *Pipeline) ApplyChecked(src string) (string, []Change, error) {
	out, changes := p.Apply(src)
	if len(changes) == 0 {
		return out, nil, nil
	}

	if _, again := p.Apply(out); len(again) > 0 {
		names := make([]string, 0, len(again))
		for _, c := range again {
			names = append(names, c.Rule)
		}
		return "", nil, fmt.Errorf("%w: %s", ErrNotIdempotent, strings.Join(names, ", "))
	}

	return out, changes, nil
}
