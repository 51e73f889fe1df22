package scoring

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/google/cel-go/cel"
	"gopkg.in/yaml.v3"
)

// RuleInput carries the readings visible to advisory rule expressions
type RuleInput struct {
	Score       float64
	Nitrogen    float64
	Phosphorous float64
	Potassium   float64
	Temperature float64
	Humidity    float64
	PH          float64
	Rainfall    float64
}

func (in RuleInput) activation() map[string]interface{} {
	return map[string]interface{}{
		"score":       in.Score,
		"nitrogen":    in.Nitrogen,
		"phosphorous": in.Phosphorous,
		"potassium":   in.Potassium,
		"temperature": in.Temperature,
		"humidity":    in.Humidity,
		"ph":          in.PH,
		"rainfall":    in.Rainfall,
	}
}

// RuleSpec is an operator-defined advisory rule. When is a CEL expression
// returning bool, e.g. `rainfall > 250.0 && humidity > 90.0`.
type RuleSpec struct {
	Name string `yaml:"name"`
	When string `yaml:"when"`
	Text string `yaml:"text"`
}

type ruleFile struct {
	Rules []RuleSpec `yaml:"rules"`
}

type compiledRule struct {
	spec RuleSpec
	prg  cel.Program
}

// RuleSet is a compiled, ordered list of advisory rules. It is safe for
// concurrent use.
type RuleSet struct {
	rules       []compiledRule
	fingerprint string

	// OnError is called when a rule fails to evaluate; the rule is skipped
	OnError func(rule string, err error)
}

var (
	ruleEnv     *cel.Env
	ruleEnvErr  error
	ruleEnvOnce sync.Once
)

func getRuleEnv() (*cel.Env, error) {
	ruleEnvOnce.Do(func() {
		ruleEnv, ruleEnvErr = cel.NewEnv(
			cel.CrossTypeNumericComparisons(true),
			cel.Variable("score", cel.DoubleType),
			cel.Variable("nitrogen", cel.DoubleType),
			cel.Variable("phosphorous", cel.DoubleType),
			cel.Variable("potassium", cel.DoubleType),
			cel.Variable("temperature", cel.DoubleType),
			cel.Variable("humidity", cel.DoubleType),
			cel.Variable("ph", cel.DoubleType),
			cel.Variable("rainfall", cel.DoubleType),
		)
	})
	return ruleEnv, ruleEnvErr
}

// LoadRuleSet reads and compiles a YAML rule file of the form
//
//	rules:
//	  - name: waterlogging
//	    when: rainfall > 250.0 && humidity > 90.0
//	    text: Improve field drainage.
func LoadRuleSet(path string) (*RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read advisory rules %s: %w", path, err)
	}
	return ParseRuleSet(data)
}

// ParseRuleSet compiles rules from YAML bytes
func ParseRuleSet(data []byte) (*RuleSet, error) {
	var f ruleFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse advisory rules: %w", err)
	}
	return CompileRules(f.Rules)
}

// CompileRules compiles rule specs, failing on the first invalid rule
func CompileRules(specs []RuleSpec) (*RuleSet, error) {
	env, err := getRuleEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to create rule environment: %w", err)
	}

	seen := make(map[string]bool, len(specs))
	rs := &RuleSet{rules: make([]compiledRule, 0, len(specs))}
	for i, spec := range specs {
		spec.Name = strings.TrimSpace(spec.Name)
		spec.Text = strings.TrimSpace(spec.Text)
		switch {
		case spec.Name == "":
			return nil, fmt.Errorf("rule %d: name is required", i)
		case seen[spec.Name]:
			return nil, fmt.Errorf("rule %q: duplicate name", spec.Name)
		case strings.TrimSpace(spec.When) == "":
			return nil, fmt.Errorf("rule %q: when is required", spec.Name)
		case spec.Text == "":
			return nil, fmt.Errorf("rule %q: text is required", spec.Name)
		}
		seen[spec.Name] = true

		ast, issues := env.Compile(spec.When)
		if issues != nil && issues.Err() != nil {
			return nil, fmt.Errorf("rule %q: compile error: %w", spec.Name, issues.Err())
		}
		if !ast.OutputType().IsExactType(cel.BoolType) {
			return nil, fmt.Errorf("rule %q: expression must return bool, got %s", spec.Name, ast.OutputType())
		}
		prg, err := env.Program(ast)
		if err != nil {
			return nil, fmt.Errorf("rule %q: program error: %w", spec.Name, err)
		}
		rs.rules = append(rs.rules, compiledRule{spec: spec, prg: prg})
	}
	rs.fingerprint = fingerprint(rs.rules)
	return rs, nil
}

// fingerprint hashes the normalised rules in order. Two sets with the same
// fingerprint produce the same advice.
func fingerprint(rules []compiledRule) string {
	if len(rules) == 0 {
		return ""
	}
	h := sha256.New()
	for _, r := range rules {
		fmt.Fprintf(h, "%s\x00%s\x00%s\x00", r.spec.Name, strings.TrimSpace(r.spec.When), r.spec.Text)
	}
	return "rules-" + hex.EncodeToString(h.Sum(nil))[:12]
}

// Fingerprint identifies the rule set's content; empty for no rules
func (rs *RuleSet) Fingerprint() string {
	if rs == nil {
		return ""
	}
	return rs.fingerprint
}

// Len returns the number of rules
func (rs *RuleSet) Len() int {
	if rs == nil {
		return 0
	}
	return len(rs.rules)
}

// Evaluate returns the text of every matching rule, in file order
func (rs *RuleSet) Evaluate(in RuleInput) []string {
	if rs == nil || len(rs.rules) == 0 {
		return nil
	}

	vars := in.activation()
	var out []string
	for _, r := range rs.rules {
		val, _, err := r.prg.Eval(vars)
		if err != nil {
			rs.reportError(r.spec.Name, err)
			continue
		}
		matched, ok := val.Value().(bool)
		if !ok {
			rs.reportError(r.spec.Name, fmt.Errorf("expression returned %T", val.Value()))
			continue
		}
		if matched {
			out = append(out, r.spec.Text)
		}
	}
	return out
}

func (rs *RuleSet) reportError(rule string, err error) {
	if rs.OnError != nil {
		rs.OnError(rule, err)
	}
}
