package vat

import (
	"fmt"
	"reflect"

	"github.com/google/cel-go/cel"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Treatment is the tax regime of a whole invoice.
type Treatment string

const (
	// TreatmentStandard charges the seller country's rates.
	TreatmentStandard Treatment = "standard"
	// TreatmentReverseCharge shifts the tax to an EU business customer.
	TreatmentReverseCharge Treatment = "reverse_charge"
	// TreatmentExport is zero-rated supply outside the EU.
	TreatmentExport Treatment = "export"
	// TreatmentExempt charges nothing.
	TreatmentExempt Treatment = "exempt"
)

// IsValid reports whether t is a known treatment.
func (t Treatment) IsValid() bool {
	switch t {
	case TreatmentStandard, TreatmentReverseCharge, TreatmentExport, TreatmentExempt:
		return true
	}
	return false
}

// Rule maps a CEL condition to a treatment.
//
// Variables available to Condition: seller_country, customer_country,
// customer_vat_id (strings), seller_in_eu, customer_in_eu (bools).
type Rule struct {
	Name      string    `mapstructure:"name"`
	Condition string    `mapstructure:"condition"`
	Treatment Treatment `mapstructure:"treatment"`
}

// DefaultRules is the built-in rule list.
func DefaultRules() []Rule {
	return []Rule{
		{
			Name:      "intra-eu-reverse-charge",
			Condition: `seller_in_eu && customer_in_eu && customer_vat_id != "" && customer_country != seller_country`,
			Treatment: TreatmentReverseCharge,
		},
		{
			Name:      "export",
			Condition: `seller_in_eu && !customer_in_eu && customer_country != seller_country`,
			Treatment: TreatmentExport,
		},
	}
}

// Facts are the inputs of rule evaluation.
type Facts struct {
	SellerCountry   string
	CustomerCountry string
	CustomerVATID   string
	SellerInEU      bool
	CustomerInEU    bool
}

func (f Facts) activation() map[string]any {
	return map[string]any{
		"seller_country":   f.SellerCountry,
		"customer_country": f.CustomerCountry,
		"customer_vat_id":  f.CustomerVATID,
		"seller_in_eu":     f.SellerInEU,
		"customer_in_eu":   f.CustomerInEU,
	}
}

type compiledRule struct {
	Rule
	program cel.Program
}

func newRuleEnv() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable("seller_country", cel.StringType),
		cel.Variable("customer_country", cel.StringType),
		cel.Variable("customer_vat_id", cel.StringType),
		cel.Variable("seller_in_eu", cel.BoolType),
		cel.Variable("customer_in_eu", cel.BoolType),
	)
}

// compileRules type-checks every condition. Conditions must yield bool.
func compileRules(rules []Rule) ([]compiledRule, error) {
	env, err := newRuleEnv()
	if err != nil {
		return nil, fmt.Errorf("create cel env: %w", err)
	}

	compiled := make([]compiledRule, 0, len(rules))
	for _, r := range rules {
		if !r.Treatment.IsValid() {
			return nil, fmt.Errorf("rule %q: unknown treatment %q", r.Name, r.Treatment)
		}

		ast, iss := env.Compile(r.Condition)
		if iss.Err() != nil {
			return nil, fmt.Errorf("rule %q: %w", r.Name, iss.Err())
		}
		if !ast.OutputType().IsExactType(cel.BoolType) {
			return nil, fmt.Errorf("rule %q: condition must be bool, got %s", r.Name, ast.OutputType())
		}

		prg, err := env.Program(ast)
		if err != nil {
			return nil, fmt.Errorf("rule %q: %w", r.Name, err)
		}
		compiled = append(compiled, compiledRule{Rule: r, program: prg})
	}
	return compiled, nil
}

func (r compiledRule) matches(f Facts) (bool, error) {
	out, _, err := r.program.Eval(f.activation())
	if err != nil {
		return false, fmt.Errorf("evaluate rule %q: %w", r.Name, err)
	}
	matched, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("rule %q returned %T", r.Name, out.Value())
	}
	return matched, nil
}

// RuleFile is the layout of an external rule file (yaml, json or toml).
type RuleFile struct {
	Rates []CountryRates `mapstructure:"rates"`
	Rules []Rule         `mapstructure:"rules"`
}

// LoadRuleFile reads rates and rules from path.
func LoadRuleFile(path string) (RuleFile, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return RuleFile{}, fmt.Errorf("read vat rule file: %w", err)
	}

	var file RuleFile
	if err := v.Unmarshal(&file, viper.DecodeHook(decimalHook())); err != nil {
		return RuleFile{}, fmt.Errorf("decode vat rule file: %w", err)
	}
	return file, nil
}

var decimalType = reflect.TypeOf(decimal.Decimal{})

// decimalHook decodes numbers and numeric strings into decimal.Decimal.
func decimalHook() func(from reflect.Type, to reflect.Type, data any) (any, error) {
	return func(from reflect.Type, to reflect.Type, data any) (any, error) {
		if to != decimalType {
			return data, nil
		}
		switch v := data.(type) {
		case string:
			return decimal.NewFromString(v)
		case float64:
			return decimal.NewFromFloat(v), nil
		case int:
			return decimal.NewFromInt(int64(v)), nil
		case int64:
			return decimal.NewFromInt(v), nil
		}
		return data, nil
	}
}
