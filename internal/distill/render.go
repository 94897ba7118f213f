package distill

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"irrigation/internal/features"
	"irrigation/internal/types"
)

// Format selects a rule set rendering.
type Format string

const (
	FormatText Format = "text"
	FormatC    Format = "c"
	FormatGo   Format = "go"
	FormatJSON Format = "json"
)

// Formats lists every supported rendering.
var Formats = []Format{FormatText, FormatC, FormatGo, FormatJSON}

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	for _, f := range Formats {
		if string(f) == strings.ToLower(strings.TrimSpace(s)) {
			return f, nil
		}
	}
	return "", types.NewAppErrorWithDetails(types.ErrCodeValidationRenderFormat,
		fmt.Sprintf("unknown render format %q", s), nil,
		map[string]any{"known": Formats})
}

// Default generated function names.
const (
	CFunctionName  = "should_irrigate"
	GoFunctionName = "ShouldIrrigate"
	GoPackageName  = "irrigationrule"
)

// Render dispatches to the renderer for f using the default names.
func Render(rs *RuleSet, f Format) (string, error) {
	switch f {
	case FormatText:
		return RenderText(rs)
	case FormatC:
		return RenderC(rs, CFunctionName)
	case FormatGo:
		return RenderGo(rs, GoPackageName, GoFunctionName)
	case FormatJSON:
		b, err := json.MarshalIndent(rs, "", "  ")
		if err != nil {
			return "", fmt.Errorf("failed to marshal rule set: %w", err)
		}
		return string(b) + "\n", nil
	default:
		_, err := ParseFormat(string(f))
		return "", err
	}
}

// branch is the nested form of a rule set, rebuilt from the flat rules so
// every renderer emits the same conditional structure the tree had.
type branch struct {
	leaf    bool
	label   types.Label
	samples int
	cond    Condition
	le, gt  *branch
}

// nest rebuilds the conditional structure from rules whose first depth
// conditions are shared.
func nest(rules []Rule, depth int) (*branch, error) {
	if len(rules) == 0 {
		return nil, fmt.Errorf("rule set is malformed: no rules below depth %d", depth)
	}
	first := rules[0]
	if len(first.Conditions) == depth {
		if len(rules) != 1 {
			return nil, fmt.Errorf("rule set is malformed: rule %q shadows %d later rules", first, len(rules)-1)
		}
		return &branch{leaf: true, label: first.Label, samples: first.Samples}, nil
	}

	head := first.Conditions[depth]
	if head.Op != OpLE {
		return nil, fmt.Errorf("rule set is malformed: %q has no <= branch", head)
	}
	cut := -1
	for i, r := range rules {
		if len(r.Conditions) <= depth {
			return nil, fmt.Errorf("rule set is malformed: rule %q is shorter than its siblings", r)
		}
		c := r.Conditions[depth]
		if c.Feature != head.Feature || c.Threshold != head.Threshold {
			return nil, fmt.Errorf("rule set is malformed: %q and %q share a parent", head, c)
		}
		if c.Op == OpGT && cut < 0 {
			cut = i
		}
		if c.Op == OpLE && cut >= 0 {
			return nil, fmt.Errorf("rule set is malformed: %q follows its > sibling", c)
		}
	}
	if cut < 0 {
		return nil, fmt.Errorf("rule set is malformed: %q has no > branch", head)
	}

	le, err := nest(rules[:cut], depth+1)
	if err != nil {
		return nil, err
	}
	gt, err := nest(rules[cut:], depth+1)
	if err != nil {
		return nil, err
	}
	return &branch{cond: Condition{Feature: head.Feature, Threshold: head.Threshold}, le: le, gt: gt}, nil
}

func (rs *RuleSet) nested() (*branch, error) {
	if rs == nil || len(rs.Rules) == 0 {
		return nil, types.NewAppError(types.ErrCodeEmptyDataset, "rule set has no rules", nil)
	}
	return nest(rs.Rules, 0)
}

// RenderText renders the indented listing:
//
//	|--- sensor_reading <= 499.5
//	|   |--- class: 0
//	|--- sensor_reading >  499.5
//	|   |--- class: 1
func RenderText(rs *RuleSet) (string, error) {
	root, err := rs.nested()
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	var walk func(b *branch, depth int)
	walk = func(b *branch, depth int) {
		prefix := strings.Repeat("|   ", depth) + "|--- "
		if b.leaf {
			fmt.Fprintf(&sb, "%sclass: %s\n", prefix, b.label)
			return
		}
		name := b.cond.Feature.Name()
		t := formatThreshold(b.cond.Threshold)
		fmt.Fprintf(&sb, "%s%s <= %s\n", prefix, name, t)
		walk(b.le, depth+1)
		fmt.Fprintf(&sb, "%s%s >  %s\n", prefix, name, t)
		walk(b.gt, depth+1)
	}
	walk(root, 0)
	return sb.String(), nil
}

// RenderC renders an Arduino-compatible C function taking every feature of
// the set as a parameter, integral features as int.
func RenderC(rs *RuleSet, name string) (string, error) {
	root, err := rs.nested()
	if err != nil {
		return "", err
	}
	params := make([]string, len(rs.Features))
	for i, id := range rs.Features {
		typ := "float"
		if id.Integral() {
			typ = "int"
		}
		params[i] = typ + " " + id.Name()
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "// Generated irrigation decision: %d rules, depth %d.\n", len(rs.Rules), rs.MaxPathLength())
	fmt.Fprintf(&sb, "bool %s(%s) {\n", name, strings.Join(params, ", "))
	var walk func(b *branch, indent int)
	walk = func(b *branch, indent int) {
		pad := strings.Repeat("  ", indent)
		if b.leaf {
			fmt.Fprintf(&sb, "%sreturn %t;\n", pad, b.label.Bool())
			return
		}
		fmt.Fprintf(&sb, "%sif (%s <= %s) {\n", pad, b.cond.Feature.Name(), formatThreshold(b.cond.Threshold))
		walk(b.le, indent+1)
		fmt.Fprintf(&sb, "%s} else {\n", pad)
		walk(b.gt, indent+1)
		fmt.Fprintf(&sb, "%s}\n", pad)
	}
	walk(root, 1)
	sb.WriteString("}\n")
	return sb.String(), nil
}

// RenderGo renders a gofmt-clean Go source file with a single function.
// Every parameter is float64 so thresholds between integers compare
// exactly as they do in the tree.
func RenderGo(rs *RuleSet, pkg, name string) (string, error) {
	root, err := rs.nested()
	if err != nil {
		return "", err
	}
	params := make([]string, len(rs.Features))
	for i, id := range rs.Features {
		params[i] = goIdent(id)
	}

	var sb strings.Builder
	sb.WriteString("// Code generated by irrigation distill. DO NOT EDIT.\n\n")
	fmt.Fprintf(&sb, "package %s\n\n", pkg)
	fmt.Fprintf(&sb, "// %s reports whether the field should be irrigated today.\n", name)
	fmt.Fprintf(&sb, "func %s(%s float64) bool {\n", name, strings.Join(params, ", "))
	var walk func(b *branch, indent int)
	walk = func(b *branch, indent int) {
		pad := strings.Repeat("\t", indent)
		if b.leaf {
			fmt.Fprintf(&sb, "%sreturn %t\n", pad, b.label.Bool())
			return
		}
		fmt.Fprintf(&sb, "%sif %s <= %s {\n", pad, goIdent(b.cond.Feature), formatThreshold(b.cond.Threshold))
		walk(b.le, indent+1)
		fmt.Fprintf(&sb, "%s}\n", pad)
		walk(b.gt, indent)
	}
	walk(root, 1)
	sb.WriteString("}\n")
	return sb.String(), nil
}

// ReferenceC is the reference rule in the form flashed onto controllers.
const ReferenceC = `bool reference_should_irrigate(int sensor_reading, int rain_probability, float temperature, int season) {
  if (rain_probability > 50) {
    return false;
  }
  if (sensor_reading < 500) {
    return false;
  }
  if (sensor_reading > 600 && rain_probability < 30) {
    if (season == 2) {
      return true;
    }
    if (sensor_reading > 700) {
      return true;
    }
  }
  return false;
}
`

// goIdent converts a snake_case feature name to a lowerCamel identifier.
func goIdent(id features.ID) string {
	parts := strings.Split(id.Name(), "_")
	for i := 1; i < len(parts); i++ {
		if parts[i] == "" {
			continue
		}
		parts[i] = strings.ToUpper(parts[i][:1]) + parts[i][1:]
	}
	return strings.Join(parts, "")
}

// formatThreshold prints the shortest decimal that parses back to t.
func formatThreshold(t float64) string {
	return strconv.FormatFloat(t, 'f', -1, 64)
}
