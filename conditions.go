package doc

import (
	"fmt"
	"strings"
	"time"
)

// applyFieldStates rebuilds the per-field view of the document from the
// catalog: value, dirtiness against the baseline, and the hidden/disabled
// flags driven by static spec flags and display conditions. Touched flags and
// the last validation message survive the rebuild. After this runs the field
// map covers every non-layout catalog field.
func (c *Controller) applyFieldStates(state *State) {
	schema := c.currentSchema()
	if state.Fields == nil {
		state.Fields = map[string]FieldState{}
	}
	for _, spec := range schema.DataFields() {
		prior := state.Fields[spec.Name]
		fieldState := FieldState{
			Value:    state.Doc[spec.Name],
			Touched:  prior.Touched,
			Dirty:    !valuesEqual(state.Doc[spec.Name], state.Original[spec.Name]),
			Hidden:   spec.Hidden,
			Disabled: spec.ReadOnly,
			Error:    prior.Error,
		}
		if spec.DependsOn != "" {
			shown, err := c.evalCondition(spec.DependsOn, state.Doc, spec.Name)
			if err != nil {
				shown = false
			}
			fieldState.Hidden = spec.Hidden || !shown
		}
		if spec.ReadOnlyDependsOn != "" {
			readOnly, err := c.evalCondition(spec.ReadOnlyDependsOn, state.Doc, spec.Name)
			if err != nil {
				readOnly = true
			}
			fieldState.Disabled = spec.ReadOnly || readOnly
		}
		state.Fields[spec.Name] = fieldState
	}
}

// requiredOverrides evaluates conditional requiredness for fields carrying a
// required_depends_on expression. Evaluation failures leave the field not
// required.
func (c *Controller) requiredOverrides(document Document) map[string]bool {
	schema := c.currentSchema()
	var overrides map[string]bool
	for _, spec := range schema.DataFields() {
		if spec.RequiredDependsOn == "" {
			continue
		}
		required, err := c.evalCondition(spec.RequiredDependsOn, document, spec.Name)
		if err != nil {
			required = false
		}
		if overrides == nil {
			overrides = map[string]bool{}
		}
		overrides[spec.Name] = required || spec.Required
	}
	return overrides
}

// evalCondition runs one condition expression against the document and
// reduces the result to a truthiness verdict, logging every attempt. The
// legacy "eval:" prefix on condition strings is stripped; a bare field name
// resolves to that field's truthiness.
func (c *Controller) evalCondition(expr string, document Document, field string) (bool, error) {
	expr = strings.TrimPrefix(strings.TrimSpace(expr), "eval:")
	if expr == "" {
		return false, fmt.Errorf("expression must not be empty")
	}
	evaluator, err := c.resolveEvaluator()
	if err != nil {
		return false, err
	}
	ctx := RuleContext{Doc: document, Field: field}.withDefaults()
	engine := evaluatorEngineName(evaluator)
	start := time.Now()
	value, evalErr := evaluator.Evaluate(ctx, expr)
	duration := time.Since(start)
	evalErr = wrapEvaluationError("", expr, ctx.fieldLabel(), evalErr)
	c.evaluatorLogger().LogEvaluation(EvaluatorLogEvent{
		Engine:   engine,
		Expr:     expr,
		Field:    ctx.fieldLabel(),
		Duration: duration,
		Err:      evalErr,
	})
	if evalErr != nil {
		return false, evalErr
	}
	return truthy(value), nil
}

func (c *Controller) evaluatorLogger() EvaluatorLogger {
	if c.logger != nil {
		return c.logger
	}
	return noopEvaluatorLogger{}
}

func (c *Controller) resolveEvaluator() (Evaluator, error) {
	c.evalMu.Lock()
	defer c.evalMu.Unlock()
	if c.evaluator != nil {
		return c.evaluator, nil
	}
	var exprOpts []ExprEvaluatorOption
	if c.programCache != nil {
		exprOpts = append(exprOpts, ExprWithProgramCache(c.programCache))
	}
	if c.functions != nil {
		exprOpts = append(exprOpts, ExprWithFunctionRegistry(c.functions))
	}
	defaultEvaluator := NewExprEvaluator(exprOpts...)
	if defaultEvaluator == nil {
		return nil, ErrNoEvaluator
	}
	c.evaluator = defaultEvaluator
	return defaultEvaluator, nil
}

// truthy mirrors the loose truthiness the original condition strings expect.
func truthy(value any) bool {
	switch typed := value.(type) {
	case nil:
		return false
	case bool:
		return typed
	case string:
		return typed != ""
	case int:
		return typed != 0
	case int64:
		return typed != 0
	case float64:
		return typed != 0
	case float32:
		return typed != 0
	default:
		return true
	}
}

func evaluatorEngineName(e Evaluator) string {
	if e == nil {
		return "unknown"
	}
	switch fmt.Sprintf("%T", e) {
	case "*doc.exprEvaluator":
		return "expr"
	case "*doc.celEvaluator":
		return "cel"
	case "*doc.jsEvaluator":
		return "js"
	default:
		return "custom"
	}
}
