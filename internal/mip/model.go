// Package mip builds bounded integer linear models and solves them.
//
// A Model holds integer variables with finite domains, linear constraints
// lo <= sum(coef*x) <= hi and a linear objective to minimise. Models are
// solver-neutral; Solver implementations read them without modification, so
// one model can be solved several times (or by several workers) at once.
package mip

import (
	"fmt"
	"sort"
)

// Inf bounds a constraint side that should be ignored.
const Inf int64 = 1 << 52

// Var identifies a variable inside its Model.
type Var int

type Term struct {
	Var  Var
	Coef int64
}

// Expr is a linear expression without constant part.
type Expr []Term

// Sum returns the expression x1 + x2 + ... .
func Sum(vars ...Var) Expr {
	e := make(Expr, 0, len(vars))
	for _, v := range vars {
		e = append(e, Term{Var: v, Coef: 1})
	}
	return e
}

// Plus returns e + coef*v.
func (e Expr) Plus(v Var, coef int64) Expr {
	return append(e, Term{Var: v, Coef: coef})
}

// Add returns e + o.
func (e Expr) Add(o Expr) Expr {
	out := make(Expr, 0, len(e)+len(o))
	out = append(out, e...)
	return append(out, o...)
}

// Scale returns k*e.
func (e Expr) Scale(k int64) Expr {
	out := make(Expr, len(e))
	for i, t := range e {
		out[i] = Term{Var: t.Var, Coef: t.Coef * k}
	}
	return out
}

// Constraint is lo <= Terms <= hi. Terms are merged and free of zeros.
type Constraint struct {
	Name  string
	Terms []Term
	Lo    int64
	Hi    int64
}

type variable struct {
	name    string
	lo, hi  int64
	obj     float64
	hint    int64
	hasHint bool
}

type Model struct {
	name     string
	vars     []variable
	cons     []Constraint
	objConst float64
	decision []Var
	// set when a Fix or bound contradicts the domain at build time
	conflict string
}

func NewModel(name string) *Model {
	return &Model{name: name}
}

func (m *Model) Name() string        { return m.name }
func (m *Model) NumVars() int        { return len(m.vars) }
func (m *Model) NumConstraints() int { return len(m.cons) }

// Constraints returns the posted constraints. Callers must not modify them.
func (m *Model) Constraints() []Constraint { return m.cons }

func (m *Model) NewBool(name string) Var {
	return m.NewInt(0, 1, name)
}

func (m *Model) NewInt(lo, hi int64, name string) Var {
	if lo > hi {
		m.markConflict(fmt.Sprintf("variable %s has empty domain [%d,%d]", name, lo, hi))
	}
	m.vars = append(m.vars, variable{name: name, lo: lo, hi: hi})
	return Var(len(m.vars) - 1)
}

func (m *Model) VarName(v Var) string { return m.vars[v].name }

func (m *Model) Bounds(v Var) (int64, int64) { return m.vars[v].lo, m.vars[v].hi }

// Fix restricts v to a single value.
func (m *Model) Fix(v Var, val int64) {
	x := &m.vars[v]
	if val < x.lo || val > x.hi {
		m.markConflict(fmt.Sprintf("cannot fix %s to %d outside [%d,%d]", x.name, val, x.lo, x.hi))
		return
	}
	x.lo, x.hi = val, val
}

// Add posts lo <= e <= hi. Use -Inf or Inf to leave a side open.
func (m *Model) Add(name string, e Expr, lo, hi int64) {
	terms := normalize(e)
	if len(terms) == 0 {
		if lo > 0 || hi < 0 {
			m.markConflict(fmt.Sprintf("constraint %s is trivially violated", name))
		}
		return
	}
	m.cons = append(m.cons, Constraint{Name: name, Terms: terms, Lo: lo, Hi: hi})
}

func (m *Model) AddLE(name string, e Expr, hi int64) { m.Add(name, e, -Inf, hi) }
func (m *Model) AddGE(name string, e Expr, lo int64) { m.Add(name, e, lo, Inf) }
func (m *Model) AddEq(name string, e Expr, val int64) { m.Add(name, e, val, val) }

// Implies posts a => b for boolean a and b.
func (m *Model) Implies(name string, a, b Var) {
	m.AddLE(name, Expr{{Var: a, Coef: 1}, {Var: b, Coef: -1}}, 0)
}

// Minimize adds coef*v to the objective.
func (m *Model) Minimize(v Var, coef float64) {
	m.vars[v].obj += coef
}

// MinimizeExpr adds scale*e to the objective.
func (m *Model) MinimizeExpr(e Expr, scale float64) {
	for _, t := range e {
		m.vars[t.Var].obj += scale * float64(t.Coef)
	}
}

func (m *Model) AddObjectiveConstant(c float64) { m.objConst += c }

func (m *Model) ObjectiveCoef(v Var) float64 { return m.vars[v].obj }

// Hint suggests a value tried first when branching on v.
func (m *Model) Hint(v Var, val int64) {
	m.vars[v].hint = val
	m.vars[v].hasHint = true
}

// AddDecisionStrategy makes the search branch on vars, in order, before
// any other variable.
func (m *Model) AddDecisionStrategy(vars ...Var) {
	m.decision = append(m.decision, vars...)
}

// Conflict reports a contradiction detected while the model was built.
func (m *Model) Conflict() string { return m.conflict }

// Evaluate returns the objective value of a full assignment.
func (m *Model) Evaluate(values []int64) float64 {
	total := m.objConst
	for i, x := range m.vars {
		if x.obj != 0 {
			total += x.obj * float64(values[i])
		}
	}
	return total
}

// Verify checks a full assignment against domains and constraints.
func (m *Model) Verify(values []int64) error {
	if len(values) != len(m.vars) {
		return fmt.Errorf("assignment has %d values, model has %d variables", len(values), len(m.vars))
	}
	for i, x := range m.vars {
		if values[i] < x.lo || values[i] > x.hi {
			return fmt.Errorf("%s = %d outside [%d,%d]", x.name, values[i], x.lo, x.hi)
		}
	}
	for _, c := range m.cons {
		var act int64
		for _, t := range c.Terms {
			act += t.Coef * values[t.Var]
		}
		if act < c.Lo || act > c.Hi {
			return fmt.Errorf("constraint %s violated: %d not in [%s,%s]", c.Name, act, bound(c.Lo), bound(c.Hi))
		}
	}
	return nil
}

// String summarises the model size.
func (m *Model) String() string {
	bools := 0
	for _, x := range m.vars {
		if x.lo >= 0 && x.hi <= 1 {
			bools++
		}
	}
	return fmt.Sprintf("%s: %d vars (%d bool), %d constraints", m.name, len(m.vars), bools, len(m.cons))
}

func (m *Model) markConflict(msg string) {
	if m.conflict == "" {
		m.conflict = msg
	}
}

func normalize(e Expr) []Term {
	if len(e) == 0 {
		return nil
	}
	merged := make(map[Var]int64, len(e))
	for _, t := range e {
		merged[t.Var] += t.Coef
	}
	out := make([]Term, 0, len(merged))
	for v, c := range merged {
		if c != 0 {
			out = append(out, Term{Var: v, Coef: c})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Var < out[j].Var })
	return out
}

func bound(b int64) string {
	switch {
	case b >= Inf:
		return "+inf"
	case b <= -Inf:
		return "-inf"
	default:
		return fmt.Sprint(b)
	}
}
