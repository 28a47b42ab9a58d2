package mip

// problem is the read-only compiled form of a Model shared by all workers.
type problem struct {
	n        int
	lo, hi   []int64
	cons     []Constraint
	occurs   [][]int32
	obj      []float64
	objConst float64
	hint     []int64
	hasHint  []bool

	// order lists every variable; decision variables first.
	order      []Var
	isDecision []bool
	decision   []Var

	// Disjoint rows sum(x) <= 1 or sum(x) = 1 over booleans, used to
	// strengthen the objective bound.
	groups   []clique
	varGroup []int32
}

type clique struct {
	vars  []int32
	exact bool
}

func compile(m *Model) *problem {
	n := len(m.vars)
	p := &problem{
		n:          n,
		lo:         make([]int64, n),
		hi:         make([]int64, n),
		cons:       m.cons,
		occurs:     make([][]int32, n),
		obj:        make([]float64, n),
		objConst:   m.objConst,
		hint:       make([]int64, n),
		hasHint:    make([]bool, n),
		isDecision: make([]bool, n),
		varGroup:   make([]int32, n),
	}
	for i, x := range m.vars {
		p.lo[i], p.hi[i] = x.lo, x.hi
		p.obj[i] = x.obj
		p.hint[i], p.hasHint[i] = x.hint, x.hasHint
		p.varGroup[i] = -1
	}
	for ci, c := range m.cons {
		for _, t := range c.Terms {
			p.occurs[t.Var] = append(p.occurs[t.Var], int32(ci))
		}
	}

	seen := make([]bool, n)
	for _, v := range m.decision {
		if !seen[v] {
			seen[v] = true
			p.order = append(p.order, v)
			p.decision = append(p.decision, v)
			p.isDecision[v] = true
		}
	}
	for i := 0; i < n; i++ {
		if !seen[i] {
			p.order = append(p.order, Var(i))
		}
	}
	if len(p.decision) == 0 {
		p.decision = append(p.decision, p.order...)
		for i := range p.isDecision {
			p.isDecision[i] = true
		}
	}

	for _, c := range m.cons {
		if c.Hi != 1 || (c.Lo != 1 && c.Lo > 0) {
			continue
		}
		ok := true
		for _, t := range c.Terms {
			if t.Coef != 1 || p.lo[t.Var] < 0 || p.hi[t.Var] > 1 || p.varGroup[t.Var] >= 0 {
				ok = false
				break
			}
		}
		if !ok {
			continue
		}
		g := clique{exact: c.Lo == 1}
		for _, t := range c.Terms {
			p.varGroup[t.Var] = int32(len(p.groups))
			g.vars = append(g.vars, int32(t.Var))
		}
		p.groups = append(p.groups, g)
	}
	return p
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}

func ceilDiv(a, b int64) int64 {
	q := a / b
	if a%b != 0 && (a < 0) == (b < 0) {
		q++
	}
	return q
}
