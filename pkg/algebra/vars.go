package algebra

// Variables returns the names of the variables op may bind, in first-seen
// order. Blank-node placeholders appear under their placeholder names.
func Variables(op Operator) []string {
	var vs varSet
	vs.collect(op)
	return vs.names
}

// SharedVariables returns the variables both operators may bind, in the order
// they appear on the left.
func SharedVariables(left, right Operator) []string {
	rightVars := make(map[string]bool)
	for _, v := range Variables(right) {
		rightVars[v] = true
	}
	var shared []string
	for _, v := range Variables(left) {
		if rightVars[v] {
			shared = append(shared, v)
		}
	}
	return shared
}

type varSet struct {
	names []string
	seen  map[string]bool
}

func (vs *varSet) add(name string) {
	if name == "" {
		return
	}
	if vs.seen == nil {
		vs.seen = make(map[string]bool)
	}
	if !vs.seen[name] {
		vs.seen[name] = true
		vs.names = append(vs.names, name)
	}
}

func (vs *varSet) collect(op Operator) {
	switch o := op.(type) {
	case *BGP:
		for _, p := range o.Patterns {
			for _, name := range p.Placeholders() {
				vs.add(name)
			}
		}
	case *Join:
		vs.collect(o.Left)
		vs.collect(o.Right)
	case *LeftJoin:
		vs.collect(o.Left)
		vs.collect(o.Right)
	case *Union:
		vs.collect(o.Left)
		vs.collect(o.Right)
	case *Minus:
		vs.collect(o.Left)
	case *Filter:
		vs.collect(o.Input)
	case *Graph:
		if o.Name.IsVariable() {
			vs.add(o.Name.PlaceholderName())
		}
		vs.collect(o.Input)
	case *Extend:
		vs.collect(o.Input)
		vs.add(o.Var)
	case *Group:
		for _, k := range o.Keys {
			vs.add(k.Var)
		}
		for _, a := range o.Aggregates {
			vs.add(a.Var)
		}
	case *Project:
		for _, v := range o.Vars {
			vs.add(v)
		}
	case *Distinct:
		vs.collect(o.Input)
	case *OrderBy:
		vs.collect(o.Input)
	case *Slice:
		vs.collect(o.Input)
	}
}
