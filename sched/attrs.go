package sched

import (
	"fmt"

	"github.com/mitchellh/mapstructure"

	"github.com/sbl8/nnsched/ir"
)

// ConcatAttrs is the typed view of a concat node's generic Attrs map,
// decoded with mapstructure because the alias analyzer and the concat index
// fixer both need a concrete Axis rather than an `any` lookup.
type ConcatAttrs struct {
	Axis int `mapstructure:"axis"`
}

func concatAttrs(n *ir.Node) (ConcatAttrs, error) {
	var attrs ConcatAttrs
	if err := mapstructure.Decode(n.Attrs, &attrs); err != nil {
		return ConcatAttrs{}, fmt.Errorf("sched: decode concat attrs for node %q: %w", n.Name, err)
	}
	return attrs, nil
}
