package threadsync

import (
	"github.com/kestrel-lang/kestrel/internal/access"
	"github.com/kestrel-lang/kestrel/internal/kir"
)

// Apply proves which accesses at the named storage scope can race across
// logical threads and rewrites m.Body with the barriers needed to order
// them. Call it once per scope requiring enforcement ("shared", then
// "global"). The module is updated in place; statement identities present
// before the call remain valid afterwards.
func Apply(m *kir.Module, scopeName string) error {
	scope, err := kir.ParseStorageScope(scopeName)
	if err != nil {
		return err
	}
	p := newPlanner(scope)
	if err := access.Walk(m.Body, p); err != nil {
		return err
	}
	if len(p.syncs) == 0 {
		return nil
	}
	ins := newInserter(m, scope, p.syncs)
	body, err := ins.rewrite(m.Body)
	if err != nil {
		return err
	}
	m.Body = body
	return nil
}
