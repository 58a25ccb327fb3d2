package perspective

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/mangle/analysis"
	"github.com/google/mangle/ast"
	_ "github.com/google/mangle/builtin"
	mengine "github.com/google/mangle/engine"
	"github.com/google/mangle/factstore"
	"github.com/google/mangle/parse"

	"github.com/agenthands/synergy/internal/platform"
)

var _ platform.LinkStore = (*Replica)(nil)

// replicaProgram is evaluated over the link facts of the replica.
// typed_child answers "entities of type T linked from node N".
const replicaProgram = `
Decl link(Source, Predicate, Target, Author, Timestamp, Seq).

typed_child(Parent, Child, Type, Timestamp, Seq) :-
	link(Parent, "ad4m://has_child", Child, _, Timestamp, Seq),
	link(Child, "flux://entry_type", Type, _, _, _).
`

var (
	linkSym       = ast.PredicateSym{Symbol: "link", Arity: 6}
	typedChildSym = ast.PredicateSym{Symbol: "typed_child", Arity: 5}
)

// replicaState is the fact set shared by every view of one replica.
type replicaState struct {
	mu      sync.Mutex
	program *analysis.ProgramInfo
	links   map[int64]platform.LinkExpression
	nextSeq int64
	store   factstore.FactStore
	dirty   bool
}

// Replica is an in-memory perspective. Links are kept as Datalog facts and
// reads go through the Mangle engine. Views created with As share the same
// facts but stamp new links with a different author, which lets tests model
// several peers writing into one converged replica.
type Replica struct {
	state  *replicaState
	Author string
	Now    func() time.Time
}

func NewReplica(author string) (*Replica, error) {
	unit, err := parse.Unit(strings.NewReader(replicaProgram))
	if err != nil {
		return nil, fmt.Errorf("failed to parse replica program: %w", err)
	}
	programInfo, err := analysis.AnalyzeOneUnit(unit, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to analyze replica program: %w", err)
	}

	return &Replica{
		state: &replicaState{
			program: programInfo,
			links:   make(map[int64]platform.LinkExpression),
			dirty:   true,
		},
		Author: author,
		Now:    time.Now,
	}, nil
}

// As returns a view of the same replica writing as author.
func (r *Replica) As(author string) *Replica {
	return &Replica{state: r.state, Author: author, Now: r.Now}
}

func (r *Replica) Query(ctx context.Context, q platform.LinkQuery) ([]platform.LinkExpression, error) {
	type hit struct {
		seq  int64
		link platform.LinkExpression
	}
	var hits []hit

	err := r.state.facts(linkSym, func(args []ast.BaseTerm) {
		seq := numberArg(args[5])
		l, ok := r.state.links[seq]
		if ok && q.Matches(l.Data) {
			hits = append(hits, hit{seq: seq, link: l})
		}
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(hits, func(i, j int) bool {
		if !hits[i].link.Timestamp.Equal(hits[j].link.Timestamp) {
			return hits[i].link.Timestamp.Before(hits[j].link.Timestamp)
		}
		return hits[i].seq < hits[j].seq
	})

	out := make([]platform.LinkExpression, len(hits))
	for i, h := range hits {
		out[i] = h.link
	}
	return out, nil
}

func (r *Replica) AddLinks(ctx context.Context, links []platform.Link) ([]platform.LinkExpression, error) {
	if len(links) == 0 {
		return nil, nil
	}

	s := r.state
	s.mu.Lock()
	defer s.mu.Unlock()

	now := r.Now().UTC().Truncate(time.Millisecond)
	out := make([]platform.LinkExpression, 0, len(links))
	for _, l := range links {
		s.nextSeq++
		expr := platform.LinkExpression{Author: r.Author, Timestamp: now, Data: l}
		s.links[s.nextSeq] = expr
		out = append(out, expr)
	}
	s.dirty = true
	return out, nil
}

func (r *Replica) RemoveLinks(ctx context.Context, links []platform.LinkExpression) error {
	s := r.state
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, target := range links {
		for seq, l := range s.links {
			if l.Author == target.Author && l.Data == target.Data && l.Timestamp.Equal(target.Timestamp) {
				delete(s.links, seq)
				s.dirty = true
			}
		}
	}
	return nil
}

func (r *Replica) ChildrenOfType(ctx context.Context, parent, entryType string) ([]string, error) {
	type child struct {
		id  string
		ts  int64
		seq int64
	}
	var children []child

	err := r.state.facts(typedChildSym, func(args []ast.BaseTerm) {
		if stringArg(args[0]) != parent || stringArg(args[2]) != entryType {
			return
		}
		children = append(children, child{
			id:  stringArg(args[1]),
			ts:  numberArg(args[3]),
			seq: numberArg(args[4]),
		})
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(children, func(i, j int) bool {
		if children[i].ts != children[j].ts {
			return children[i].ts < children[j].ts
		}
		return children[i].seq < children[j].seq
	})

	seen := make(map[string]bool, len(children))
	var ids []string
	for _, c := range children {
		if seen[c.id] {
			continue
		}
		seen[c.id] = true
		ids = append(ids, c.id)
	}
	return ids, nil
}

// facts evaluates the program if links changed and calls fn for every fact
// of sym. fn runs with the state lock held.
func (s *replicaState) facts(sym ast.PredicateSym, fn func(args []ast.BaseTerm)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.dirty {
		store := factstore.NewSimpleInMemoryStore()
		for seq, l := range s.links {
			store.Add(ast.NewAtom(linkSym.Symbol,
				ast.String(l.Data.Source),
				ast.String(l.Data.Predicate),
				ast.String(l.Data.Target),
				ast.String(l.Author),
				ast.Number(l.Timestamp.UnixMilli()),
				ast.Number(seq),
			))
		}
		if _, err := mengine.EvalProgramWithStats(s.program, store); err != nil {
			return fmt.Errorf("failed to evaluate replica program: %w", err)
		}
		s.store = store
		s.dirty = false
	}

	return s.store.GetFacts(ast.NewQuery(sym), func(atom ast.Atom) error {
		fn(atom.Args)
		return nil
	})
}

func stringArg(t ast.BaseTerm) string {
	if c, ok := t.(ast.Constant); ok && c.Type == ast.StringType {
		return c.Symbol
	}
	return ""
}

func numberArg(t ast.BaseTerm) int64 {
	if c, ok := t.(ast.Constant); ok && c.Type == ast.NumberType {
		return c.NumValue
	}
	return 0
}
