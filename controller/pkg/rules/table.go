package rules

import (
	"fmt"
	"net"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/cespare/xxhash"
	"github.com/pkg/errors"
	"go.aporeto.io/netinterceptor/controller/pkg/counters"
	"go.aporeto.io/netinterceptor/policy"
	"go.uber.org/zap"
)

// adminPorts are always allowed for TCP unless a rule explicitly blocks them.
var adminPorts = map[uint16]struct{}{
	135: {},
	137: {},
	139: {},
	445: {},
}

type compiledRule struct {
	*policy.Rule
	name []rune
}

// snapshot is an immutable ordered rule list. Evaluations read the current
// snapshot without locking; writers replace it as a whole.
type snapshot struct {
	rules    []*compiledRule
	loopback bool
	digest   uint64
}

// Table is the ordered, first match wins rule list.
type Table struct {
	current  atomic.Value
	staged   []*policy.Rule
	counters *counters.Counters

	sync.Mutex
}

// NewTable returns an empty rule table.
func NewTable(c *counters.Counters) *Table {

	if c == nil {
		c = counters.NewCounters()
	}

	t := &Table{
		staged:   []*policy.Rule{},
		counters: c,
	}
	t.current.Store(build(nil))

	return t
}

func build(list []*policy.Rule) *snapshot {

	s := &snapshot{
		rules: make([]*compiledRule, 0, len(list)),
	}

	h := xxhash.New()
	for _, r := range list {
		s.rules = append(s.rules, &compiledRule{Rule: r, name: []rune(r.ProcessName)})
		if r.MatchesIPv6Loopback() {
			s.loopback = true
		}
		fmt.Fprintf(h, "%d|%d|%d|%d|%s/%s:%d|%s/%s:%d|%s|%d;", // nolint: errcheck
			r.ProcessID, r.Protocol, r.Direction, r.Family,
			r.LocalIP, net.IP(r.LocalIPMask), r.LocalPort,
			r.RemoteIP, net.IP(r.RemoteIPMask), r.RemotePort,
			r.ProcessName, r.Flag,
		)
	}
	s.digest = h.Sum64()

	return s
}

func (t *Table) load() *snapshot {
	return t.current.Load().(*snapshot)
}

// list returns a copy of the active list. Writers must hold the lock so that
// the copy is not stale when they store a new snapshot.
func (t *Table) list() []*policy.Rule {

	s := t.load()
	list := make([]*policy.Rule, 0, len(s.rules))
	for _, r := range s.rules {
		list = append(list, r.Rule)
	}

	return list
}

func (t *Table) validate(list []*policy.Rule) ([]*policy.Rule, error) {

	valid := make([]*policy.Rule, 0, len(list))
	for i, r := range list {
		n, err := r.Validate()
		if err != nil {
			return nil, t.counters.CounterError(counters.ErrInvalidRule, errors.Wrapf(err, "rule %d", i))
		}
		valid = append(valid, n)
	}

	return valid, nil
}

// Replace swaps the whole rule list. On error the previous list stays.
func (t *Table) Replace(list []*policy.Rule) (uint64, error) {

	valid, err := t.validate(list)
	if err != nil {
		return t.Digest(), err
	}

	t.Lock()
	defer t.Unlock()

	s := build(valid)
	t.current.Store(s)

	zap.L().Info("Rules replaced", zap.Int("count", len(valid)), zap.Uint64("digest", s.digest))

	return s.digest, nil
}

// Add inserts one rule at the head or at the tail of the list.
func (t *Table) Add(rule *policy.Rule, head bool) (uint64, error) {

	valid, err := t.validate([]*policy.Rule{rule})
	if err != nil {
		return t.Digest(), err
	}

	t.Lock()
	defer t.Unlock()

	cur := t.list()
	next := make([]*policy.Rule, 0, len(cur)+1)
	if head {
		next = append(append(next, valid[0]), cur...)
	} else {
		next = append(append(next, cur...), valid[0])
	}

	s := build(next)
	t.current.Store(s)

	zap.L().Debug("Rule added", zap.Bool("head", head), zap.Stringer("flag", valid[0].Flag), zap.Int("count", len(next)))

	return s.digest, nil
}

// Clear removes every rule.
func (t *Table) Clear() uint64 {

	t.Lock()
	defer t.Unlock()

	s := build(nil)
	t.current.Store(s)

	return s.digest
}

// ClearStaged empties the staging list.
func (t *Table) ClearStaged() {

	t.Lock()
	defer t.Unlock()

	t.staged = []*policy.Rule{}
}

// AddStaged appends a rule to the staging list.
func (t *Table) AddStaged(rule *policy.Rule) error {

	valid, err := t.validate([]*policy.Rule{rule})
	if err != nil {
		return err
	}

	t.Lock()
	defer t.Unlock()

	t.staged = append(t.staged, valid[0])

	return nil
}

// CommitStaged makes the staging list the active list in one swap and
// empties the staging list.
func (t *Table) CommitStaged() uint64 {

	t.Lock()
	defer t.Unlock()

	s := build(t.staged)
	t.current.Store(s)
	t.staged = []*policy.Rule{}

	zap.L().Info("Staged rules committed", zap.Int("count", len(s.rules)), zap.Uint64("digest", s.digest))

	return s.digest
}

// Rules returns a copy of the active list.
func (t *Table) Rules() []*policy.Rule {
	return t.list()
}

// Len returns the number of active rules.
func (t *Table) Len() int {
	return len(t.load().rules)
}

// Digest returns the digest of the active list.
func (t *Table) Digest() uint64 {
	return t.load().digest
}

// Evaluate returns the flag of the first rule matching the flow, Allow when
// nothing matches. It never modifies the table.
func (t *Table) Evaluate(f *policy.Flow) policy.FilterFlag {

	s := t.load()

	if len(s.rules) == 0 {
		return policy.Allow
	}

	if f.Protocol == policy.ProtocolTCP && !s.loopback {
		// Inbound flows are keyed on the local side.
		ip := f.RemoteIP
		if f.Direction == policy.DirectionIn {
			ip = f.LocalIP
		}
		if ip != nil && ip.To4() == nil && ip.Equal(net.IPv6loopback) {
			return policy.Allow
		}
	}

	var name []rune
	if f.ProcessName != "" {
		name = []rune(strings.ToLower(f.ProcessName))
	}

	for _, r := range s.rules {

		if !r.matches(f, name) {
			continue
		}

		if f.Protocol == policy.ProtocolTCP && !r.Flag.Blocked() {
			port := f.RemotePort
			if f.Direction == policy.DirectionIn {
				port = f.LocalPort
			}
			if _, ok := adminPorts[port]; ok {
				t.counters.IncrementCounter(counters.ErrTCPAdminPortBypass)
				return policy.Allow
			}
		}

		return r.Flag
	}

	return policy.Allow
}

func (r *compiledRule) matches(f *policy.Flow, name []rune) bool {

	if r.ProcessID != 0 && r.ProcessID != f.ProcessID {
		return false
	}

	if r.Protocol != policy.ProtocolAny && r.Protocol != f.Protocol {
		return false
	}

	if r.Direction != policy.DirectionAny && r.Direction&f.Direction == 0 {
		return false
	}

	if r.LocalPort != 0 && r.LocalPort != f.LocalPort {
		return false
	}

	if r.RemotePort != 0 && r.RemotePort != f.RemotePort {
		return false
	}

	if r.Family != policy.FamilyAny {

		if r.Family != f.Family() {
			return false
		}

		if r.LocalIP != nil && !policy.MaskedEqual(f.LocalIP, r.LocalIP, r.LocalIPMask) {
			return false
		}

		if r.RemoteIP != nil && !policy.MaskedEqual(f.RemoteIP, r.RemoteIP, r.RemoteIPMask) {
			return false
		}
	}

	if len(r.name) > 0 && !nameMatches(r.name, name) {
		return false
	}

	return true
}
