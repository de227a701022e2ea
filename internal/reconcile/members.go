package reconcile

import "fmt"

// MemberStore links and unlinks members of one owner's many-to-many relation.
type MemberStore[M any] interface {
	IsPersisted(m M) bool
	// Persist saves a member that has no row yet and returns the stored value.
	Persist(m M) (M, error)
	Link(m M) error
	Unlink(m M) error
}

type MemberResult struct {
	Linked    int `json:"linked"`
	Kept      int `json:"kept"`
	Unlinked  int `json:"unlinked"`
	Persisted int `json:"persisted"`
}

func (r MemberResult) Changed() bool {
	return r.Linked+r.Unlinked > 0
}

type memberOptions[M any] struct {
	hash     func(M) string
	identity func(M) string
}

type MemberOption[M any] func(*memberOptions[M])

// WithMemberHash buckets the pending list by hash so each candidate only scans
// members that could be equal. hash must agree with equal: equal members must
// share a hash.
func WithMemberHash[M any](hash func(M) string) MemberOption[M] {
	return func(o *memberOptions[M]) { o.hash = hash }
}

// WithMemberIdentity names the row behind a member. A candidate that resolves
// to a row already linked keeps that link even when the values differ, so the
// row is never linked and unlinked in one pass. An empty identity means
// unsaved.
func WithMemberIdentity[M any](identity func(M) string) MemberOption[M] {
	return func(o *memberOptions[M]) { o.identity = identity }
}

// ReconcileMembers makes the owner's members equal candidates under equal.
// Equality is by value; two different rows may be the same member.
func ReconcileMembers[M any](current, candidates []M, equal func(a, b M) bool, store MemberStore[M], opts ...MemberOption[M]) (MemberResult, error) {
	var o memberOptions[M]
	for _, opt := range opts {
		opt(&o)
	}

	var res MemberResult
	pending := newPendingMembers(current, o.hash)
	// confirmed holds members already kept or linked in this call, so a
	// repeated candidate does not produce a second link.
	var confirmed []M

	for _, cand := range candidates {
		if m, ok := pending.take(cand, equal); ok {
			confirmed = append(confirmed, m)
			res.Kept++
			continue
		}
		if containsEqual(confirmed, cand, equal) {
			continue
		}
		m := cand
		if !store.IsPersisted(m) {
			saved, err := store.Persist(m)
			if err != nil {
				return res, fmt.Errorf("persist member: %w", err)
			}
			m = saved
			res.Persisted++
		}
		if linked, ok := pending.takeIdentity(m, o.identity); ok {
			confirmed = append(confirmed, linked)
			res.Kept++
			continue
		}
		if containsIdentity(confirmed, m, o.identity) {
			continue
		}
		if err := store.Link(m); err != nil {
			return res, fmt.Errorf("link member: %w", err)
		}
		confirmed = append(confirmed, m)
		res.Linked++
	}

	for _, m := range pending.remaining() {
		if err := store.Unlink(m); err != nil {
			return res, fmt.Errorf("unlink member: %w", err)
		}
		res.Unlinked++
	}
	return res, nil
}

func containsEqual[M any](list []M, m M, equal func(a, b M) bool) bool {
	for _, x := range list {
		if equal(x, m) {
			return true
		}
	}
	return false
}

func containsIdentity[M any](list []M, m M, identity func(M) string) bool {
	if identity == nil {
		return false
	}
	id := identity(m)
	if id == "" {
		return false
	}
	for _, x := range list {
		if identity(x) == id {
			return true
		}
	}
	return false
}

// pendingMembers is the pending-removal working set. Without a hash it is a
// single bucket and every lookup is a linear scan.
type pendingMembers[M any] struct {
	hash    func(M) string
	buckets map[string][]M
	order   []string
}

func newPendingMembers[M any](current []M, hash func(M) string) *pendingMembers[M] {
	p := &pendingMembers[M]{hash: hash, buckets: make(map[string][]M)}
	for _, m := range current {
		k := p.key(m)
		if _, ok := p.buckets[k]; !ok {
			p.order = append(p.order, k)
		}
		p.buckets[k] = append(p.buckets[k], m)
	}
	return p
}

func (p *pendingMembers[M]) key(m M) string {
	if p.hash == nil {
		return ""
	}
	return p.hash(m)
}

func (p *pendingMembers[M]) take(cand M, equal func(a, b M) bool) (M, bool) {
	k := p.key(cand)
	bucket := p.buckets[k]
	for i, m := range bucket {
		if equal(m, cand) {
			p.buckets[k] = append(bucket[:i], bucket[i+1:]...)
			return m, true
		}
	}
	var zero M
	return zero, false
}

func (p *pendingMembers[M]) takeIdentity(m M, identity func(M) string) (M, bool) {
	var zero M
	if identity == nil {
		return zero, false
	}
	id := identity(m)
	if id == "" {
		return zero, false
	}
	for _, k := range p.order {
		bucket := p.buckets[k]
		for i, x := range bucket {
			if identity(x) == id {
				p.buckets[k] = append(bucket[:i], bucket[i+1:]...)
				return x, true
			}
		}
	}
	return zero, false
}

func (p *pendingMembers[M]) remaining() []M {
	var out []M
	for _, k := range p.order {
		out = append(out, p.buckets[k]...)
	}
	return out
}
