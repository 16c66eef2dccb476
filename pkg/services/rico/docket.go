package rico

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/de-tools/linkmind/pkg/models/domain"
)

// Docket is the book of RICO cases. A resource belongs to at most one open case.
type Docket struct {
	mu       sync.RWMutex
	cases    map[string]*domain.RICOCase
	order    []string
	members  map[string]string
	attempts map[string]int
	reserved map[string]struct{}
}

func NewDocket() *Docket {
	return &Docket{
		cases:    make(map[string]*domain.RICOCase),
		members:  make(map[string]string),
		attempts: make(map[string]int),
		reserved: make(map[string]struct{}),
	}
}

// Clone returns an independent copy, used by dry-run cycles to leave the real docket untouched.
func (d *Docket) Clone() *Docket {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := NewDocket()
	for id, c := range d.cases {
		cp := cloneCase(*c)
		out.cases[id] = &cp
	}
	out.order = append(out.order, d.order...)
	for k, v := range d.members {
		out.members[k] = v
	}
	for k, v := range d.attempts {
		out.attempts[k] = v
	}
	for id := range d.reserved {
		out.reserved[id] = struct{}{}
	}
	return out
}

// OpenCaseOf returns the id of the open case holding the resource.
func (d *Docket) OpenCaseOf(resourceID string) (string, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	id, ok := d.members[resourceID]
	return id, ok
}

// Reserve marks case ids used by an earlier run, as recorded on the audit trail, so that a case
// formed after a restart never reuses one.
func (d *Docket) Reserve(ids ...string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, id := range ids {
		if id != "" {
			d.reserved[id] = struct{}{}
		}
	}
}

// attempt returns the first attempt number for base whose case id is neither filed nor reserved.
func (d *Docket) attempt(base string) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for n := d.attempts[base]; ; n++ {
		id := caseID(base, n)
		_, filed := d.cases[id]
		_, reserved := d.reserved[id]
		if !filed && !reserved {
			return n
		}
	}
}

// File registers a draft case. Filing a case whose id already exists is a no-op.
func (d *Docket) File(c domain.RICOCase, base string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.cases[c.ID]; exists {
		return false, nil
	}
	for _, rid := range c.ResourceIDs {
		if other, busy := d.members[rid]; busy {
			return false, fmt.Errorf("resource %s already belongs to open case %s", rid, other)
		}
	}

	cp := cloneCase(c)
	cp.Status = domain.CaseDraft
	d.cases[c.ID] = &cp
	d.order = append(d.order, c.ID)
	for _, rid := range c.ResourceIDs {
		d.members[rid] = c.ID
	}
	d.attempts[base]++
	return true, nil
}

// Annotate stores the pricing of a draft case.
func (d *Docket) Annotate(id string, charges []domain.Charge, pricing *domain.Pricing) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	c, err := d.lookup(id)
	if err != nil {
		return err
	}
	if c.Status != domain.CaseDraft {
		return fmt.Errorf("case %s is %s, only drafts can be priced", id, c.Status)
	}
	c.Charges = cloneCharges(charges)
	p := *pricing
	c.Pricing = &p
	return nil
}

// Approve moves a priced draft to Approved.
func (d *Docket) Approve(id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	c, err := d.lookup(id)
	if err != nil {
		return err
	}
	if c.Status != domain.CaseDraft {
		return fmt.Errorf("case %s is %s, only drafts can be approved", id, c.Status)
	}
	if c.Pricing == nil {
		return fmt.Errorf("case %s must be priced before approval", id)
	}
	for _, ch := range c.Charges {
		if ch.Estimate == nil {
			return fmt.Errorf("case %s has an unpriced charge on %s", id, ch.ResourceID)
		}
	}
	c.Status = domain.CaseApproved
	return nil
}

func (d *Docket) Reject(id, reason string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	c, err := d.lookup(id)
	if err != nil {
		return err
	}
	if !c.Status.IsOpen() {
		return fmt.Errorf("case %s is %s and cannot be rejected", id, c.Status)
	}
	c.Status = domain.CaseRejected
	c.RejectReason = reason
	d.release(c)
	return nil
}

// MarkExecuted closes an approved case. The case is immutable afterwards.
func (d *Docket) MarkExecuted(id string, partial bool, at time.Time) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	c, err := d.lookup(id)
	if err != nil {
		return err
	}
	if c.Status != domain.CaseApproved {
		return fmt.Errorf("case %s is %s, only approved cases can be executed", id, c.Status)
	}
	c.Status = domain.CaseExecuted
	c.Partial = partial
	c.ExecutedAt = at
	d.release(c)
	return nil
}

func (d *Docket) Get(id string) (domain.RICOCase, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	c, ok := d.cases[id]
	if !ok {
		return domain.RICOCase{}, false
	}
	return cloneCase(*c), true
}

// List returns cases in filing order.
func (d *Docket) List() []domain.RICOCase {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]domain.RICOCase, 0, len(d.order))
	for _, id := range d.order {
		out = append(out, cloneCase(*d.cases[id]))
	}
	return out
}

// Open returns draft and approved cases in filing order.
func (d *Docket) Open() []domain.RICOCase {
	var out []domain.RICOCase
	for _, c := range d.List() {
		if c.Status.IsOpen() {
			out = append(out, c)
		}
	}
	return out
}

func (d *Docket) lookup(id string) (*domain.RICOCase, error) {
	c, ok := d.cases[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrCaseNotFound, id)
	}
	return c, nil
}

func (d *Docket) release(c *domain.RICOCase) {
	for _, rid := range c.ResourceIDs {
		if d.members[rid] == c.ID {
			delete(d.members, rid)
		}
	}
}

func cloneCase(c domain.RICOCase) domain.RICOCase {
	c.ResourceIDs = append([]string(nil), c.ResourceIDs...)
	c.OffenseKinds = append([]domain.OffenseKind(nil), c.OffenseKinds...)
	c.Charges = cloneCharges(c.Charges)
	if c.Pricing != nil {
		p := *c.Pricing
		c.Pricing = &p
	}
	return c
}

func cloneCharges(in []domain.Charge) []domain.Charge {
	if in == nil {
		return nil
	}
	out := make([]domain.Charge, len(in))
	for i, ch := range in {
		ch.OffenseIDs = append([]string(nil), ch.OffenseIDs...)
		if ch.Estimate != nil {
			est := *ch.Estimate
			ch.Estimate = &est
		}
		out[i] = ch
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].ResourceID != out[j].ResourceID {
			return out[i].ResourceID < out[j].ResourceID
		}
		return out[i].Kind < out[j].Kind
	})
	return out
}
