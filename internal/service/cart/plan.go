package cart

import "storefront/internal/domain"

// Transition names the state change a quantity request causes.
type Transition string

const (
	TransitionNone       Transition = "none"
	TransitionCreate     Transition = "create"
	TransitionUpsert     Transition = "upsert"
	TransitionRemove     Transition = "remove"
	TransitionRemoveLast Transition = "remove-last"
)

// Plan is the set of writes that moves a cart to its next state. Writes are
// applied in field order: root creation, item put, item removal, root
// deletion.
type Plan struct {
	Transition Transition
	CreateRoot bool
	PutItem    *domain.LineItem
	RemoveItem string
	DeleteRoot bool
	// Emptied is set when the cart stops existing.
	Emptied bool
	// Repair describes a broken invariant the plan also fixes.
	Repair string
	// Items is the number of line items once the plan is applied.
	Items int
}

// Decide computes the plan for setting productID to count, given whether the
// cart root exists and the cart's current line items. A count <= 0 asks for
// the product to be removed.
func Decide(cartExists bool, snapshot []domain.LineItem, productID string, count int) Plan {
	has := false
	others := 0
	for _, it := range snapshot {
		if it.ProductID == productID {
			has = true
			continue
		}
		others++
	}

	if count > 0 {
		put := &domain.LineItem{ProductID: productID, Count: count}
		if !cartExists {
			p := Plan{Transition: TransitionCreate, CreateRoot: true, PutItem: put, Items: others + 1}
			if len(snapshot) > 0 {
				p.Repair = "line items without cart root"
			}
			return p
		}
		return Plan{Transition: TransitionUpsert, PutItem: put, Items: others + 1}
	}

	removal := ""
	if has {
		removal = productID
	}

	if others > 0 {
		if !cartExists {
			return Plan{
				Transition: TransitionRemove,
				CreateRoot: true,
				RemoveItem: removal,
				Repair:     "line items without cart root",
				Items:      others,
			}
		}
		if !has {
			return Plan{Transition: TransitionNone, Items: others}
		}
		return Plan{Transition: TransitionRemove, RemoveItem: removal, Items: others}
	}

	if !cartExists && !has {
		return Plan{Transition: TransitionNone}
	}
	p := Plan{
		Transition: TransitionRemoveLast,
		RemoveItem: removal,
		DeleteRoot: true,
		Emptied:    true,
	}
	switch {
	case !cartExists:
		p.Repair = "line items without cart root"
	case !has:
		p.Repair = "cart root without line items"
	}
	return p
}

// operation is the name reported when applying the plan fails.
func (p Plan) operation() string {
	switch p.Transition {
	case TransitionCreate:
		return OpCreateCart
	case TransitionRemove, TransitionRemoveLast:
		return OpRemoveCartItem
	}
	return OpUpdateCartItem
}
