package stats

import (
	"fmt"

	"pandapark/internal/core"
)

// View is a transient, mutable copy of a filtered result. Edits to a view
// never reach the snapshot it came from and are lost when the view is
// recomputed.
type View struct {
	rows []core.Transaction
}

func newView(rows []core.Transaction) *View {
	cp := make([]core.Transaction, len(rows))
	copy(cp, rows)
	return &View{rows: cp}
}

// Filter returns a new view containing only rows whose payment_method
// equals method, comparing exactly and case-sensitively, in original
// order. The sentinel "All" copies the view unchanged. Unrecognized
// methods yield an empty view, not an error.
func (v *View) Filter(method string) *View {
	if method == core.MethodAll {
		return newView(v.rows)
	}
	out := make([]core.Transaction, 0)
	for _, t := range v.rows {
		if t.PaymentMethod == method {
			out = append(out, t)
		}
	}
	return &View{rows: out}
}

// Len returns the number of rows in the view.
func (v *View) Len() int {
	return len(v.rows)
}

// Rows returns a copy of the view's rows.
func (v *View) Rows() []core.Transaction {
	cp := make([]core.Transaction, len(v.rows))
	copy(cp, v.rows)
	return cp
}

// Row returns the row at index i.
func (v *View) Row(i int) (core.Transaction, error) {
	if i < 0 || i >= len(v.rows) {
		return core.Transaction{}, fmt.Errorf("row %d out of range [0,%d)", i, len(v.rows))
	}
	return v.rows[i], nil
}

// SetRow replaces the row at index i within this view only.
func (v *View) SetRow(i int, t core.Transaction) error {
	if i < 0 || i >= len(v.rows) {
		return fmt.Errorf("row %d out of range [0,%d)", i, len(v.rows))
	}
	if err := t.Validate(); err != nil {
		return err
	}
	v.rows[i] = t
	return nil
}
