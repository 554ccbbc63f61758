package schema

// Batch is a bounded slice of normalized rows destined for one relation.
// An empty field is written to the database as NULL.
type Batch struct {
	Type     Type
	Relation string
	Columns  []string
	Rows     [][]string
}

// Len returns the number of rows
func (b Batch) Len() int {
	return len(b.Rows)
}

// Empty reports whether there is nothing to load
func (b Batch) Empty() bool {
	return len(b.Rows) == 0
}

// NewBatch returns an empty batch for t with capacity for n rows
func NewBatch(t Type, n int) Batch {
	d, _ := Lookup(t)
	return Batch{
		Type:     t,
		Relation: d.Relation,
		Columns:  d.Columns,
		Rows:     make([][]string, 0, n),
	}
}
