package arc

// CompositeHeader typifies a table column. Protocol tables produced by the
// mappers only use parameter headers, but the kind is kept explicit so the
// serialization stays faithful to the ARC table model.
type CompositeHeader struct {
	Kind string // "parameter"
	Term OntologyAnnotation
}

// ParameterHeader creates a parameter-typed column header.
func ParameterHeader(term OntologyAnnotation) CompositeHeader {
	return CompositeHeader{Kind: "parameter", Term: term}
}

// CompositeCell is a single term cell of a table column.
type CompositeCell struct {
	Term OntologyAnnotation
}

// TermCell creates a term cell.
func TermCell(term OntologyAnnotation) CompositeCell {
	return CompositeCell{Term: term}
}

// Column pairs a header with its cells.
type Column struct {
	Header CompositeHeader
	Cells  []CompositeCell
}

// Table is a named protocol table of (header, cells) columns.
type Table struct {
	Name    string
	Columns []Column
}

// NewTable creates an empty table.
func NewTable(name string) *Table {
	return &Table{Name: name}
}

// AddColumn appends a column to the table.
func (t *Table) AddColumn(header CompositeHeader, cells []CompositeCell) {
	t.Columns = append(t.Columns, Column{Header: header, Cells: cells})
}

// ColumnCount returns the number of columns.
func (t *Table) ColumnCount() int {
	return len(t.Columns)
}
