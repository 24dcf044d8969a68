package models

// Column names with a fixed meaning.
const (
	ColumnFilename = "filename"
	ColumnError    = "error"
	ColumnIssuer   = "issuer"
)

// PreferredColumns lead the result table when present.
var PreferredColumns = []string{
	ColumnFilename,
	ColumnIssuer,
	"total_balance",
	"due_date",
	"statement_date",
	"account_last_4",
}

type RecordStatus string

const (
	StatusOK               RecordStatus = "ok"
	StatusEmptyText        RecordStatus = "empty_text"
	StatusExtractionFailed RecordStatus = "extraction_failed"
	StatusInferenceFailed  RecordStatus = "inference_failed"
	StatusFailed           RecordStatus = "failed"
)

// StatementRecord is one row of the result table: the fields extracted from
// a single uploaded file, or an error marker when processing failed.
type StatementRecord struct {
	Filename      string
	Fields        *Fields
	Status        RecordStatus
	Error         string
	IssuerGuessed bool
}

func (r *StatementRecord) Failed() bool {
	return r.Status != StatusOK
}

// Cell returns the rendered value for column, or "" when absent.
func (r *StatementRecord) Cell(column string) string {
	switch column {
	case ColumnFilename:
		return r.Filename
	case ColumnError:
		if r.Error != "" {
			return r.Error
		}
	}
	v, ok := r.Fields.Get(column)
	if !ok {
		return ""
	}
	return v.String()
}

func (r *StatementRecord) columns() []string {
	cols := []string{ColumnFilename}
	for _, k := range r.Fields.Keys() {
		if k != ColumnFilename {
			cols = append(cols, k)
		}
	}
	if r.Error != "" {
		cols = append(cols, ColumnError)
	}
	return cols
}

// ResultSet is the ordered outcome of one batch, one record per upload.
type ResultSet struct {
	Model   string
	Records []*StatementRecord
}

func (rs *ResultSet) Add(r *StatementRecord) {
	rs.Records = append(rs.Records, r)
}

// Columns lists the table header: the preferred columns that occur in any
// record, in preferred order, followed by all other keys in first-seen order.
func (rs *ResultSet) Columns() []string {
	seen := make(map[string]bool)
	var all []string
	for _, r := range rs.Records {
		for _, c := range r.columns() {
			if !seen[c] {
				seen[c] = true
				all = append(all, c)
			}
		}
	}

	preferred := make(map[string]bool, len(PreferredColumns))
	cols := make([]string, 0, len(all))
	for _, c := range PreferredColumns {
		preferred[c] = true
		if seen[c] {
			cols = append(cols, c)
		}
	}
	for _, c := range all {
		if !preferred[c] {
			cols = append(cols, c)
		}
	}
	return cols
}

// Rows renders every record against Columns.
func (rs *ResultSet) Rows() [][]string {
	cols := rs.Columns()
	rows := make([][]string, 0, len(rs.Records))
	for _, r := range rs.Records {
		row := make([]string, len(cols))
		for i, c := range cols {
			row[i] = r.Cell(c)
		}
		rows = append(rows, row)
	}
	return rows
}

func (rs *ResultSet) FailedCount() int {
	n := 0
	for _, r := range rs.Records {
		if r.Failed() {
			n++
		}
	}
	return n
}
