package pseudonym

import "fmt"

// Dataset is an in-memory table: named columns and rows of string cells.
type Dataset struct {
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

// Table is an output artifact with the same shape as Dataset.
type Table = Dataset

func (d Dataset) columnIndex() map[string]int {
	idx := make(map[string]int, len(d.Columns))
	for i, c := range d.Columns {
		idx[c] = i
	}
	return idx
}

func (d Dataset) validate() error {
	for i, row := range d.Rows {
		if len(row) != len(d.Columns) {
			return fmt.Errorf("row %d has %d cells, header has %d: %w", i, len(row), len(d.Columns), ErrRaggedRow)
		}
	}
	return nil
}

// resolve maps column names to positions, rejecting unknown names.
func (d Dataset) resolve(names []string) ([]int, error) {
	idx := d.columnIndex()
	positions := make([]int, len(names))
	for i, name := range names {
		pos, ok := idx[name]
		if !ok {
			return nil, fmt.Errorf("%q: %w", name, ErrUnknownColumn)
		}
		positions[i] = pos
	}
	return positions, nil
}

func project(row []string, positions []int) []string {
	out := make([]string, len(positions))
	for i, pos := range positions {
		out[i] = row[pos]
	}
	return out
}
