package pseudonym

import (
	"errors"
	"fmt"
)

var ErrNoIdentifyingColumns = errors.New("at least one identifying column required")

// Result holds the two artifacts of a run. Neither is persisted here.
type Result struct {
	Strategy string `json:"strategy"`
	// Payload is the payload columns plus the label column.
	Payload Table `json:"payload"`
	// Keyfile pairs identifying columns with labels, or lists the identifying
	// columns alone when labels are recomputable.
	Keyfile  Table    `json:"keyfile"`
	Labels   []string `json:"-"`
	Warnings []string `json:"warnings,omitempty"`
}

type options struct {
	labelColumn string
}

type Option func(*options)

func WithLabelColumn(name string) Option {
	return func(o *options) {
		if name != "" {
			o.labelColumn = name
		}
	}
}

type advisor interface {
	Advise(n int) []string
}

type destroyer interface {
	Destroy()
}

func Pseudonymize(dataset Dataset, strategy Strategy, idColumns, payloadColumns []string, opts ...Option) (*Result, error) {
	o := options{labelColumn: DefaultLabelColumn}
	for _, opt := range opts {
		opt(&o)
	}
	if strategy == nil {
		return nil, ErrUnknownStrategy
	}
	if d, ok := strategy.(destroyer); ok {
		defer d.Destroy()
	}
	if len(idColumns) == 0 {
		return nil, ErrNoIdentifyingColumns
	}
	if err := checkPartition(idColumns, payloadColumns, o.labelColumn); err != nil {
		return nil, err
	}
	if err := dataset.validate(); err != nil {
		return nil, err
	}
	idPos, err := dataset.resolve(idColumns)
	if err != nil {
		return nil, err
	}
	payloadPos, err := dataset.resolve(payloadColumns)
	if err != nil {
		return nil, err
	}

	identifying := make([][]string, len(dataset.Rows))
	for i, row := range dataset.Rows {
		identifying[i] = project(row, idPos)
	}

	labels, err := strategy.Assign(identifying)
	if err != nil {
		return nil, fmt.Errorf("%s strategy: %w", strategy.Name(), err)
	}
	if len(labels) != len(identifying) {
		return nil, fmt.Errorf("%s strategy returned %d labels for %d records", strategy.Name(), len(labels), len(identifying))
	}
	if err := checkUnique(labels); err != nil {
		return nil, err
	}

	result := &Result{
		Strategy: strategy.Name(),
		Labels:   labels,
		Payload:  Table{Columns: appendColumn(payloadColumns, o.labelColumn)},
	}
	if strategy.Recomputable() {
		result.Keyfile.Columns = append([]string(nil), idColumns...)
	} else {
		result.Keyfile.Columns = appendColumn(idColumns, o.labelColumn)
	}

	result.Payload.Rows = make([][]string, len(dataset.Rows))
	result.Keyfile.Rows = make([][]string, len(dataset.Rows))
	for i, row := range dataset.Rows {
		result.Payload.Rows[i] = append(project(row, payloadPos), labels[i])
		if strategy.Recomputable() {
			result.Keyfile.Rows[i] = identifying[i]
		} else {
			result.Keyfile.Rows[i] = append(identifying[i], labels[i])
		}
	}

	if a, ok := strategy.(advisor); ok {
		result.Warnings = a.Advise(len(labels))
	}
	return result, nil
}

func checkPartition(idColumns, payloadColumns []string, labelColumn string) error {
	seen := make(map[string]string, len(idColumns)+len(payloadColumns))
	for _, c := range idColumns {
		if _, dup := seen[c]; dup {
			return fmt.Errorf("%q listed twice: %w", c, ErrOverlappingColumns)
		}
		seen[c] = "identifying"
	}
	for _, c := range payloadColumns {
		if group, dup := seen[c]; dup {
			return fmt.Errorf("%q already %s: %w", c, group, ErrOverlappingColumns)
		}
		seen[c] = "payload"
	}
	if _, clash := seen[labelColumn]; clash {
		return fmt.Errorf("label column %q: %w", labelColumn, ErrOverlappingColumns)
	}
	return nil
}

func appendColumn(cols []string, name string) []string {
	out := make([]string, 0, len(cols)+1)
	out = append(out, cols...)
	return append(out, name)
}
