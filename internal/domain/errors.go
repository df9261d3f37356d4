package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrConfig marks bad user input: year ranges, batch sizes, selectors.
	ErrConfig = errors.New("invalid configuration")

	// ErrYearNotMapped is returned for a year missing from the archive table.
	ErrYearNotMapped = errors.New("year not in archive table")

	// ErrEmptyLanding aborts extraction when there is nothing to extract.
	ErrEmptyLanding = errors.New("landing directory is empty")

	// ErrTrailingData means a batch file holds more than one JSON document,
	// which is what the line-delimited transform format produces.
	ErrTrailingData = errors.New("trailing data after JSON document")
)

// ItemError records the failure of a single item (file, year, batch) inside
// a stage. The stage keeps going after an item fails.
type ItemError struct {
	Stage string
	Item  string
	Err   error
}

func (e *ItemError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Stage, e.Item, e.Err)
}

func (e *ItemError) Unwrap() error { return e.Err }

// ItemErrors is the collection of item failures of one stage run.
type ItemErrors []*ItemError

// Add appends a failure for item.
func (e *ItemErrors) Add(stage, item string, err error) {
	*e = append(*e, &ItemError{Stage: stage, Item: item, Err: err})
}

func (e ItemErrors) Error() string {
	if len(e) == 1 {
		return e[0].Error()
	}
	msgs := make([]string, len(e))
	for i, ie := range e {
		msgs[i] = ie.Error()
	}
	return fmt.Sprintf("%d items failed: %s", len(e), strings.Join(msgs, "; "))
}

func (e ItemErrors) Unwrap() []error {
	errs := make([]error, len(e))
	for i, ie := range e {
		errs[i] = ie
	}
	return errs
}

// Items lists the failed item names in order.
func (e ItemErrors) Items() []string {
	items := make([]string, len(e))
	for i, ie := range e {
		items[i] = ie.Item
	}
	return items
}

// Err returns nil for an empty collection so callers can return it directly.
func (e ItemErrors) Err() error {
	if len(e) == 0 {
		return nil
	}
	return e
}
