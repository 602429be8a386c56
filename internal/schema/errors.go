package schema

import (
	"errors"
	"fmt"
	"strings"
)

var ErrSchema = errors.New("schema")

// SchemaError reports tables (or table.column pairs) a query needs but the
// database does not have. It is not retryable until an operator migrates.
type SchemaError struct {
	Missing []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("missing required tables: %s", strings.Join(e.Missing, ", "))
}

func (e *SchemaError) Is(target error) bool {
	return target == ErrSchema
}
