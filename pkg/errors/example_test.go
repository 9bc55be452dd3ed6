package errors_test

import (
	stderrors "errors"
	"fmt"
	"io"

	"github.com/ajitpratap0/caudal/pkg/errors"
)

func Example() {
	err := errors.New(errors.ErrorTypeConnection, "failed to reach warehouse").
		WithDetail("driver", "pgx")

	fmt.Println(err.Error())
	fmt.Println(errors.IsRetryable(err))

	// Output:
	// connection: failed to reach warehouse
	// true
}

// ExampleWrap shows how to wrap existing errors with context.
func ExampleWrap() {
	err := errors.Wrap(io.ErrUnexpectedEOF, errors.ErrorTypeData, "failed to read rows").
		WithDetail("driver", "sqlite")

	fmt.Println(errors.IsType(err, errors.ErrorTypeData))
	fmt.Println(stderrors.Is(err, io.ErrUnexpectedEOF))
	fmt.Println(err)

	// Output:
	// true
	// true
	// data: failed to read rows: unexpected EOF
}
