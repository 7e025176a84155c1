package storage

import (
	"database/sql/driver"
	"fmt"
	"math"
	"sync"

	"github.com/viant/vec/search"
	sqlite "modernc.org/sqlite"
)

var (
	registerOnce sync.Once
	registerErr  error
)

// registerFunctions makes vec_cosine available to every connection opened
// afterwards. The driver keeps a process-wide registry, so this runs once.
func registerFunctions() error {
	registerOnce.Do(func() {
		registerErr = sqlite.RegisterDeterministicScalarFunction("vec_cosine", 2, vecCosine)
	})
	return registerErr
}

// vecCosine is vec_cosine(a BLOB, b BLOB) -> REAL. NULL, empty, mismatched
// or zero-norm inputs score 0, and so does a NaN result, which SQLite would
// otherwise store as NULL.
func vecCosine(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	if len(args) != 2 {
		return nil, fmt.Errorf("vec_cosine: expected 2 arguments, got %d", len(args))
	}
	a, err := blobArg(args[0])
	if err != nil {
		return nil, err
	}
	b, err := blobArg(args[1])
	if err != nil {
		return nil, err
	}
	if len(a) == 0 || len(a) != len(b) {
		return 0.0, nil
	}

	va := search.Float32s(a)
	if va.Magnitude() == 0 || search.Float32s(b).Magnitude() == 0 {
		return 0.0, nil
	}
	s := float64(1 - va.CosineDistance(b))
	if math.IsNaN(s) {
		return 0.0, nil
	}
	return s, nil
}

func blobArg(arg driver.Value) ([]float32, error) {
	switch v := arg.(type) {
	case nil:
		return nil, nil
	case []byte:
		return DecodeVector(v)
	default:
		return nil, fmt.Errorf("vec_cosine: unsupported argument type %T; want BLOB", arg)
	}
}
