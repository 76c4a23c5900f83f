package pipeline

// ResultState classifies a normalized collaborator result.
type ResultState int

const (
	// ResultOK is a validated success.
	ResultOK ResultState = iota

	// ResultRecoverable is a fault a stage fallback may absorb.
	ResultRecoverable

	// ResultFatal is a fault that always aborts the run.
	ResultFatal
)

// StageResult is the normalized shape every collaborator call is reduced
// to before routing. A recoverable result may carry the invalid output as
// a partial value for fallbacks that patch rather than rebuild.
type StageResult[T any] struct {
	State      ResultState
	Value      T
	Err        error
	Partial    T
	HasPartial bool
}

func okResult[T any](v T) StageResult[T] {
	return StageResult[T]{State: ResultOK, Value: v}
}

func recoverableResult[T any](err error, partial T) StageResult[T] {
	return StageResult[T]{State: ResultRecoverable, Err: err, Partial: partial, HasPartial: true}
}

func recoverableErrResult[T any](err error) StageResult[T] {
	return StageResult[T]{State: ResultRecoverable, Err: err}
}

func fatalResult[T any](err error) StageResult[T] {
	return StageResult[T]{State: ResultFatal, Err: err}
}
