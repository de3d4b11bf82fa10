package etl

import "fmt"

// ConfigurationError marks a job config that is malformed or semantically
// invalid. It is always surfaced before any source read or graph write.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("etl: invalid config %s: %s", e.Field, e.Reason)
	}
	return "etl: invalid config: " + e.Reason
}

// SourceReadError marks a source that is unreachable or unparsable. Fatal
// for the job; nothing has been written when it occurs.
type SourceReadError struct {
	SourceType string
	Err        error
}

func (e *SourceReadError) Error() string {
	return fmt.Sprintf("etl: read source %q: %v", e.SourceType, e.Err)
}

func (e *SourceReadError) Unwrap() error { return e.Err }

// TransformError marks a field value its declared transform could not
// coerce. The whole batch containing the record fails; the record is never
// silently dropped.
type TransformError struct {
	Transform   string
	Field       string
	RecordIndex int
	Err         error
}

func (e *TransformError) Error() string {
	return fmt.Sprintf("etl: transform %q on field %q (record %d): %v",
		e.Transform, e.Field, e.RecordIndex, e.Err)
}

func (e *TransformError) Unwrap() error { return e.Err }

// BatchWriteError marks a batch the graph store rejected. The job carries
// on with the remaining batches and reports status "partial".
type BatchWriteError struct {
	Label      string
	BatchIndex int
	Err        error
}

func (e *BatchWriteError) Error() string {
	return fmt.Sprintf("etl: write batch %d (%s): %v", e.BatchIndex, e.Label, e.Err)
}

func (e *BatchWriteError) Unwrap() error { return e.Err }
