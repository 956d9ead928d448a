package litetable

// Operation is the kind of change recorded in the write-ahead log and the CDC stream.
type Operation int

const (
	OperationUnknown Operation = iota
	OperationRead
	OperationWrite
	OperationDelete
	OperationCreate
)

func (o Operation) String() string {
	switch o {
	case OperationRead:
		return "READ"
	case OperationWrite:
		return "WRITE"
	case OperationDelete:
		return "DELETE"
	case OperationCreate:
		return "CREATE"
	default:
		return "UNKNOWN"
	}
}
