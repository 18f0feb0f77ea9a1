package model

// ChangeOp identifies the kind of row change a store reports
type ChangeOp string

const (
	ChangeInsert ChangeOp = "insert"
	ChangeUpdate ChangeOp = "update"
)

// ChangeEvent is a realtime notification carrying the new values of one slot row
type ChangeEvent struct {
	Op   ChangeOp
	Slot Slot
}
