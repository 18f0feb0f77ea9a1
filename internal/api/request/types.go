package request

// ConfirmRequest is the request body for confirming a reservation
type ConfirmRequest struct {
	Name    string `json:"name"`
	Contact string `json:"contact"`
}

// ResetRequest is the request body for a bulk reset. Confirm must be true.
type ResetRequest struct {
	Confirm bool `json:"confirm"`
}

// MarkPaidRequest is the request body for marking slots paid
type MarkPaidRequest struct {
	Numbers []string `json:"numbers"`
}
