package domain

type DispatchMessage struct {
	Topic   string
	Payload string
}

// DispatchStatus is the outcome of the best-effort publish that follows a sale.
type DispatchStatus struct {
	OK    bool
	Error string
}
