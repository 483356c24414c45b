package models

// TagWrite is a single (tag, value) assignment for the process-control server.
type TagWrite struct {
	NodeID string `json:"nodeId"`
	Value  string `json:"value"`
}
