package model

// Owner is the authenticated admin-app principal that pairing codes are bound
// to. Authentication itself happens in the surrounding admin application; this
// service only consumes the resolved identity.
type Owner struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Contact     string `json:"contact,omitempty"`
}
