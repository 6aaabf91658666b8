// models/shipping.go
package models

// ShippingData is the decrypted shipping address for a single redemption
// call. It is NOT a gorm model on purpose: no field of this type may ever be
// written to durable storage, logs, or a response payload. Values live only
// on the stack of the redemption call and are dropped on every exit path.
type ShippingData struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	City    string `json:"city"`
	State   string `json:"state"`
	Zip     string `json:"zip"`
	Country string `json:"country"`
	Phone   string `json:"phone"`
	Email   string `json:"email,omitempty"`
}

// String redacts everything so an accidental %v/%+v in a log line cannot
// leak PII.
func (s ShippingData) String() string {
	return "ShippingData(redacted)"
}

// GoString covers %#v as well.
func (s ShippingData) GoString() string {
	return "models.ShippingData(redacted)"
}

// Validate checks the post-decrypt shape: all fields except Email must be
// non-empty.
func (s *ShippingData) Validate() bool {
	return s.Name != "" && s.Address != "" && s.City != "" &&
		s.State != "" && s.Zip != "" && s.Country != "" && s.Phone != ""
}
