package domain

// Attachment is a raw, unvalidated file handed to the send pipeline.
// It carries bytes, not a hosted URL; the pipeline validates, uploads
// and swaps in the durable URL on confirmation.
type Attachment struct {
	Name string
	Data []byte
}
