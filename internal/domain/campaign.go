package domain

// Attachment is a file attached to every email of a campaign. Content is the
// raw decoded payload; the same attachment set is shared across recipients.
type Attachment struct {
	Filename    string `json:"filename"`
	Content     []byte `json:"-"`
	ContentType string `json:"content_type,omitempty"`
}

// Campaign is the payload of one bulk newsletter send. The HTML body is an
// opaque operator input; rendering happens upstream.
type Campaign struct {
	Subject     string       `json:"subject"`
	HTMLBody    string       `json:"html"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// SendReport summarizes the outcome of a campaign dispatch.
type SendReport struct {
	// Eligible is the number of subscribers targeted at snapshot time.
	Eligible int `json:"count"`
	// Succeeded and Failed partition Eligible by per-recipient outcome.
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	// Batches is the number of rate-safe batches the send was split into.
	Batches int `json:"batches"`
}
