package validation

// ListDocumentsQuery bounds the page size of the documents listing. A zero
// limit falls back to the service default.
type ListDocumentsQuery struct {
	Limit int `form:"limit" validate:"omitempty,min=1,max=100"`
}
