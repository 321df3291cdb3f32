package relay

// Request carries one decoded value through the apply pipeline of a
// Reference, alongside the value it would replace.
type Request[T Validator] struct {
	// Previous is the value currently held by the Reference, or the zero
	// value of T before the first successful apply.
	Previous T

	// Current is the decoded and validated value. Pipeline stages may replace
	// it; whatever it holds when the pipeline finishes is stored and published.
	Current T

	// Raw is the document as it arrived from the source.
	Raw []byte
}

// Changed reports whether Current differs from Previous according to equal.
func (r *Request[T]) Changed(equal func(a, b T) bool) bool {
	return !equal(r.Previous, r.Current)
}
