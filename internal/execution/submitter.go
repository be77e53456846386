package execution

// Submitter is an optional caller identity. The zero value is anonymous;
// identity is modeled present/absent explicitly rather than as a sentinel
// string so ownership checks can compare by value.
type Submitter struct {
	ID    string
	Valid bool
}

// SubmitterID returns a present identity, or anonymous for the empty string.
func SubmitterID(id string) Submitter {
	return Submitter{ID: id, Valid: id != ""}
}

// Anonymous returns the absent identity.
func Anonymous() Submitter {
	return Submitter{}
}
