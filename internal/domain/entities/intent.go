package entities

// QueryIntent is the structured result of parsing one free-text query.
// All fields are optional; Ordinal is only meaningful together with Code.
type QueryIntent struct {
	Code    string
	Ordinal int

	Level Level

	// Municipalities and Venues hold normalized location keys. At most one
	// of the two sets is populated for a single parse.
	Municipalities []string
	Venues         []string

	TopicTokens []string

	// TailText is the normalized trailing phrase after a preposition, kept
	// for phrase-level matching against program names.
	TailText string
}

// IsEmpty reports whether the parse produced nothing usable.
func (i *QueryIntent) IsEmpty() bool {
	return i.Code == "" && i.Level == "" && !i.HasLocation() && len(i.TopicTokens) == 0
}

// HasLocation reports whether any location constraint was parsed.
func (i *QueryIntent) HasLocation() bool {
	return len(i.Municipalities) > 0 || len(i.Venues) > 0
}

// LocationKeys returns whichever location key set is active.
func (i *QueryIntent) LocationKeys() []string {
	if len(i.Municipalities) > 0 {
		return i.Municipalities
	}
	return i.Venues
}
