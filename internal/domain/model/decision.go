package model

// Decision is the outcome of a publish authorization.
type Decision string

const (
	DecisionAccept Decision = "accept"
	DecisionReject Decision = "reject"
)

// Accepted reports whether the decision admits the stream.
func (d Decision) Accepted() bool {
	return d == DecisionAccept
}
