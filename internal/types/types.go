package types

type Side string

type MarketStatus string

type Outcome string

const (
	SideYes Side = "yes"
	SideNo  Side = "no"
)

const (
	MarketStatusOpen     MarketStatus = "open"
	MarketStatusResolved MarketStatus = "resolved"
)

const (
	OutcomeYes   Outcome = "YES"
	OutcomeNo    Outcome = "NO"
	OutcomeUnset Outcome = ""
)

func (s Side) Valid() bool {
	return s == SideYes || s == SideNo
}

func (o Outcome) Valid() bool {
	return o == OutcomeYes || o == OutcomeNo
}
