package climate

// Choice is the failover decision for one capability.
type Choice int

// Failover decisions.
const (
	// ChoiceNone means neither provider is available.
	ChoiceNone Choice = iota

	// ChoicePreferred selects the capability's preferred provider.
	ChoicePreferred

	// ChoiceAlternate selects the alternate provider because the preferred
	// one is unavailable.
	ChoiceAlternate
)

// LabelUnavailable is the diagnostic label when no provider is available.
const LabelUnavailable = "unavailable"

// Policy decides which provider is active for a capability given the
// current availability of both providers. The policy is stateless and
// deterministic, evaluated fresh on every query: there is no hysteresis or
// debounce, so recovery is observed on the very next event from the
// recovered source.
//
// Decision table:
//
//	preferred | alternate | result
//	----------+-----------+----------
//	true      | *         | Preferred
//	false     | true      | Alternate
//	false     | false     | None
//
// The same table drives read routing (which source's value to surface) and
// write routing (which source receives a command).
type Policy struct{}

// ActiveSource applies the decision table.
func (Policy) ActiveSource(preferredAvailable, alternateAvailable bool) Choice {
	switch {
	case preferredAvailable:
		return ChoicePreferred
	case alternateAvailable:
		return ChoiceAlternate
	default:
		return ChoiceNone
	}
}

// LabelFor renders the human-readable diagnostic label for a decision.
// kind is the source selected by the decision (the preferred provider for
// ChoicePreferred, the alternate for ChoiceAlternate).
func (Policy) LabelFor(choice Choice, kind SourceKind) string {
	switch choice {
	case ChoicePreferred:
		return string(kind)
	case ChoiceAlternate:
		return string(kind) + " (fallback)"
	default:
		return LabelUnavailable
	}
}
