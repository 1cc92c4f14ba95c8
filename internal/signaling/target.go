package signaling

import "github.com/mossy-p/burner-signaling/internal/apperr"

var (
	// ErrNoRoom is returned when the sender is not in a room of the kind
	// it is signaling in, or that room has expired.
	ErrNoRoom = apperr.New(apperr.NotFound, "not in a room of that kind")
	// ErrNoTarget is returned when there is nobody to deliver to: fewer
	// than two participants, or an explicit target that is not present.
	ErrNoTarget = apperr.New(apperr.NoTarget, "no peer to deliver to")
	// ErrTargetRequired is returned when more than two participants are
	// present and no explicit target was given. Picking one would be a
	// guess.
	ErrTargetRequired = apperr.New(apperr.NoTarget, "target required when more than two participants are present")
)

// ResolveTarget picks the connection an envelope from `from` goes to.
// participants must include from.
func ResolveTarget(participants []string, from, explicit string) (string, error) {
	if explicit != "" {
		if explicit == from {
			return "", ErrNoTarget
		}
		for _, p := range participants {
			if p == explicit {
				return explicit, nil
			}
		}
		return "", ErrNoTarget
	}

	switch {
	case len(participants) < 2:
		return "", ErrNoTarget
	case len(participants) > 2:
		return "", ErrTargetRequired
	}
	for _, p := range participants {
		if p != from {
			return p, nil
		}
	}
	return "", ErrNoTarget
}
