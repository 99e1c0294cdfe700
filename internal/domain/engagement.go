package domain

import "fmt"

// Relation is a kind of per-user engagement with a quote.
type Relation int

const (
	RelationLike Relation = iota + 1
	RelationSave
)

func (r Relation) String() string {
	switch r {
	case RelationLike:
		return "like"
	case RelationSave:
		return "save"
	default:
		return fmt.Sprintf("relation(%d)", int(r))
	}
}

// Valid reports whether r is a known relation.
func (r Relation) Valid() bool {
	return r == RelationLike || r == RelationSave
}

// Action is the requested transition for a relation.
type Action int

const (
	ActionAdd Action = iota + 1
	ActionRemove
)

func (a Action) String() string {
	switch a {
	case ActionAdd:
		return "add"
	case ActionRemove:
		return "remove"
	default:
		return fmt.Sprintf("action(%d)", int(a))
	}
}

// Verb names the transition the way engagement events spell it:
// like, unlike, save or unsave.
func (a Action) Verb(rel Relation) string {
	switch {
	case rel == RelationLike && a == ActionAdd:
		return "like"
	case rel == RelationLike && a == ActionRemove:
		return "unlike"
	case rel == RelationSave && a == ActionAdd:
		return "save"
	case rel == RelationSave && a == ActionRemove:
		return "unsave"
	default:
		return a.String()
	}
}

// ParseVerb is the inverse of Action.Verb.
func ParseVerb(verb string) (Relation, Action, error) {
	switch verb {
	case "like":
		return RelationLike, ActionAdd, nil
	case "unlike":
		return RelationLike, ActionRemove, nil
	case "save":
		return RelationSave, ActionAdd, nil
	case "unsave":
		return RelationSave, ActionRemove, nil
	default:
		return 0, 0, NewValidationErrorWithValue("action", "must be one of like, unlike, save, unsave", verb)
	}
}

// EngagementState is the outcome of a like/save toggle.
type EngagementState struct {
	QuoteID  string
	Relation Relation

	// Active reports whether the relation exists after the call.
	Active bool

	// LikeCount is only populated for likes.
	LikeCount int64
}
