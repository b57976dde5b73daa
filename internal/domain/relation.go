package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type RelationKind string

const (
	RelationFavorite RelationKind = "FAVORITE"
	RelationFollow   RelationKind = "FOLLOW"
	RelationBlock    RelationKind = "BLOCK"
)

func (k RelationKind) Valid() bool {
	switch k {
	case RelationFavorite, RelationFollow, RelationBlock:
		return true
	}
	return false
}

// RelationKey is the natural composite key of a relation. Target is an item id
// for favorites and a user email for follows and blocks.
type RelationKey struct {
	Kind       RelationKind
	ActorEmail string
	Target     string
}

func (k RelationKey) Normalize() RelationKey {
	k.ActorEmail = NormalizeEmail(k.ActorEmail)
	k.Target = strings.TrimSpace(k.Target)
	if k.Kind != RelationFavorite {
		k.Target = NormalizeEmail(k.Target)
	}
	return k
}

func (k RelationKey) Validate(op string) error {
	if !k.Kind.Valid() {
		return NewValidationError(op, "unknown relation kind %q", k.Kind)
	}
	if k.ActorEmail == "" || k.Target == "" {
		return NewValidationError(op, "actor and target are required")
	}
	if k.Kind != RelationFavorite && !strings.Contains(k.Target, "@") {
		return NewValidationError(op, "%s target must be a user email", strings.ToLower(string(k.Kind)))
	}
	if k.ActorEmail == k.Target {
		return NewValidationError(op, "actor and target must differ")
	}
	return nil
}

type Relation struct {
	ID         uuid.UUID    `json:"id"`
	Kind       RelationKind `json:"kind"`
	ActorEmail string       `json:"actor_email"`
	Target     string       `json:"target"`
	CreatedOn  time.Time    `json:"created_on"`
}

func (r *Relation) Key() RelationKey {
	return RelationKey{Kind: r.Kind, ActorEmail: r.ActorEmail, Target: r.Target}
}
