package order

import (
	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/pkg/errs"
)

// RevisionKind tags a row of the order structure.
type RevisionKind int

const (
	// Canonical rows are what the driver executes.
	Canonical RevisionKind = iota + 1
	// PendingReplacement rows shadow an original that is flagged PendingDeletion.
	PendingReplacement
	// PendingAddition rows are new and invisible to the driver until merged.
	PendingAddition
	// PendingDeletion rows stay visible to the driver and are purged at the next merge.
	PendingDeletion
)

func (k RevisionKind) String() string {
	switch k {
	case Canonical:
		return "CANONICAL"
	case PendingReplacement:
		return "PENDING_REPLACEMENT"
	case PendingAddition:
		return "PENDING_ADDITION"
	case PendingDeletion:
		return "PENDING_DELETION"
	default:
		return "UNKNOWN"
	}
}

// Revision is the tagged union describing a row's role in the shadow-copy model.
// originalID is set only for PendingReplacement.
type Revision struct {
	kind       RevisionKind
	originalID *kernel.UUID
}

func CanonicalRevision() Revision {
	return Revision{kind: Canonical}
}

func AdditionRevision() Revision {
	return Revision{kind: PendingAddition}
}

func DeletionRevision() Revision {
	return Revision{kind: PendingDeletion}
}

func ReplacementOf(originalID kernel.UUID) Revision {
	id := originalID
	return Revision{kind: PendingReplacement, originalID: &id}
}

// RevisionFromColumns rebuilds a Revision from the persisted original_id,
// is_pending_change and is_delete_required columns. Inconsistent combinations are
// data corruption.
func RevisionFromColumns(originalID *kernel.UUID, isPendingChange, isDeleteRequired bool) (Revision, error) {
	switch {
	case isPendingChange && isDeleteRequired:
		return Revision{}, errs.NewCorruptionError("revision", "row is both a pending change and delete-required")
	case isPendingChange && originalID != nil:
		return ReplacementOf(*originalID), nil
	case isPendingChange:
		return AdditionRevision(), nil
	case originalID != nil:
		return Revision{}, errs.NewCorruptionError("revision", "canonical row references an original")
	case isDeleteRequired:
		return DeletionRevision(), nil
	default:
		return CanonicalRevision(), nil
	}
}

func (r Revision) Kind() RevisionKind {
	if r.kind == 0 {
		return Canonical
	}
	return r.kind
}

// OriginalID is the shadowed row for a PendingReplacement, nil otherwise.
func (r Revision) OriginalID() *kernel.UUID {
	return r.originalID
}

// IsPendingChange maps to the is_pending_change column.
func (r Revision) IsPendingChange() bool {
	return r.Kind() == PendingReplacement || r.Kind() == PendingAddition
}

// IsDeleteRequired maps to the is_delete_required column.
func (r Revision) IsDeleteRequired() bool {
	return r.Kind() == PendingDeletion
}

// VisibleToDriver is true for rows in the in-flight execution structure.
func (r Revision) VisibleToDriver() bool {
	return r.Kind() == Canonical || r.Kind() == PendingDeletion
}

// VisibleToClient is true for rows in the intended future structure.
func (r Revision) VisibleToClient() bool {
	return r.Kind() != PendingDeletion
}

func (r Revision) IsReplacementOf(id kernel.UUID) bool {
	return r.Kind() == PendingReplacement && r.originalID != nil && r.originalID.IsEqual(id)
}
