// Package order holds the Order aggregate: the dispatch state machine, the
// Step → Stop → Action → ActionProof decomposition, and the shadow-copy revision
// model used to restructure an order while a mission is executing it.
//
// The package includes:
//   - Order: the aggregate root, owner of every descendant row and of the offer state
//   - Status / AssignmentMode: the order lifecycle and who may receive it
//   - Step, Stop, Action, ActionProof: the executable structure
//   - Revision: Canonical | PendingReplacement | PendingAddition | PendingDeletion
//   - Edit: the structural patch operations applied by ApplyStructuralEdit
//
// Key business rules:
//   - Pending rows never change what a driver is currently executing; they are
//     merged only at a checkpoint (no Stop ARRIVED)
//   - A Stop that is ARRIVED, COMPLETED or FAILED cannot be edited
//   - executionOrder is written only from an optimizer plan
//   - Every change bumps the order version, which is the sequence of its events
package order
