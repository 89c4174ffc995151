// Package models defines the core domain models for splitchat.
//
// # Models
//
//   - BillState: the authoritative record of one shared bill (total, participants, individual expenses)
//   - IndividualExpense: a cost paid by exactly one participant, excluded from the even split
//   - CommandDelta: a set of optional changes produced by interpreting a chat command
//   - ChatMessage: one entry of the session transcript
//   - Breakdown / PersonShare: the output of the split calculation
//   - Payment / Transfer: inputs and outputs of settling up after the bill is paid
//
// Participants are identified by name strings; there are no user accounts.
//
// # Design Principles
//
// 1. **Values, not pointers**: BillState is replaced wholesale on every change, so
// before/after snapshots can be compared with plain equality.
// 2. **Validate at the boundary**: data produced by external collaborators is checked
// with Validate before it reaches the merge engine.
// 3. **Amounts are float64**: the bill has a single implicit currency and callers
// compare with a small tolerance.
package models
