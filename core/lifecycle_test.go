package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestActivateRules(t *testing.T) {
	l := newTestLedger(t)
	id := createProposal(t, l, Simple)

	// before the start boundary
	assert.ErrorIs(t, l.Activate(addr(1), 99, id), ErrVotingNotStarted)

	// creator only
	assert.ErrorIs(t, l.Activate(addr(2), 100, id), ErrNotAuthorized)

	assert.Nil(t, l.Activate(addr(1), 100, id))

	// idempotent
	assert.Nil(t, l.Activate(addr(1), 101, id))

	// still creator only once active: the idempotent path must not leak
	// a success to other callers
	assert.ErrorIs(t, l.Activate(addr(2), 101, id), ErrNotAuthorized)

	assert.ErrorIs(t, l.Activate(addr(1), 100, id+1), ErrProposalNotFound)
}

// Scenario: cancel succeeds strictly before the start boundary and fails
// once start has passed, regardless of status.
func TestCancelBeforeStartOnly(t *testing.T) {
	l := newTestLedger(t)

	id := createProposal(t, l, Simple)
	assert.ErrorIs(t, l.Cancel(addr(2), 60, id), ErrNotAuthorized)
	assert.Nil(t, l.Cancel(addr(1), 60, id))

	status, err := l.Status(id)
	assert.Nil(t, err)
	assert.Equal(t, Cancelled, status)

	// cancelled is terminal
	assert.ErrorIs(t, l.Cancel(addr(1), 61, id), ErrInvalidTransition)
	assert.ErrorIs(t, l.Activate(addr(1), 100, id), ErrInvalidTransition)
	assert.ErrorIs(t, l.CastVote(addr(2), 150, id, 0, 1), ErrProposalNotActive)
	assert.ErrorIs(t, l.Finalize(addr(1), 201, id), ErrInvalidTransition)

	// at or after start, cancel fails whether or not anyone activated
	pending := createProposal(t, l, Simple)
	assert.ErrorIs(t, l.Cancel(addr(1), 100, pending), ErrInvalidTransition)

	active := createProposal(t, l, Simple)
	assert.Nil(t, l.Activate(addr(1), 100, active))
	assert.ErrorIs(t, l.Cancel(addr(1), 150, active), ErrInvalidTransition)
}

func TestFinalizeTerminal(t *testing.T) {
	l := newTestLedger(t)
	id := createProposal(t, l, Simple)
	assert.Nil(t, l.CastVote(addr(2), 150, id, 0, 1))
	assert.Nil(t, l.Finalize(addr(1), 201, id))

	// finalized is immutable
	assert.ErrorIs(t, l.Finalize(addr(1), 202, id), ErrAlreadyFinalized)
	assert.ErrorIs(t, l.CastVote(addr(3), 180, id, 0, 1), ErrProposalNotActive)
	_, err := l.DeclareWinner(addr(1), 202, id, 1)
	assert.ErrorIs(t, err, ErrAlreadyFinalized)
	assert.ErrorIs(t, l.Activate(addr(1), 202, id), ErrInvalidTransition)
}

func TestFinalizeNeverActivatedProposal(t *testing.T) {
	l := newTestLedger(t)
	id := createProposal(t, l, Simple)

	// whole window elapsed while Pending; finalize closes it with no votes
	assert.Nil(t, l.Finalize(addr(5), 201, id))

	winner, err := l.Winner(id)
	assert.Nil(t, err)
	assert.Nil(t, winner)
}

func TestWinnerBeforeFinalization(t *testing.T) {
	l := newTestLedger(t)
	id := createProposal(t, l, Simple)
	assert.Nil(t, l.CastVote(addr(2), 150, id, 0, 1))

	_, err := l.Winner(id)
	assert.ErrorIs(t, err, ErrNotFinalized)

	// provisional tallies remain readable
	res, err := l.GetResults(id)
	assert.Nil(t, err)
	assert.Equal(t, uint64(1), res.TotalVotes)
	assert.Nil(t, res.Winner)
}

func TestQuorumNotMetYieldsNoWinner(t *testing.T) {
	l := newTestLedger(t)

	// quorum 10000 bp wants 10000/10000 participation units, one vote is
	// 10000 under the participation-count rule, so one vote meets it; a
	// zero-vote proposal does not
	id, err := l.CreateProposal(addr(1), 50, "t", "d", Simple, 100, 200, 10000, 0)
	assert.Nil(t, err)

	assert.Nil(t, l.Finalize(addr(1), 201, id))

	met, err := l.QuorumMet(id)
	assert.Nil(t, err)
	assert.False(t, met)

	winner, err := l.Winner(id)
	assert.Nil(t, err)
	assert.Nil(t, winner)
}

// The approval comparison multiplies powers by basis points; with weighted
// stakes near 2^64 that product exceeds 64 bits and must not wrap.
func TestApprovalWithLargeWeightedStakes(t *testing.T) {
	l := newTestLedger(t)

	id, err := l.CreateProposal(addr(1), 50, "treasury move", "d", Weighted, 100, 200, 0, 9999)
	assert.Nil(t, err)

	// the sole voter holds 100% of the power
	assert.Nil(t, l.CastVote(addr(2), 150, id, 0, uint64(1)<<60))
	assert.Nil(t, l.Finalize(addr(1), 201, id))

	winner, err := l.Winner(id)
	assert.Nil(t, err)
	assert.NotNil(t, winner)
	assert.Equal(t, uint32(0), *winner)

	// 2/3 of the power at a 6667 bp threshold misses by exactly one basis
	// point, at the same magnitudes
	tight, err := l.CreateProposal(addr(1), 50, "tight", "d", Weighted, 100, 200, 0, 6667)
	assert.Nil(t, err)
	assert.Nil(t, l.CastVote(addr(2), 150, tight, 0, uint64(1)<<60))
	assert.Nil(t, l.CastVote(addr(3), 150, tight, 0, uint64(1)<<60))
	assert.Nil(t, l.CastVote(addr(4), 150, tight, 1, uint64(1)<<60))
	assert.Nil(t, l.Finalize(addr(1), 201, tight))

	winner, err = l.Winner(tight)
	assert.Nil(t, err)
	assert.Nil(t, winner)
}

func TestDeclareWinnerOverride(t *testing.T) {
	l := newTestLedger(t)
	id := createProposal(t, l, Simple)
	assert.Nil(t, l.CastVote(addr(2), 150, id, 0, 1))

	// voting still open
	_, err := l.DeclareWinner(addr(1), 150, id, 1)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	// creator only
	_, err = l.DeclareWinner(addr(2), 201, id, 1)
	assert.ErrorIs(t, err, ErrNotAuthorized)

	// option must exist
	_, err = l.DeclareWinner(addr(1), 201, id, 5)
	assert.ErrorIs(t, err, ErrInvalidOption)

	opt, err := l.DeclareWinner(addr(1), 201, id, 1)
	assert.Nil(t, err)
	assert.Equal(t, uint32(1), opt)

	// declaring closes voting but does not finalize
	status, err := l.Status(id)
	assert.Nil(t, err)
	assert.Equal(t, Ended, status)

	assert.Nil(t, l.Finalize(addr(1), 202, id))

	// the override wins over the computed result, with an audit record
	winner, err := l.Winner(id)
	assert.Nil(t, err)
	assert.NotNil(t, winner)
	assert.Equal(t, uint32(1), *winner)

	p, err := l.GetProposal(id)
	assert.Nil(t, err)
	assert.NotNil(t, p.Override)
	assert.Equal(t, addr(1), p.Override.Caller)
	assert.Equal(t, uint32(1), p.Override.Option)
	assert.NotEmpty(t, p.Override.ID)
}
