package core

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/samber/lo"
)

// Read-only queries. All take the read lock and return copies, so callers
// can never mutate ledger state through a result.

// GetProposal returns a snapshot of one proposal.
func (l *Ledger) GetProposal(proposalID uint64) (Proposal, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	p, ok := l.proposals[proposalID]
	if !ok {
		return Proposal{}, ErrProposalNotFound
	}
	return copyProposal(p), nil
}

// GetOption returns one option of a proposal.
func (l *Ledger) GetOption(proposalID uint64, index uint32) (Option, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	opts, ok := l.options[proposalID]
	if !ok {
		return Option{}, ErrProposalNotFound
	}
	if int(index) >= len(opts) {
		return Option{}, ErrInvalidOption
	}
	return *opts[index], nil
}

// OptionPower returns the accumulated vote power of one option.
func (l *Ledger) OptionPower(proposalID uint64, index uint32) (uint64, error) {
	o, err := l.GetOption(proposalID, index)
	if err != nil {
		return 0, err
	}
	return o.VotePower, nil
}

// GetVote returns the vote record for a (proposal, voter) key.
func (l *Ledger) GetVote(proposalID uint64, voter common.Address) (Vote, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	votes, ok := l.votes[proposalID]
	if !ok {
		return Vote{}, ErrProposalNotFound
	}
	v, ok := votes[voter]
	if !ok {
		return Vote{}, ErrVoteNotFound
	}
	return *v, nil
}

// HasVoted reports whether the voter already holds the (proposal, voter) slot.
func (l *Ledger) HasVoted(proposalID uint64, voter common.Address) (bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	votes, ok := l.votes[proposalID]
	if !ok {
		return false, ErrProposalNotFound
	}
	_, voted := votes[voter]
	return voted, nil
}

// VoterByIndex returns the i-th voter of a proposal in voting order.
func (l *Ledger) VoterByIndex(proposalID uint64, i int) (common.Address, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	p, ok := l.proposals[proposalID]
	if !ok {
		return common.Address{}, ErrProposalNotFound
	}
	if i < 0 || i >= len(p.Voters) {
		return common.Address{}, ErrVoteNotFound
	}
	return p.Voters[i], nil
}

// Status returns the proposal's current lifecycle status.
func (l *Ledger) Status(proposalID uint64) (ProposalStatus, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	p, ok := l.proposals[proposalID]
	if !ok {
		return 0, ErrProposalNotFound
	}
	return p.Status, nil
}

// Winner returns the finalized winner. ErrNotFinalized before finalization;
// a nil option pointer after it means no option cleared the thresholds.
func (l *Ledger) Winner(proposalID uint64) (*uint32, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	p, ok := l.proposals[proposalID]
	if !ok {
		return nil, ErrProposalNotFound
	}
	if p.Status != Finalized {
		return nil, ErrNotFinalized
	}
	if p.Winner == nil {
		return nil, nil
	}
	w := *p.Winner
	return &w, nil
}

// QuorumMet evaluates the participation-count quorum rule against the
// current tallies. Before finalization the answer is provisional.
func (l *Ledger) QuorumMet(proposalID uint64) (bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	p, ok := l.proposals[proposalID]
	if !ok {
		return false, ErrProposalNotFound
	}
	return quorumMet(p), nil
}

// GetResults returns the tally projection for a proposal without mutating
// state. Tallies are provisional until the proposal is finalized.
func (l *Ledger) GetResults(proposalID uint64) (Results, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	p, ok := l.proposals[proposalID]
	if !ok {
		return Results{}, ErrProposalNotFound
	}

	opts := lo.Map(l.options[proposalID], func(o *Option, _ int) Option { return *o })

	r := Results{
		ProposalID: proposalID,
		Status:     p.Status,
		TotalVotes: p.TotalVotes,
		TotalPower: lo.SumBy(opts, func(o Option) uint64 { return o.VotePower }),
		Options:    opts,
	}
	if p.Winner != nil {
		w := *p.Winner
		r.Winner = &w
	}
	return r, nil
}

// GetDelegation returns the delegation record for a delegator, revoked ones
// included.
func (l *Ledger) GetDelegation(delegator common.Address) (Delegation, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	d, ok := l.delegations.Get(delegator)
	if !ok {
		return Delegation{}, ErrNoDelegation
	}
	return *d, nil
}

// DelegationActive reports whether the delegator currently delegates.
func (l *Ledger) DelegationActive(delegator common.Address) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return l.delegations.HasActive(delegator)
}

// ResolveDelegate returns the delegator's ultimate delegate.
func (l *Ledger) ResolveDelegate(delegator common.Address) (common.Address, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return l.delegations.Resolve(delegator)
}

// ProjectPower previews the effective power a raw stake would yield under a
// mechanism, without touching any proposal.
func (l *Ledger) ProjectPower(mechanism VotingMechanism, raw uint64) (uint64, error) {
	if !mechanism.Valid() {
		return 0, ErrInvalidVotingType
	}
	return EffectivePower(mechanism, raw)
}

// Totals returns platform-wide counters.
func (l *Ledger) Totals() PlatformTotals {
	l.mu.RLock()
	defer l.mu.RUnlock()

	t := PlatformTotals{
		Proposals:   uint64(len(l.proposals)),
		Delegations: uint64(l.delegations.Len()),
	}
	for _, p := range l.proposals {
		t.Votes += p.TotalVotes
	}
	return t
}

// Paused reports the global pause gate.
func (l *Ledger) Paused() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return l.paused
}

// Owner returns the platform owner address.
func (l *Ledger) Owner() common.Address {
	return l.owner
}

func copyProposal(p *Proposal) Proposal {
	cp := *p
	if p.Winner != nil {
		w := *p.Winner
		cp.Winner = &w
	}
	if p.Override != nil {
		o := *p.Override
		cp.Override = &o
	}
	cp.Voters = append([]common.Address(nil), p.Voters...)
	return cp
}
