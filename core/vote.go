package core

import (
	"math"

	"github.com/ethereum/go-ethereum/common"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
)

// CastVote records the caller's own vote on a proposal. One vote per
// (proposal, voter) key, ever; the vote is immutable once written.
func (l *Ledger) CastVote(caller common.Address, now uint64, proposalID uint64, optionID uint32, rawPower uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.paused {
		return ErrSystemPaused
	}

	return l.castVoteLocked(caller, now, proposalID, optionID, rawPower, false)
}

// VoteViaDelegation casts a vote on behalf of a delegator. The caller must
// be the delegator's ultimate delegate, resolved through the delegation
// chain; nobody else may exercise delegated power. The vote is keyed under
// the delegator, so it competes with a direct vote for the same one-per-key
// slot: whichever lands first wins, the other fails with ErrAlreadyVoted.
func (l *Ledger) VoteViaDelegation(caller common.Address, now uint64, proposalID uint64, delegator common.Address, optionID uint32, rawPower uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.paused {
		return ErrSystemPaused
	}

	if !l.delegations.HasActive(delegator) {
		return ErrNoDelegation
	}

	resolved, err := l.delegations.Resolve(delegator)
	if err != nil {
		return err
	}
	if resolved != caller {
		return ErrNotAuthorized
	}

	return l.castVoteLocked(delegator, now, proposalID, optionID, rawPower, true)
}

// castVoteLocked validates and applies one vote. Caller holds the write
// lock. Steps before the mutation block are validation only; the mutation
// block is the single point where state changes, so a rejected vote leaves
// the store untouched.
func (l *Ledger) castVoteLocked(voter common.Address, now uint64, proposalID uint64, optionID uint32, rawPower uint64, viaDelegation bool) error {
	p, ok := l.proposals[proposalID]
	if !ok {
		return ErrProposalNotFound
	}

	// temporal checks outrank status: a vote outside the window is reported
	// as such even when the status has not caught up with the clock
	if now < p.StartTime {
		return ErrVotingNotStarted
	}
	if now > p.EndTime {
		return ErrVotingEnded
	}
	if p.Status != Active && p.Status != Pending {
		return ErrProposalNotActive
	}
	if _, voted := l.votes[proposalID][voter]; voted {
		return ErrAlreadyVoted
	}
	if optionID >= p.OptionCount {
		return ErrInvalidOption
	}
	if rawPower == 0 {
		return ErrInvalidAmount
	}

	power, err := EffectivePower(p.Mechanism, rawPower)
	if err != nil {
		return err
	}
	if power == 0 {
		return ErrNoVotingPower
	}
	// the proposal-wide power sum must stay within uint64 so tally and
	// threshold arithmetic never wraps
	accumulated := lo.SumBy(l.options[proposalID], func(o *Option) uint64 { return o.VotePower })
	if power > math.MaxUint64-accumulated {
		return ErrInvalidAmount
	}

	// mutation: lazy activation plus the vote itself, applied as one unit
	if p.Status == Pending {
		p.Status = Active
	}

	v := &Vote{
		ProposalID:    proposalID,
		Voter:         voter,
		Option:        optionID,
		Power:         power,
		Timestamp:     now,
		ViaDelegation: viaDelegation,
	}
	l.votes[proposalID][voter] = v

	o := l.options[proposalID][optionID]
	o.VoteCount++
	o.VotePower += power

	p.TotalVotes++
	p.Voters = append(p.Voters, voter)

	l.persistVote(v)
	l.persistOption(o)
	l.persistProposal(p)

	l.logger.WithFields(logrus.Fields{
		"proposal":  proposalID,
		"voter":     voter.Hex(),
		"option":    optionID,
		"power":     power,
		"delegated": viaDelegation,
	}).Debug("vote recorded")

	return nil
}
