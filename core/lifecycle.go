package core

import (
	"math/bits"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
)

// transitions is the allowed status graph. Finalized and Cancelled are
// terminal.
var transitions = map[ProposalStatus][]ProposalStatus{
	Pending: {Active, Cancelled},
	Active:  {Ended},
	Ended:   {Finalized},
}

func canTransition(from, to ProposalStatus) bool {
	return lo.Contains(transitions[from], to)
}

func invalidTransition(from, to ProposalStatus) error {
	return errors.Wrapf(ErrInvalidTransition, "%s -> %s", from, to)
}

// Activate moves a Pending proposal to Active once the start boundary is
// reached. Creator only; idempotent when already Active. Vote casting also
// activates lazily, so calling this explicitly is optional.
func (l *Ledger) Activate(caller common.Address, now uint64, proposalID uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.paused {
		return ErrSystemPaused
	}

	p, ok := l.proposals[proposalID]
	if !ok {
		return ErrProposalNotFound
	}
	if p.Creator != caller {
		return ErrNotAuthorized
	}
	if p.Status == Active {
		return nil
	}
	if !canTransition(p.Status, Active) {
		return invalidTransition(p.Status, Active)
	}
	if now < p.StartTime {
		return ErrVotingNotStarted
	}

	p.Status = Active
	l.persistProposal(p)

	l.logger.WithField("proposal", proposalID).Info("proposal activated")
	return nil
}

// Cancel aborts a proposal strictly before its start boundary. Creator only.
// Once the start boundary has passed, cancellation is impossible regardless
// of status.
func (l *Ledger) Cancel(caller common.Address, now uint64, proposalID uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.paused {
		return ErrSystemPaused
	}

	p, ok := l.proposals[proposalID]
	if !ok {
		return ErrProposalNotFound
	}
	if p.Creator != caller {
		return ErrNotAuthorized
	}
	if now >= p.StartTime {
		return invalidTransition(p.Status, Cancelled)
	}
	if !canTransition(p.Status, Cancelled) {
		return invalidTransition(p.Status, Cancelled)
	}

	p.Status = Cancelled
	l.persistProposal(p)

	l.logger.WithField("proposal", proposalID).Info("proposal cancelled")
	return nil
}

// DeclareWinner lets the creator assert a winner manually while the proposal
// sits in Ended. The assertion is recorded as an override with an audit
// entry; Finalize will seal it instead of the computed result. A proposal
// still Active past its end boundary is closed here first.
func (l *Ledger) DeclareWinner(caller common.Address, now uint64, proposalID uint64, option uint32) (uint32, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.paused {
		return 0, ErrSystemPaused
	}

	p, ok := l.proposals[proposalID]
	if !ok {
		return 0, ErrProposalNotFound
	}
	if p.Creator != caller {
		return 0, ErrNotAuthorized
	}
	if p.Status == Finalized {
		return 0, ErrAlreadyFinalized
	}
	if option >= p.OptionCount {
		return 0, ErrInvalidOption
	}

	if err := l.closeVoting(p, now); err != nil {
		return 0, err
	}

	p.Override = &OverrideRecord{
		ID:        uuid.NewString(),
		Caller:    caller,
		Option:    option,
		Timestamp: now,
	}
	l.persistProposal(p)

	l.logger.WithFields(logrus.Fields{
		"proposal": proposalID,
		"option":   option,
		"audit":    p.Override.ID,
	}).Warn("winner declared by manual override")

	return option, nil
}

// Finalize seals the proposal result. The proposal must be past its end
// boundary; a proposal still Active (or never explicitly activated) is
// closed first. The winner is computed from the tallies and the approval
// threshold unless the creator recorded an override. The result is immutable
// afterwards.
func (l *Ledger) Finalize(caller common.Address, now uint64, proposalID uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.paused {
		return ErrSystemPaused
	}

	p, ok := l.proposals[proposalID]
	if !ok {
		return ErrProposalNotFound
	}
	if p.Status == Finalized {
		return ErrAlreadyFinalized
	}

	if err := l.closeVoting(p, now); err != nil {
		return err
	}

	var winner *uint32
	if p.Override != nil {
		w := p.Override.Option
		winner = &w
	} else {
		winner = l.computeWinner(p)
	}

	p.Winner = winner
	p.Status = Finalized
	l.persistProposal(p)

	fields := logrus.Fields{"proposal": proposalID, "votes": p.TotalVotes}
	if winner != nil {
		fields["winner"] = *winner
	}
	l.logger.WithFields(fields).Info("proposal finalized")

	return nil
}

// closeVoting moves a proposal into Ended once the end boundary has passed.
// A Pending proposal whose whole window elapsed unactivated passes through
// Active on the way. Cancelled proposals never close.
func (l *Ledger) closeVoting(p *Proposal, now uint64) error {
	switch p.Status {
	case Ended:
		return nil
	case Pending, Active:
		if now <= p.EndTime {
			return invalidTransition(p.Status, Ended)
		}
		// a never-activated proposal steps through Active so the status
		// history stays on the declared transition graph
		if p.Status == Pending {
			p.Status = Active
		}
		p.Status = Ended
		return nil
	}
	return invalidTransition(p.Status, Ended)
}

// quorumMet applies the participation-count quorum rule: the number of cast
// votes, scaled to basis points, must reach the quorum threshold.
func quorumMet(p *Proposal) bool {
	return p.TotalVotes*BasisPointDenom >= p.QuorumBP
}

// computeWinner returns the leading option's index when quorum is met and
// the option's power share clears the approval threshold, nil otherwise.
// Ties resolve to the lowest index.
func (l *Ledger) computeWinner(p *Proposal) *uint32 {
	if !quorumMet(p) {
		return nil
	}

	opts := l.options[p.ID]
	totalPower := lo.SumBy(opts, func(o *Option) uint64 { return o.VotePower })
	if totalPower == 0 {
		return nil
	}

	lead := lo.MaxBy(opts, func(a, b *Option) bool { return a.VotePower > b.VotePower })
	if !approvalReached(lead.VotePower, p.ApprovalBP, totalPower) {
		return nil
	}

	idx := lead.Index
	return &idx
}

// approvalReached reports lead*10000 >= approvalBP*total. Both products are
// formed in 128 bits; weighted stakes near 2^64 would wrap a plain uint64
// multiply and flip the decision.
func approvalReached(lead, approvalBP, total uint64) bool {
	hiLead, loLead := bits.Mul64(lead, BasisPointDenom)
	hiNeed, loNeed := bits.Mul64(approvalBP, total)
	if hiLead != hiNeed {
		return hiLead > hiNeed
	}
	return loLead >= loNeed
}
