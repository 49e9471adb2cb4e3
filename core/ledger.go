package core

import (
	"sync"

	"github.com/axiomesh/axiom-kit/log"
	"github.com/axiomesh/axiom-kit/storage"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// defaultOptionNames are the two options every proposal starts with.
var defaultOptionNames = []string{"Yes", "No"}

// Ledger is the governance store. All mutating operations run under one
// exclusive lock and follow validate-then-mutate: every precondition is
// checked before the first write, so a failed operation leaves the store
// untouched. Caller identity and the clock are explicit arguments on every
// operation, the ledger never reads ambient time.
type Ledger struct {
	mu     sync.RWMutex
	logger *logrus.Logger

	// db is the durable snapshot store; nil means ephemeral (tests)
	db storage.Storage

	owner  common.Address
	paused bool
	limits Limits

	nextID      uint64
	proposals   map[uint64]*Proposal
	options     map[uint64][]*Option
	votes       map[uint64]map[common.Address]*Vote
	delegations *DelegationGraph
}

func NewLedger(owner common.Address, db storage.Storage, limits Limits) (*Ledger, error) {
	if limits.MaxOptions == 0 {
		limits = DefaultLimits()
	}

	l := &Ledger{
		logger:      log.New(),
		db:          db,
		owner:       owner,
		limits:      limits,
		proposals:   make(map[uint64]*Proposal),
		options:     make(map[uint64][]*Option),
		votes:       make(map[uint64]map[common.Address]*Vote),
		delegations: NewDelegationGraph(),
	}

	if db != nil {
		if err := l.load(); err != nil {
			return nil, err
		}
	}

	return l, nil
}

// SetLogLevel adjusts the ledger logger, "info" by default.
func (l *Ledger) SetLogLevel(level string) {
	l.logger.SetLevel(log.ParseLevel(level))
}

// CreateProposal registers a new proposal in Pending status with the two
// default options. IDs are monotonically increasing and never reused.
func (l *Ledger) CreateProposal(caller common.Address, now uint64, title, description string, mechanism VotingMechanism, start, end, quorumBP, approvalBP uint64) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.paused {
		return 0, ErrSystemPaused
	}
	if !mechanism.Valid() {
		return 0, ErrInvalidVotingType
	}
	if title == "" || len(title) > l.limits.MaxTitle || len(description) > l.limits.MaxDesc {
		return 0, ErrInvalidAmount
	}
	if start <= now || end <= start {
		return 0, ErrInvalidAmount
	}
	if quorumBP > BasisPointDenom || approvalBP > BasisPointDenom {
		return 0, ErrInvalidThreshold
	}

	l.nextID++
	id := l.nextID

	p := &Proposal{
		ID:          id,
		Creator:     caller,
		Title:       title,
		Description: description,
		Mechanism:   mechanism,
		CreatedAt:   now,
		StartTime:   start,
		EndTime:     end,
		OptionCount: uint32(len(defaultOptionNames)),
		QuorumBP:    quorumBP,
		ApprovalBP:  approvalBP,
		Status:      Pending,
	}
	l.proposals[id] = p
	l.votes[id] = make(map[common.Address]*Vote)

	opts := make([]*Option, 0, len(defaultOptionNames))
	for i, name := range defaultOptionNames {
		opts = append(opts, &Option{ProposalID: id, Index: uint32(i), Name: name})
	}
	l.options[id] = opts

	l.persistProposal(p)
	for _, o := range opts {
		l.persistOption(o)
	}
	l.persistMeta()

	l.logger.WithFields(logrus.Fields{
		"proposal":  id,
		"creator":   caller.Hex(),
		"mechanism": mechanism.String(),
	}).Info("proposal created")

	return id, nil
}

// AddOption appends an option to a Pending proposal. Creator only, capped at
// the configured maximum, options are never deleted.
func (l *Ledger) AddOption(caller common.Address, now uint64, proposalID uint64, name string) (uint32, error) {
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
	if p.Status != Pending {
		return 0, errors.Wrapf(ErrInvalidTransition, "add-option requires pending, proposal is %s", p.Status)
	}
	if name == "" || len(name) > l.limits.MaxOptionName {
		return 0, ErrInvalidAmount
	}
	if p.OptionCount >= l.limits.MaxOptions {
		return 0, ErrInvalidAmount
	}

	idx := p.OptionCount
	o := &Option{ProposalID: proposalID, Index: idx, Name: name}
	l.options[proposalID] = append(l.options[proposalID], o)
	p.OptionCount++

	l.persistOption(o)
	l.persistProposal(p)

	return idx, nil
}

// Delegate records caller -> delegate, replacing any prior delegation.
func (l *Ledger) Delegate(caller common.Address, now uint64, delegate common.Address) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.paused {
		return ErrSystemPaused
	}

	d, err := l.delegations.Set(caller, delegate, now)
	if err != nil {
		return err
	}

	l.persistDelegation(d)
	l.persistDelegatorIndex()

	l.logger.WithFields(logrus.Fields{
		"delegator": caller.Hex(),
		"delegate":  delegate.Hex(),
	}).Info("delegation recorded")

	return nil
}

// RevokeDelegation deactivates the caller's delegation.
func (l *Ledger) RevokeDelegation(caller common.Address, now uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.paused {
		return ErrSystemPaused
	}

	if err := l.delegations.Revoke(caller); err != nil {
		return err
	}

	d, _ := l.delegations.Get(caller)
	l.persistDelegation(d)

	return nil
}

// Pause gates all mutating operations. Owner only.
func (l *Ledger) Pause(caller common.Address) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if caller != l.owner {
		return ErrOwnerOnly
	}

	l.paused = true
	l.persistMeta()
	l.logger.Warn("ledger paused")
	return nil
}

// Resume lifts the pause gate. Owner only.
func (l *Ledger) Resume(caller common.Address) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if caller != l.owner {
		return ErrOwnerOnly
	}

	l.paused = false
	l.persistMeta()
	l.logger.Info("ledger resumed")
	return nil
}
