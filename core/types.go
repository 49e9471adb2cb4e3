package core

import (
	"github.com/ethereum/go-ethereum/common"
)

// BasisPointDenom is the fixed-point denominator for quorum and approval
// thresholds: 10000 basis points = 100%.
const BasisPointDenom = 10000

type ProposalStatus uint8

const (
	Pending ProposalStatus = iota
	Active
	Ended
	Finalized
	Cancelled
)

func (s ProposalStatus) String() string {
	switch s {
	case Pending:
		return "pending"
	case Active:
		return "active"
	case Ended:
		return "ended"
	case Finalized:
		return "finalized"
	case Cancelled:
		return "cancelled"
	}
	return "unknown"
}

type VotingMechanism uint8

const (
	// Simple means one address one vote, stake is ignored
	Simple VotingMechanism = iota

	// Weighted means effective power equals raw stake
	Weighted

	// Quadratic means effective power is the integer square root of raw stake
	Quadratic
)

func (m VotingMechanism) Valid() bool {
	return m <= Quadratic
}

func (m VotingMechanism) String() string {
	switch m {
	case Simple:
		return "simple"
	case Weighted:
		return "weighted"
	case Quadratic:
		return "quadratic"
	}
	return "unknown"
}

// ParseMechanism maps a mechanism tag to its enum value. Unknown tags are
// rejected here, at proposal creation, never at vote time.
func ParseMechanism(tag string) (VotingMechanism, error) {
	switch tag {
	case "simple":
		return Simple, nil
	case "weighted":
		return Weighted, nil
	case "quadratic":
		return Quadratic, nil
	}
	return 0, ErrInvalidVotingType
}

type Proposal struct {
	ID          uint64
	Creator     common.Address
	Title       string
	Description string
	Mechanism   VotingMechanism

	// voting window boundaries, compared against the caller-supplied clock
	CreatedAt uint64
	StartTime uint64
	EndTime   uint64

	OptionCount uint32
	TotalVotes  uint64

	// thresholds in basis points, 10000 = 100%
	QuorumBP   uint64
	ApprovalBP uint64

	Status ProposalStatus

	// Winner is nil until finalization, and stays nil when no option clears
	// the approval threshold or quorum fails.
	Winner *uint32

	// Override is set when the creator asserted the winner manually instead
	// of letting it be computed from the tallies.
	Override *OverrideRecord

	// Voters records voting order for enumeration; its length always equals
	// TotalVotes.
	Voters []common.Address
}

type Option struct {
	ProposalID uint64
	Index      uint32
	Name       string
	VoteCount  uint64
	VotePower  uint64
}

type Vote struct {
	ProposalID    uint64
	Voter         common.Address
	Option        uint32
	Power         uint64
	Timestamp     uint64
	ViaDelegation bool
}

type Delegation struct {
	Delegator common.Address
	Delegate  common.Address
	Since     uint64
	Active    bool
}

// OverrideRecord is the audit trail entry written when a creator declares a
// winner manually rather than accepting the computed result.
type OverrideRecord struct {
	ID        string
	Caller    common.Address
	Option    uint32
	Timestamp uint64
}

// Results is the read-only tally projection for one proposal. Before
// finalization the tallies are provisional.
type Results struct {
	ProposalID uint64
	Status     ProposalStatus
	TotalVotes uint64
	TotalPower uint64
	Winner     *uint32
	Options    []Option
}

// PlatformTotals aggregates activity across all proposals.
type PlatformTotals struct {
	Proposals   uint64
	Votes       uint64
	Delegations uint64
}

// Limits bounds user-supplied text and option counts.
type Limits struct {
	MaxOptions    uint32
	MaxTitle      int
	MaxDesc       int
	MaxOptionName int
}

func DefaultLimits() Limits {
	return Limits{
		MaxOptions:    10,
		MaxTitle:      256,
		MaxDesc:       4096,
		MaxOptionName: 128,
	}
}
