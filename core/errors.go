package core

import "errors"

var (
	// ErrOwnerOnly indicates the caller is not the platform owner
	ErrOwnerOnly = errors.New("caller is not the owner")

	// ErrNotAuthorized indicates the caller lacks the required capability
	ErrNotAuthorized = errors.New("caller is not authorized")

	// ErrProposalNotFound indicates the proposal does not exist
	ErrProposalNotFound = errors.New("proposal not found")

	// ErrInvalidOption indicates the option index is out of range
	ErrInvalidOption = errors.New("invalid option")

	// ErrNoDelegation indicates the delegator has no active delegation
	ErrNoDelegation = errors.New("no active delegation")

	// ErrInvalidAmount indicates a zero or out-of-bounds input value
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrInvalidThreshold indicates a threshold outside [0, 10000] basis points
	ErrInvalidThreshold = errors.New("invalid threshold")

	// ErrInvalidVotingType indicates an unknown voting mechanism tag
	ErrInvalidVotingType = errors.New("invalid voting type")

	// ErrVotingNotStarted indicates the start boundary has not been reached
	ErrVotingNotStarted = errors.New("voting not started")

	// ErrVotingEnded indicates the end boundary has passed
	ErrVotingEnded = errors.New("voting ended")

	// ErrProposalNotActive indicates the proposal is not accepting votes
	ErrProposalNotActive = errors.New("proposal not active")

	// ErrAlreadyFinalized indicates the proposal result is already immutable
	ErrAlreadyFinalized = errors.New("proposal already finalized")

	// ErrNotFinalized indicates the proposal has no final result yet
	ErrNotFinalized = errors.New("proposal not finalized")

	// ErrAlreadyVoted indicates a second vote under the same (proposal, voter) key
	ErrAlreadyVoted = errors.New("already voted")

	// ErrSelfDelegation indicates a delegator naming itself as delegate
	ErrSelfDelegation = errors.New("self delegation")

	// ErrCircularDelegation indicates a cycle in the delegation graph
	ErrCircularDelegation = errors.New("circular delegation")

	// ErrNoVotingPower indicates the effective power computed to zero
	ErrNoVotingPower = errors.New("no voting power")

	// ErrSystemPaused indicates the owner has paused all mutating operations
	ErrSystemPaused = errors.New("system paused")

	// ErrInvalidTransition indicates a status transition outside the allowed graph
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrVoteNotFound indicates no vote record under the requested key
	ErrVoteNotFound = errors.New("vote not found")
)
