package core

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
)

// Snapshot layout in the key-value store. Every entity is one JSON blob;
// meta keys carry the counters needed to enumerate them on reload, since
// the store only offers point reads.
const (
	keyNextProposalID = "meta/nextProposalID"
	keyPaused         = "meta/paused"
	keyDelegators     = "meta/delegators"
)

func proposalKey(id uint64) []byte {
	return []byte(fmt.Sprintf("p/%d", id))
}

func optionKey(id uint64, index uint32) []byte {
	return []byte(fmt.Sprintf("o/%d/%d", id, index))
}

func voteKey(id uint64, voter common.Address) []byte {
	return []byte(fmt.Sprintf("v/%d/%s", id, voter.Hex()))
}

func delegationKey(delegator common.Address) []byte {
	return []byte(fmt.Sprintf("d/%s", delegator.Hex()))
}

func (l *Ledger) persistProposal(p *Proposal) {
	l.put(proposalKey(p.ID), p)
}

func (l *Ledger) persistOption(o *Option) {
	l.put(optionKey(o.ProposalID, o.Index), o)
}

func (l *Ledger) persistVote(v *Vote) {
	l.put(voteKey(v.ProposalID, v.Voter), v)
}

func (l *Ledger) persistDelegation(d *Delegation) {
	l.put(delegationKey(d.Delegator), d)
}

func (l *Ledger) persistDelegatorIndex() {
	l.put([]byte(keyDelegators), l.delegations.Delegators())
}

func (l *Ledger) persistMeta() {
	if l.db == nil {
		return
	}

	next := make([]byte, 8)
	binary.BigEndian.PutUint64(next, l.nextID)
	l.db.Put([]byte(keyNextProposalID), next)

	paused := []byte{0}
	if l.paused {
		paused[0] = 1
	}
	l.db.Put([]byte(keyPaused), paused)
}

func (l *Ledger) put(key []byte, value any) {
	if l.db == nil {
		return
	}

	data, err := json.Marshal(value)
	if err != nil {
		l.logger.Errorf("marshal snapshot entry %s: %s", key, err)
		return
	}
	l.db.Put(key, data)
}

// load rebuilds the in-memory state from the snapshot store.
func (l *Ledger) load() error {
	if data := l.db.Get([]byte(keyNextProposalID)); data != nil {
		l.nextID = binary.BigEndian.Uint64(data)
	}
	if data := l.db.Get([]byte(keyPaused)); len(data) == 1 {
		l.paused = data[0] == 1
	}

	for id := uint64(1); id <= l.nextID; id++ {
		data := l.db.Get(proposalKey(id))
		if data == nil {
			return errors.Wrapf(ErrProposalNotFound, "snapshot missing proposal %d", id)
		}

		p := &Proposal{}
		if err := json.Unmarshal(data, p); err != nil {
			return errors.Wrapf(err, "unmarshal proposal %d", id)
		}
		l.proposals[id] = p

		opts := make([]*Option, 0, p.OptionCount)
		for idx := uint32(0); idx < p.OptionCount; idx++ {
			od := l.db.Get(optionKey(id, idx))
			if od == nil {
				return errors.Wrapf(ErrInvalidOption, "snapshot missing option %d/%d", id, idx)
			}
			o := &Option{}
			if err := json.Unmarshal(od, o); err != nil {
				return errors.Wrapf(err, "unmarshal option %d/%d", id, idx)
			}
			opts = append(opts, o)
		}
		l.options[id] = opts

		votes := make(map[common.Address]*Vote, len(p.Voters))
		for _, voter := range p.Voters {
			vd := l.db.Get(voteKey(id, voter))
			if vd == nil {
				return errors.Wrapf(ErrVoteNotFound, "snapshot missing vote %d/%s", id, voter.Hex())
			}
			v := &Vote{}
			if err := json.Unmarshal(vd, v); err != nil {
				return errors.Wrapf(err, "unmarshal vote %d/%s", id, voter.Hex())
			}
			votes[voter] = v
		}
		l.votes[id] = votes
	}

	if data := l.db.Get([]byte(keyDelegators)); data != nil {
		var delegators []common.Address
		if err := json.Unmarshal(data, &delegators); err != nil {
			return errors.Wrap(err, "unmarshal delegator index")
		}
		for _, addr := range delegators {
			dd := l.db.Get(delegationKey(addr))
			if dd == nil {
				continue
			}
			d := &Delegation{}
			if err := json.Unmarshal(dd, d); err != nil {
				return errors.Wrapf(err, "unmarshal delegation %s", addr.Hex())
			}
			l.delegations.restore(d)
		}
	}

	l.logger.Infof("ledger snapshot loaded: %d proposals, %d delegations", len(l.proposals), l.delegations.Len())
	return nil
}
