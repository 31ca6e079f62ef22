package state

import (
	"github.com/calehh/mvpr-app/reputation"
	"github.com/calehh/mvpr-app/tx"
	"github.com/calehh/mvpr-app/types"
	"github.com/ethereum/go-ethereum/common"
)

func (s *State) initialized() error {
	if s.ledger == nil {
		return ErrStateNotInitialized
	}
	return nil
}

func (s *State) SetMember(signer common.Address, wtx *tx.MemberTx, member bool) (event *types.EventMember, err error) {
	if err = s.initialized(); err != nil {
		return
	}
	s.logger.Debug("apply member", "signer", signer.Hex(), "address", wtx.Address.Hex(), "member", member, "height", s.header.Height)
	if member {
		err = s.ledger.AddMember(signer, wtx.Address)
	} else {
		err = s.ledger.RemoveMember(signer, wtx.Address)
	}
	if err != nil {
		return nil, err
	}
	event = &types.EventMember{
		Address: types.AddressString(wtx.Address),
		Member:  member,
	}
	return
}

func (s *State) ChangeReputation(signer common.Address, wtx *tx.ReputationTx, mint bool) (event *types.EventReputation, err error) {
	if err = s.initialized(); err != nil {
		return
	}
	s.logger.Debug("apply reputation", "signer", signer.Hex(), "address", wtx.Address.Hex(), "amount", wtx.Amount, "mint", mint, "height", s.header.Height)
	if mint {
		err = s.ledger.Mint(signer, wtx.Address, wtx.Amount)
	} else {
		err = s.ledger.Burn(signer, wtx.Address, wtx.Amount)
	}
	if err != nil {
		return nil, err
	}
	event = &types.EventReputation{
		Address: types.AddressString(wtx.Address),
		Amount:  wtx.Amount,
		Mint:    mint,
		Balance: s.ledger.BalanceOf(wtx.Address),
	}
	return
}

func (s *State) ChangeRole(signer common.Address, wtx *tx.RoleTx, grant bool) (event *types.EventRole, err error) {
	if err = s.initialized(); err != nil {
		return
	}
	role, err := reputation.ParseRole(wtx.Role)
	if err != nil {
		return nil, err
	}
	if grant {
		err = s.ledger.Grant(signer, role, wtx.Address)
	} else {
		err = s.ledger.Revoke(signer, role, wtx.Address)
	}
	if err != nil {
		return nil, err
	}
	event = &types.EventRole{
		Role:    string(role),
		Address: types.AddressString(wtx.Address),
		Grant:   grant,
	}
	return
}

func (s *State) CreateInternalProposal(signer common.Address, wtx *tx.InternalProposalTx) (event *types.EventProposal, err error) {
	if err = s.initialized(); err != nil {
		return
	}
	s.logger.Debug("apply internal proposal", "signer", signer.Hex(), "height", s.header.Height)
	id, err := s.lifecycle.CreateInternalProposal(signer, wtx.PolicingRatio, wtx.ReputationMintingValue, wtx.VoteConfiguration)
	if err != nil {
		return nil, err
	}
	p, err := s.lifecycle.InternalProposal(id)
	if err != nil {
		return nil, err
	}
	event = &types.EventProposal{
		ProposalIndex:   id,
		Kind:            uint64(types.ProposalKindInternal),
		ProposerAddress: types.AddressString(signer),
		CreatedAt:       p.CreatedAt,
		Status:          uint64(p.State),
	}
	return
}

func (s *State) CreateProposal(signer common.Address, wtx *tx.ProposalTx) (event *types.EventProposal, err error) {
	if err = s.initialized(); err != nil {
		return
	}
	s.logger.Debug("apply proposal", "signer", signer.Hex(), "name", wtx.Name, "height", s.header.Height)
	id, err := s.lifecycle.CreateProposal(signer, wtx.CreateProposalRequest)
	if err != nil {
		return nil, err
	}
	p, err := s.lifecycle.Proposal(id)
	if err != nil {
		return nil, err
	}
	event = &types.EventProposal{
		ProposalIndex:   id,
		Kind:            uint64(types.ProposalKindExternal),
		ProposerAddress: types.AddressString(signer),
		Name:            p.Name,
		CreatedAt:       p.CreatedAt,
		Status:          uint64(p.State),
	}
	return
}

func (s *State) CallTransitionVote(signer common.Address, wtx *tx.TransitionTx) (event *types.EventTransition, err error) {
	if err = s.initialized(); err != nil {
		return
	}
	s.logger.Debug("apply transition vote", "signer", signer.Hex(), "proposal", wtx.Proposal, "stage", wtx.Stage, "height", s.header.Height)
	if err = s.lifecycle.CallTransitionVote(signer, wtx.Proposal, wtx.Stage); err != nil {
		return nil, err
	}
	t, err := s.voting.Tally(wtx.Proposal)
	if err != nil {
		return nil, err
	}
	event = &types.EventTransition{
		Proposal: wtx.Proposal,
		Stage:    wtx.Stage,
		Caller:   types.AddressString(signer),
		OpenedAt: t.OpenedAt,
	}
	return
}

func (s *State) SubmitVote(signer common.Address, wtx *tx.VoteTx) (event *types.EventVote, err error) {
	if err = s.initialized(); err != nil {
		return
	}
	s.logger.Debug("apply vote", "signer", signer.Hex(), "proposal", wtx.Proposal, "weight", wtx.Weight, "height", s.header.Height)
	if err = s.voting.SubmitTransitionVote(signer, wtx.Proposal, wtx.Weight, wtx.Support); err != nil {
		return nil, err
	}
	event = &types.EventVote{
		Proposal: wtx.Proposal,
		Voter:    types.AddressString(signer),
		Weight:   wtx.Weight,
		Support:  wtx.Support,
	}
	return
}

func (s *State) CalculateVote(signer common.Address, wtx *tx.CalculateTx) (event *types.EventSettleProposal, err error) {
	if err = s.initialized(); err != nil {
		return
	}
	s.logger.Debug("apply calculate vote", "signer", signer.Hex(), "proposal", wtx.Proposal, "height", s.header.Height)
	res, err := s.voting.CalculateVote(wtx.Proposal)
	if err != nil {
		return nil, err
	}
	return types.NewEventSettleProposal(res), nil
}
