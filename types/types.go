package types

import (
	"fmt"
	"strconv"

	abci "github.com/cometbft/cometbft/abci/types"
	"github.com/ethereum/go-ethereum/common"
)

const (
	EventMemberType         = "member"
	EventReputationType     = "reputation"
	EventRoleType           = "role"
	EventProposalType       = "proposal"
	EventTransitionType     = "transition_vote"
	EventVoteType           = "vote"
	EventSettleProposalType = "settle_proposal"
)

type EventMember struct {
	Address string `json:"address"`
	Member  bool   `json:"member"`
}

func EncodeEventMember(event *EventMember) abci.Event {
	return abci.Event{
		Type: EventMemberType,
		Attributes: []abci.EventAttribute{
			{Key: "address", Value: event.Address, Index: true},
			{Key: "member", Value: strconv.FormatBool(event.Member), Index: false},
		},
	}
}

func DecodeEventMember(originEvent abci.Event) *EventMember {
	event := &EventMember{}
	for _, v := range originEvent.Attributes {
		switch v.Key {
		case "address":
			event.Address = v.Value
		case "member":
			member, err := strconv.ParseBool(v.Value)
			if err != nil {
				return nil
			}
			event.Member = member
		}
	}
	return event
}

// EventReputation reports a mint (positive) or burn of reputation.
type EventReputation struct {
	Address string `json:"address"`
	Amount  uint64 `json:"amount"`
	Mint    bool   `json:"mint"`
	Balance uint64 `json:"balance"`
}

func EncodeEventReputation(event *EventReputation) abci.Event {
	return abci.Event{
		Type: EventReputationType,
		Attributes: []abci.EventAttribute{
			{Key: "address", Value: event.Address, Index: true},
			{Key: "amount", Value: fmt.Sprintf("%v", event.Amount), Index: false},
			{Key: "mint", Value: strconv.FormatBool(event.Mint), Index: false},
			{Key: "balance", Value: fmt.Sprintf("%v", event.Balance), Index: false},
		},
	}
}

func DecodeEventReputation(originEvent abci.Event) *EventReputation {
	event := &EventReputation{}
	for _, v := range originEvent.Attributes {
		switch v.Key {
		case "address":
			event.Address = v.Value
		case "amount":
			amount, err := strconv.ParseUint(v.Value, 10, 64)
			if err != nil {
				return nil
			}
			event.Amount = amount
		case "mint":
			mint, err := strconv.ParseBool(v.Value)
			if err != nil {
				return nil
			}
			event.Mint = mint
		case "balance":
			balance, err := strconv.ParseUint(v.Value, 10, 64)
			if err != nil {
				return nil
			}
			event.Balance = balance
		}
	}
	return event
}

type EventRole struct {
	Role    string `json:"role"`
	Address string `json:"address"`
	Grant   bool   `json:"grant"`
}

func EncodeEventRole(event *EventRole) abci.Event {
	return abci.Event{
		Type: EventRoleType,
		Attributes: []abci.EventAttribute{
			{Key: "role", Value: event.Role, Index: true},
			{Key: "address", Value: event.Address, Index: true},
			{Key: "grant", Value: strconv.FormatBool(event.Grant), Index: false},
		},
	}
}

func DecodeEventRole(originEvent abci.Event) *EventRole {
	event := &EventRole{}
	for _, v := range originEvent.Attributes {
		switch v.Key {
		case "role":
			event.Role = v.Value
		case "address":
			event.Address = v.Value
		case "grant":
			grant, err := strconv.ParseBool(v.Value)
			if err != nil {
				return nil
			}
			event.Grant = grant
		}
	}
	return event
}

type EventProposal struct {
	ProposalIndex   uint64 `json:"proposalIndex"`
	Kind            uint64 `json:"kind"`
	ProposerAddress string `json:"proposerAddress"`
	Name            string `json:"name"`
	CreatedAt       uint64 `json:"createdAt"`
	Status          uint64 `json:"status"`
}

func EncodeEventProposal(event *EventProposal) abci.Event {
	return abci.Event{
		Type: EventProposalType,
		Attributes: []abci.EventAttribute{
			{Key: "proposal", Value: fmt.Sprintf("%v", event.ProposalIndex), Index: true},
			{Key: "kind", Value: fmt.Sprintf("%v", event.Kind), Index: false},
			{Key: "proposerAddress", Value: event.ProposerAddress, Index: true},
			{Key: "name", Value: event.Name, Index: false},
			{Key: "createdAt", Value: fmt.Sprintf("%v", event.CreatedAt), Index: false},
			{Key: "status", Value: fmt.Sprintf("%v", event.Status), Index: false},
		},
	}
}

func DecodeEventProposal(originEvent abci.Event) *EventProposal {
	event := &EventProposal{}
	for _, v := range originEvent.Attributes {
		switch v.Key {
		case "proposal":
			proposal, err := strconv.ParseUint(v.Value, 10, 64)
			if err != nil {
				return nil
			}
			event.ProposalIndex = proposal
		case "kind":
			kind, err := strconv.ParseUint(v.Value, 10, 64)
			if err != nil {
				return nil
			}
			event.Kind = kind
		case "proposerAddress":
			event.ProposerAddress = v.Value
		case "name":
			event.Name = v.Value
		case "createdAt":
			createdAt, err := strconv.ParseUint(v.Value, 10, 64)
			if err != nil {
				return nil
			}
			event.CreatedAt = createdAt
		case "status":
			status, err := strconv.ParseUint(v.Value, 10, 64)
			if err != nil {
				return nil
			}
			event.Status = status
		}
	}
	return event
}

type EventTransition struct {
	Proposal uint64 `json:"proposal"`
	Stage    uint64 `json:"stage"`
	Caller   string `json:"caller"`
	OpenedAt uint64 `json:"openedAt"`
}

func EncodeEventTransition(event *EventTransition) abci.Event {
	return abci.Event{
		Type: EventTransitionType,
		Attributes: []abci.EventAttribute{
			{Key: "proposal", Value: fmt.Sprintf("%v", event.Proposal), Index: true},
			{Key: "stage", Value: fmt.Sprintf("%v", event.Stage), Index: false},
			{Key: "caller", Value: event.Caller, Index: false},
			{Key: "openedAt", Value: fmt.Sprintf("%v", event.OpenedAt), Index: false},
		},
	}
}

func DecodeEventTransition(originEvent abci.Event) *EventTransition {
	event := &EventTransition{}
	for _, v := range originEvent.Attributes {
		switch v.Key {
		case "proposal":
			proposal, err := strconv.ParseUint(v.Value, 10, 64)
			if err != nil {
				return nil
			}
			event.Proposal = proposal
		case "stage":
			stage, err := strconv.ParseUint(v.Value, 10, 64)
			if err != nil {
				return nil
			}
			event.Stage = stage
		case "caller":
			event.Caller = v.Value
		case "openedAt":
			openedAt, err := strconv.ParseUint(v.Value, 10, 64)
			if err != nil {
				return nil
			}
			event.OpenedAt = openedAt
		}
	}
	return event
}

type EventVote struct {
	Proposal uint64 `json:"proposal"`
	Voter    string `json:"voter"`
	Weight   uint64 `json:"weight"`
	Support  bool   `json:"support"`
}

func EncodeEventVote(event *EventVote) abci.Event {
	return abci.Event{
		Type: EventVoteType,
		Attributes: []abci.EventAttribute{
			{Key: "proposal", Value: fmt.Sprintf("%v", event.Proposal), Index: true},
			{Key: "voter", Value: event.Voter, Index: true},
			{Key: "weight", Value: fmt.Sprintf("%v", event.Weight), Index: false},
			{Key: "support", Value: strconv.FormatBool(event.Support), Index: false},
		},
	}
}

func DecodeEventVote(originEvent abci.Event) *EventVote {
	event := &EventVote{}
	for _, v := range originEvent.Attributes {
		switch v.Key {
		case "proposal":
			proposal, err := strconv.ParseUint(v.Value, 10, 64)
			if err != nil {
				return nil
			}
			event.Proposal = proposal
		case "voter":
			event.Voter = v.Value
		case "weight":
			weight, err := strconv.ParseUint(v.Value, 10, 64)
			if err != nil {
				return nil
			}
			event.Weight = weight
		case "support":
			support, err := strconv.ParseBool(v.Value)
			if err != nil {
				return nil
			}
			event.Support = support
		}
	}
	return event
}

type EventSettleProposal struct {
	Proposal      uint64 `json:"proposal"`
	State         int64  `json:"state"`
	ForWeight     uint64 `json:"forWeight"`
	AgainstWeight uint64 `json:"againstWeight"`
	Voters        uint64 `json:"voters"`
}

func NewEventSettleProposal(res VoteResult) *EventSettleProposal {
	state := ProposalStateRejected
	if res.Accepted {
		state = ProposalStateAccepted
	}
	return &EventSettleProposal{
		Proposal:      res.ProposalID,
		State:         int64(state),
		ForWeight:     res.ForWeight,
		AgainstWeight: res.AgainstWeight,
		Voters:        res.Voters,
	}
}

func EncodeEventSettleProposal(event *EventSettleProposal) abci.Event {
	return abci.Event{
		Type: EventSettleProposalType,
		Attributes: []abci.EventAttribute{
			{Key: "proposal", Value: fmt.Sprintf("%v", event.Proposal), Index: true},
			{Key: "state", Value: fmt.Sprintf("%v", event.State), Index: false},
			{Key: "for", Value: fmt.Sprintf("%v", event.ForWeight), Index: false},
			{Key: "against", Value: fmt.Sprintf("%v", event.AgainstWeight), Index: false},
			{Key: "voters", Value: fmt.Sprintf("%v", event.Voters), Index: false},
		},
	}
}

func DecodeEventSettleProposal(originEvent abci.Event) *EventSettleProposal {
	event := &EventSettleProposal{}
	for _, v := range originEvent.Attributes {
		switch v.Key {
		case "proposal":
			proposal, err := strconv.ParseUint(v.Value, 10, 64)
			if err != nil {
				return nil
			}
			event.Proposal = proposal
		case "state":
			state, err := strconv.ParseInt(v.Value, 10, 64)
			if err != nil {
				return nil
			}
			event.State = state
		case "for":
			w, err := strconv.ParseUint(v.Value, 10, 64)
			if err != nil {
				return nil
			}
			event.ForWeight = w
		case "against":
			w, err := strconv.ParseUint(v.Value, 10, 64)
			if err != nil {
				return nil
			}
			event.AgainstWeight = w
		case "voters":
			n, err := strconv.ParseUint(v.Value, 10, 64)
			if err != nil {
				return nil
			}
			event.Voters = n
		}
	}
	return event
}

// AddressString renders a principal the way events and queries carry it.
func AddressString(addr common.Address) string {
	return addr.Hex()
}
