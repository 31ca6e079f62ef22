package types

import "fmt"

type ProposalKind uint8

const (
	ProposalKindInternal ProposalKind = 1
	ProposalKindExternal ProposalKind = 2
)

func (k ProposalKind) String() string {
	switch k {
	case ProposalKindInternal:
		return "internal"
	case ProposalKindExternal:
		return "external"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// ProposalState only ever moves forward:
// Proposed -> TransitionRequested -> VotingActive -> Accepted|Rejected.
type ProposalState uint64

const (
	ProposalStateProposed            ProposalState = 1
	ProposalStateTransitionRequested ProposalState = 2
	ProposalStateVotingActive        ProposalState = 3
	ProposalStateAccepted            ProposalState = 4
	ProposalStateRejected            ProposalState = 5
)

func (s ProposalState) Resolved() bool {
	return s == ProposalStateAccepted || s == ProposalStateRejected
}

func (s ProposalState) String() string {
	switch s {
	case ProposalStateProposed:
		return "proposed"
	case ProposalStateTransitionRequested:
		return "transition_requested"
	case ProposalStateVotingActive:
		return "voting_active"
	case ProposalStateAccepted:
		return "accepted"
	case ProposalStateRejected:
		return "rejected"
	}
	return fmt.Sprintf("state(%d)", uint64(s))
}

type Category uint8

type MilestoneType uint8

type Milestone struct {
	Type               MilestoneType `json:"type"`
	ProgressPercentage uint8         `json:"progressPercentage"`
}

// VoteConfiguration is attached to a proposal at creation and never changes.
// Threshold is a percentage of the weight actually cast.
type VoteConfiguration struct {
	MemberQuorum      uint64 `json:"memberQuorum"`
	ReputationQuorum  uint64 `json:"reputationQuorum"`
	Threshold         uint64 `json:"threshold"`
	Timeout           uint64 `json:"timeout"`
	VoterStakingLimit uint64 `json:"voterStakingLimit"`
}

func (c VoteConfiguration) Validate() error {
	if c.Threshold > 100 {
		return fmt.Errorf("%w: threshold %d above 100", ErrInvalidArgument, c.Threshold)
	}
	if c.VoterStakingLimit == 0 {
		return fmt.Errorf("%w: voter staking limit is zero", ErrInvalidArgument)
	}
	return nil
}

// VoteConfigurationFromSlice accepts the positional
// [memberQuorum, reputationQuorum, threshold, timeout, voterStakingLimit] form.
func VoteConfigurationFromSlice(v []uint64) (VoteConfiguration, error) {
	if len(v) != 5 {
		return VoteConfiguration{}, fmt.Errorf("%w: vote configuration needs 5 values, got %d", ErrInvalidArgument, len(v))
	}
	return VoteConfiguration{
		MemberQuorum:      v[0],
		ReputationQuorum:  v[1],
		Threshold:         v[2],
		Timeout:           v[3],
		VoterStakingLimit: v[4],
	}, nil
}

// VoteResult is what the voting engine reports back to the lifecycle engine.
type VoteResult struct {
	ProposalID    uint64 `json:"proposalId"`
	Accepted      bool   `json:"accepted"`
	ForWeight     uint64 `json:"forWeight"`
	AgainstWeight uint64 `json:"againstWeight"`
	Voters        uint64 `json:"voters"`
}

// SystemParams are the governance parameters internal proposals can change.
type SystemParams struct {
	PolicingRatioFloor     uint8  `json:"policingRatioFloor"`
	ReputationMintingValue uint64 `json:"reputationMintingValue"`
	Cooldown               uint64 `json:"cooldown"`
}
