package indexer

// sqlite models

type Height struct {
	Id     uint64 `gorm:"primary_key" json:"id"`
	Height uint64 `json:"height"`
}

type Member struct {
	Address string `gorm:"primary_key" json:"address"`
	Member  bool   `json:"member"`
	Balance uint64 `json:"balance"`
	Height  uint64 `json:"height"`
}

type RoleChange struct {
	Id      uint64 `gorm:"primary_key;AUTO_INCREMENT" json:"id"`
	Role    string `json:"role"`
	Address string `json:"address"`
	Grant   bool   `json:"grant"`
	Height  uint64 `json:"height"`
}

// Proposal ids start at zero, so they are not the row key.
type Proposal struct {
	Id               uint64 `gorm:"primary_key;AUTO_INCREMENT" json:"-"`
	ProposalId       uint64 `gorm:"unique_index" json:"id"`
	Kind             uint64 `json:"kind"`
	ProposerAddress  string `gorm:"index" json:"proposer_address"`
	Name             string `json:"name"`
	Status           uint64 `gorm:"index" json:"status"`
	CreateTime       uint64 `json:"created_at"`
	NewHeight        uint64 `json:"new_height"`
	Stage            uint64 `json:"stage"`
	OpenedAt         uint64 `json:"opened_at"`
	TransitionHeight uint64 `json:"transition_height"`
	SettleHeight     uint64 `json:"settle_height"`
	ForWeight        uint64 `json:"for_weight"`
	AgainstWeight    uint64 `json:"against_weight"`
	Voters           uint64 `json:"voters"`
}

type Vote struct {
	Id       uint64 `gorm:"primary_key;AUTO_INCREMENT" json:"id"`
	Proposal uint64 `gorm:"index" json:"proposal"`
	Voter    string `gorm:"index" json:"voter"`
	Weight   uint64 `json:"weight"`
	Support  bool   `json:"support"`
	Height   uint64 `json:"height"`
}
