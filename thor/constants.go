package thor

// Epoch tags the soft-fork boundary an account chain has reached.
type Epoch uint8

const (
	EpochV0 Epoch = iota
	EpochV1
)

// MaxEpoch returns the higher of two epochs, used when a receive promotes the
// destination account's epoch to that of the pending credit.
func MaxEpoch(a, b Epoch) Epoch {
	if a > b {
		return a
	}
	return b
}

func (e Epoch) String() string {
	switch e {
	case EpochV0:
		return "v0"
	case EpochV1:
		return "v1"
	default:
		return "unknown"
	}
}

// BurnAccount is the fixed all-zero account that can never be opened.
var BurnAccount Address

// EpochLinkMarker is the fixed link value that, on a state block signed
// by the designated epoch authority with unchanged balance, marks an
// epoch-upgrade transition rather than a send/receive.
var EpochLinkMarker = Bytes32{
	0x65, 0x70, 0x6f, 0x63, 0x68, 0x20, 0x76, 0x31,
	0x20, 0x62, 0x6c, 0x6f, 0x63, 0x6b, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x01,
}

// GenesisAmount is the total currency supply, 2^128 - 1.
func GenesisAmount() Amount {
	var a Amount
	for i := range a {
		a[i] = 0xff
	}
	return a
}

// Quorum / election tuning constants.
const (
	DefaultQuorumPercent       = 67
	OnlineWeightMinimumPercent = 50
	MaxElectionCandidates      = 10
	PublishWeightFloorPercent  = 10

	CooldownTier1Percent = 5  // >=5% online stake: 1s cooldown
	CooldownTier2Percent = 1  // >=1%: 5s
	CooldownTier3Percent = 0  // >=0.1% is handled specially, see VoteWeightTierMinPermille

	VoteWeightTierMinPermille = 1 // 0.1% expressed in permille
)

// MaxChainLength is an upper bound on account chain length. No code in
// this module reads it: the ledger package bounds its backward
// representative walk with its own ledger.MaxChainLength (2^20).
const MaxChainLength = 1 << 32
