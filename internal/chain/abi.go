package chain

// Entry points on the Confidee contract that take the acting wallet as an
// explicit argument, so the relayer can sign while the user is recorded as
// the actor.
const (
	MethodCreateSecretFor = "createSecretFor" // (string content, address user)
	MethodLikeSecretFor   = "likeSecretFor"   // (uint256 secretId, address user)
	MethodUnlikeSecretFor = "unlikeSecretFor" // (uint256 secretId, address user)
	MethodAddCommentFor   = "addCommentFor"   // (uint256 secretId, string content, address user)

	EventSecretCreated = "SecretCreated"
)

const ContractABI = `[
  {
    "type": "function",
    "name": "createSecretFor",
    "stateMutability": "nonpayable",
    "inputs": [
      {"name": "content", "type": "string"},
      {"name": "user", "type": "address"}
    ],
    "outputs": [{"name": "", "type": "uint256"}]
  },
  {
    "type": "function",
    "name": "likeSecretFor",
    "stateMutability": "nonpayable",
    "inputs": [
      {"name": "secretId", "type": "uint256"},
      {"name": "user", "type": "address"}
    ],
    "outputs": []
  },
  {
    "type": "function",
    "name": "unlikeSecretFor",
    "stateMutability": "nonpayable",
    "inputs": [
      {"name": "secretId", "type": "uint256"},
      {"name": "user", "type": "address"}
    ],
    "outputs": []
  },
  {
    "type": "function",
    "name": "addCommentFor",
    "stateMutability": "nonpayable",
    "inputs": [
      {"name": "secretId", "type": "uint256"},
      {"name": "content", "type": "string"},
      {"name": "user", "type": "address"}
    ],
    "outputs": []
  },
  {
    "type": "event",
    "name": "SecretCreated",
    "anonymous": false,
    "inputs": [
      {"name": "secretId", "type": "uint256", "indexed": true},
      {"name": "author", "type": "address", "indexed": true},
      {"name": "content", "type": "string", "indexed": false},
      {"name": "timestamp", "type": "uint256", "indexed": false}
    ]
  }
]`
