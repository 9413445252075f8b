package config

// SlingConfig represents the structure of sling.toml
type SlingConfig struct {
	// Default network name when --network is not given
	DefaultNetwork string `toml:"default_network,omitempty"`
	// Default signer name when --signer is not given
	DefaultSigner string `toml:"default_signer,omitempty"`

	Networks map[string]NetworkConfig `toml:"networks,omitempty"`
	Signers  map[string]SignerConfig  `toml:"signers,omitempty"`
	Compiler *CompilerFileConfig      `toml:"compiler,omitempty"`
	RPC      *RPCFileConfig           `toml:"rpc,omitempty"`
}

// NetworkConfig is a [networks.<name>] section.
type NetworkConfig struct {
	RPCURL         string `toml:"rpc_url"`
	ChainID        uint64 `toml:"chain_id"`
	FeePolicy      string `toml:"fee_policy,omitempty"`
	GasPrice       string `toml:"gas_price,omitempty"`
	EVMVersion     string `toml:"evm_version,omitempty"`
	BlockTime      string `toml:"block_time,omitempty"`
	MinCodeSize    int    `toml:"min_code_size,omitempty"`
	DeployGasLimit uint64 `toml:"deploy_gas_limit,omitempty"`
	CallGasLimit   uint64 `toml:"call_gas_limit,omitempty"`
	ConfirmTimeout string `toml:"confirm_timeout,omitempty"`
}

// SignerConfig is a [signers.<name>] section.
type SignerConfig struct {
	// PrivateKey may reference environment variables, e.g. "${DEV_PRIVATE_KEYS}"
	PrivateKey string `toml:"private_key"`
}

// CompilerFileConfig is the [compiler] section.
type CompilerFileConfig struct {
	Solc       string `toml:"solc,omitempty"`
	EVMVersion string `toml:"evm_version,omitempty"`
	Optimizer  *bool  `toml:"optimizer,omitempty"`
	Runs       int    `toml:"runs,omitempty"`
	Timeout    string `toml:"timeout,omitempty"`
}

// RPCFileConfig is the [rpc] section.
type RPCFileConfig struct {
	MaxAttempts     int    `toml:"max_attempts,omitempty"`
	InitialInterval string `toml:"initial_interval,omitempty"`
	MaxInterval     string `toml:"max_interval,omitempty"`
	RequestTimeout  string `toml:"request_timeout,omitempty"`
}
