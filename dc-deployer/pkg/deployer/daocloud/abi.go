package daocloud

// ContractABI is the part of the DaoCloud ABI the deployer and the
// integration tests call.
const ContractABI = `[
	{"type":"function","name":"initialize","inputs":[],"outputs":[],"stateMutability":"nonpayable"},
	{"type":"function","name":"initialize","inputs":[{"name":"baseURI","type":"string"},{"name":"externalURL","type":"string"}],"outputs":[],"stateMutability":"nonpayable"},
	{"type":"function","name":"createTable","inputs":[],"outputs":[],"stateMutability":"payable"},
	{"type":"function","name":"touch","inputs":[{"name":"path","type":"string"},{"name":"name","type":"string"},{"name":"url","type":"string"}],"outputs":[],"stateMutability":"nonpayable"},
	{"type":"function","name":"mv","inputs":[{"name":"from","type":"string"},{"name":"to","type":"string"}],"outputs":[],"stateMutability":"nonpayable"},
	{"type":"function","name":"mv","inputs":[{"name":"from","type":"string"},{"name":"to","type":"string"},{"name":"name","type":"string"}],"outputs":[],"stateMutability":"nonpayable"},
	{"type":"function","name":"rm","inputs":[{"name":"path","type":"string"}],"outputs":[],"stateMutability":"nonpayable"},
	{"type":"function","name":"safeMint","inputs":[{"name":"to","type":"address"}],"outputs":[{"name":"","type":"uint256"}],"stateMutability":"payable"},
	{"type":"function","name":"makeMove","inputs":[{"name":"tokenId","type":"uint256"},{"name":"x","type":"uint256"},{"name":"y","type":"uint256"}],"outputs":[],"stateMutability":"nonpayable"},
	{"type":"function","name":"proxiableUUID","inputs":[],"outputs":[{"name":"","type":"bytes32"}],"stateMutability":"view"},
	{"type":"function","name":"upgradeToAndCall","inputs":[{"name":"newImplementation","type":"address"},{"name":"data","type":"bytes"}],"outputs":[],"stateMutability":"payable"},
	{"type":"event","name":"Transfer","anonymous":false,"inputs":[{"name":"from","type":"address","indexed":true},{"name":"to","type":"address","indexed":true},{"name":"tokenId","type":"uint256","indexed":true}]},
	{"type":"event","name":"MakeMove","anonymous":false,"inputs":[{"name":"caller","type":"address","indexed":true},{"name":"tokenId","type":"uint256","indexed":true},{"name":"x","type":"uint256","indexed":false},{"name":"y","type":"uint256","indexed":false}]}
]`

const (
	SigInitialize     = "initialize()"
	SigInitializeURIs = "initialize(string,string)"
	SigCreateTable    = "createTable()"
	SigTouch          = "touch(string,string,string)"
	SigMv             = "mv(string,string)"
	SigMvRename       = "mv(string,string,string)"
	SigRm             = "rm(string)"
	SigSafeMint       = "safeMint(address)"
	SigMakeMove       = "makeMove(uint256,uint256,uint256)"
)
