package evm

// Contract names as they appear in Foundry artifacts
const (
	MangaNFTName            = "MangaNFT"
	MonthlyDataUploaderName = "MonthlyDataUploader"
)

// MangaNFTABI covers the MangaNFT surface used by the tools
const MangaNFTABI = `[
	{
		"inputs": [
			{"internalType": "string", "name": "uri", "type": "string"},
			{"internalType": "address", "name": "_platformAddress", "type": "address"},
			{"internalType": "address", "name": "_paymentToken", "type": "address"},
			{"internalType": "address", "name": "_monthlyDataUploader", "type": "address"}
		],
		"stateMutability": "nonpayable",
		"type": "constructor"
	},
	{
		"inputs": [
			{"internalType": "address", "name": "to", "type": "address"},
			{"internalType": "uint256", "name": "tokenId", "type": "uint256"},
			{"internalType": "uint256", "name": "amount", "type": "uint256"}
		],
		"name": "freeMint",
		"outputs": [],
		"stateMutability": "nonpayable",
		"type": "function"
	},
	{
		"inputs": [
			{"internalType": "string", "name": "mangaTitleZh", "type": "string"},
			{"internalType": "string", "name": "mangaTitleEn", "type": "string"},
			{"internalType": "string", "name": "mangaTitleJp", "type": "string"},
			{"internalType": "string", "name": "descriptionZh", "type": "string"},
			{"internalType": "string", "name": "descriptionEn", "type": "string"},
			{"internalType": "string", "name": "descriptionJp", "type": "string"},
			{"internalType": "uint256", "name": "maxCopies", "type": "uint256"},
			{"internalType": "string", "name": "uri_", "type": "string"},
			{"internalType": "address", "name": "creator_addr", "type": "address"}
		],
		"name": "createChapter",
		"outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}],
		"stateMutability": "nonpayable",
		"type": "function"
	},
	{
		"inputs": [
			{"internalType": "address", "name": "investor", "type": "address"},
			{"internalType": "uint256", "name": "tokenId", "type": "uint256"}
		],
		"name": "investorRegistration",
		"outputs": [],
		"stateMutability": "nonpayable",
		"type": "function"
	},
	{
		"inputs": [
			{"internalType": "address", "name": "account", "type": "address"},
			{"internalType": "uint256", "name": "id", "type": "uint256"}
		],
		"name": "balanceOf",
		"outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [],
		"name": "platformAddress",
		"outputs": [{"internalType": "address", "name": "", "type": "address"}],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [],
		"name": "monthlyDataUploader",
		"outputs": [{"internalType": "address", "name": "", "type": "address"}],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"anonymous": false,
		"inputs": [
			{"indexed": true, "internalType": "uint256", "name": "tokenId", "type": "uint256"},
			{"indexed": true, "internalType": "address", "name": "creator", "type": "address"},
			{"indexed": false, "internalType": "string", "name": "mangaTitleZh", "type": "string"},
			{"indexed": false, "internalType": "string", "name": "mangaTitleEn", "type": "string"},
			{"indexed": false, "internalType": "string", "name": "mangaTitleJp", "type": "string"}
		],
		"name": "ChapterCreated",
		"type": "event"
	},
	{
		"anonymous": false,
		"inputs": [
			{"indexed": true, "internalType": "uint256", "name": "tokenId", "type": "uint256"},
			{"indexed": true, "internalType": "address", "name": "to", "type": "address"},
			{"indexed": false, "internalType": "uint256", "name": "amountMinted", "type": "uint256"},
			{"indexed": false, "internalType": "uint256", "name": "mintTime", "type": "uint256"}
		],
		"name": "ChapterMinted",
		"type": "event"
	},
	{
		"anonymous": false,
		"inputs": [
			{"indexed": true, "internalType": "address", "name": "investor", "type": "address"},
			{"indexed": false, "internalType": "uint256", "name": "acquiredCount", "type": "uint256"},
			{"indexed": false, "internalType": "uint256", "name": "totalAcquired", "type": "uint256"}
		],
		"name": "InvestorNFTAcquired",
		"type": "event"
	},
	{
		"anonymous": false,
		"inputs": [
			{"indexed": true, "internalType": "address", "name": "operator", "type": "address"},
			{"indexed": true, "internalType": "address", "name": "from", "type": "address"},
			{"indexed": true, "internalType": "address", "name": "to", "type": "address"},
			{"indexed": false, "internalType": "uint256", "name": "id", "type": "uint256"},
			{"indexed": false, "internalType": "uint256", "name": "value", "type": "uint256"}
		],
		"name": "TransferSingle",
		"type": "event"
	}
]`

// MonthlyDataUploaderABI covers the MonthlyDataUploader surface used by the tools
const MonthlyDataUploaderABI = `[
	{
		"inputs": [
			{"internalType": "address", "name": "_platformAddress", "type": "address"},
			{"internalType": "address", "name": "_mangaNFTContract", "type": "address"}
		],
		"stateMutability": "nonpayable",
		"type": "constructor"
	},
	{
		"inputs": [{"internalType": "address", "name": "_mangaNFTContract", "type": "address"}],
		"name": "updateMangaNFTContract",
		"outputs": [],
		"stateMutability": "nonpayable",
		"type": "function"
	},
	{
		"inputs": [],
		"name": "mangaNFTContract",
		"outputs": [{"internalType": "address", "name": "", "type": "address"}],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [],
		"name": "platformAddress",
		"outputs": [{"internalType": "address", "name": "", "type": "address"}],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [{"internalType": "address", "name": "creator", "type": "address"}],
		"name": "getCreatorStats",
		"outputs": [
			{"internalType": "uint256", "name": "totalPublished", "type": "uint256"},
			{"internalType": "uint256", "name": "totalAcquired", "type": "uint256"},
			{"internalType": "uint256", "name": "currentHeld", "type": "uint256"}
		],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [{"internalType": "address", "name": "creator", "type": "address"}],
		"name": "isCreator",
		"outputs": [{"internalType": "bool", "name": "", "type": "bool"}],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [],
		"name": "getAllCreators",
		"outputs": [{"internalType": "address[]", "name": "", "type": "address[]"}],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [{"internalType": "address", "name": "investor", "type": "address"}],
		"name": "getInvestorStats",
		"outputs": [
			{"internalType": "uint256", "name": "totalAcquired", "type": "uint256"},
			{"internalType": "uint256", "name": "currentHeld", "type": "uint256"}
		],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [{"internalType": "address", "name": "investor", "type": "address"}],
		"name": "isInvestor",
		"outputs": [{"internalType": "bool", "name": "", "type": "bool"}],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [],
		"name": "getAllInvestors",
		"outputs": [{"internalType": "address[]", "name": "", "type": "address[]"}],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [{"internalType": "address", "name": "investor", "type": "address"}],
		"name": "getCurrentHeldNFTCountByInvestorExternal",
		"outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [
			{"internalType": "address", "name": "investor", "type": "address"},
			{"internalType": "uint256", "name": "yearMonth", "type": "uint256"}
		],
		"name": "getInvestorMonthlyStats",
		"outputs": [
			{"internalType": "uint256", "name": "acquiredCount", "type": "uint256"}
		],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"anonymous": false,
		"inputs": [
			{"indexed": true, "internalType": "address", "name": "oldContract", "type": "address"},
			{"indexed": true, "internalType": "address", "name": "newContract", "type": "address"}
		],
		"name": "MangaNFTContractUpdated",
		"type": "event"
	}
]`
