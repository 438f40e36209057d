package common

// 钱包错误码
const (
	// ErrorCodeUserRejected 用户拒绝签名 (EIP-1193)
	ErrorCodeUserRejected = 4001
)

// 交易默认值
const (
	// MaxUint256 无限授权额度
	MaxUint256 = "115792089237316195423570985008687907853269984665640564039457584007913129639935"

	// DefaultDecimals 未配置精度时的默认值
	DefaultDecimals = 18
)

// 通知 ID, 同一 ID 同时只显示一条
const (
	ToastIDApprove  = "onApprove"
	ToastIDTransfer = "onTransferToken"
)

// LedgerKeyPrefix 本地交易记录 key 前缀
const LedgerKeyPrefix = "transactions"

// ABI 定义
const (
	ERC20ABI = `[
		{"constant":false,"inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],"name":"approve","outputs":[{"name":"","type":"bool"}],"type":"function"},
		{"constant":true,"inputs":[{"name":"account","type":"address"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"type":"function"},
		{"constant":true,"inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],"name":"allowance","outputs":[{"name":"","type":"uint256"}],"type":"function"},
		{"constant":true,"inputs":[],"name":"decimals","outputs":[{"name":"","type":"uint8"}],"type":"function"}
	]`

	GenericBridgeABI = `[
		{"inputs":[{"name":"_tokenAddress","type":"address"},{"name":"_amount","type":"uint256"},{"name":"_toChainId","type":"uint256"}],"name":"requestBridge","outputs":[],"stateMutability":"payable","type":"function"},
		{"anonymous":false,"inputs":[{"indexed":true,"name":"_token","type":"address"},{"indexed":true,"name":"_addr","type":"address"},{"indexed":false,"name":"_amount","type":"uint256"},{"indexed":false,"name":"_originChainId","type":"uint256"},{"indexed":false,"name":"_fromChainId","type":"uint256"},{"indexed":false,"name":"_toChainId","type":"uint256"},{"indexed":false,"name":"_index","type":"uint256"}],"name":"RequestBridge","type":"event"}
	]`
)
