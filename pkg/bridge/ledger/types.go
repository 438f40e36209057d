package ledger

import (
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"

	"github.com/shuail0/cross-bridge/pkg/bridge/common"
	"github.com/shuail0/cross-bridge/pkg/bridge/config"
)

// RequestHashLink 请求交易链接
type RequestHashLink struct {
	NetworkName    string `json:"networkName"`
	ExplorerLogo   string `json:"explorerLogo"`
	RequestHash    string `json:"requestHash"` // 缩略形式 0x1234...abcd
	RequestHashURL string `json:"requestHashUrl"`
}

// ClaimHashLink 领取交易链接
type ClaimHashLink struct {
	NetworkName  string `json:"networkName"`
	ExplorerLogo string `json:"explorerLogo"`
	ClaimHash    string `json:"claimHash"`
	ClaimHashURL string `json:"claimHashUrl"`
}

// Transaction 本地交易记录
type Transaction struct {
	ID              string          `json:"_id"`
	FromNetwork     config.Network  `json:"fromNetwork"`
	FromChainID     int64           `json:"fromChainId"`
	ToNetwork       config.Network  `json:"toNetwork"`
	ToChainID       int64           `json:"toChainId"`
	Account         string          `json:"account"`
	Amount          string          `json:"amount"` // 最小单位
	AmountFormatted string          `json:"amountFormated"`
	RequestHash     string          `json:"requestHash"`
	RequestHashLink RequestHashLink `json:"requestHashLink"`
	RequestTime     float64         `json:"requestTime"` // Unix 秒
	ClaimHash       string          `json:"claimHash"`
	ClaimHashLink   ClaimHashLink   `json:"claimHashLink"`
	Claimed         bool            `json:"claimed"`
}

// RequestParams 创建交易记录的参数
type RequestParams struct {
	From        config.Network
	To          config.Network
	Token       config.Token
	Account     string
	Amount      *big.Int // 最小单位
	AmountInput string   // 用户输入的金额
	RequestHash string
	RequestTime time.Time
}

// NewRequestTransaction 根据已提交的桥请求创建记录, claimed=false, claimHash 为空
func NewRequestTransaction(p RequestParams) Transaction {
	amount := "0"
	if p.Amount != nil {
		amount = p.Amount.String()
	}
	requestTime := p.RequestTime
	if requestTime.IsZero() {
		requestTime = time.Now()
	}

	return Transaction{
		ID:              uuid.NewString(),
		FromNetwork:     p.From,
		FromChainID:     p.From.ChainID,
		ToNetwork:       p.To,
		ToChainID:       p.To.ChainID,
		Account:         p.Account,
		Amount:          amount,
		AmountFormatted: fmt.Sprintf("%s %s", common.FormatNumber(p.AmountInput), p.Token.Symbol),
		RequestHash:     p.RequestHash,
		RequestHashLink: RequestHashLink{
			NetworkName:    p.From.Name,
			ExplorerLogo:   p.From.LogoURI,
			RequestHash:    common.Ellipsis(p.RequestHash, 6, 4),
			RequestHashURL: p.From.TxURL(p.RequestHash),
		},
		RequestTime: float64(requestTime.UnixMilli()) / 1000,
		ClaimHash:   "",
		ClaimHashLink: ClaimHashLink{
			NetworkName:  p.To.Name,
			ExplorerLogo: p.To.LogoURI,
			ClaimHash:    "",
			ClaimHashURL: p.To.TxURL(""),
		},
		Claimed: false,
	}
}
