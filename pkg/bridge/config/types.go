package config

import "strings"

// Token 代币信息
type Token struct {
	Name     string `json:"name" validate:"required"`
	Address  string `json:"address" validate:"required,eth_addr"`
	Symbol   string `json:"symbol" validate:"required"`
	Decimals int    `json:"decimals" validate:"min=0,max=77"`
	LogoURI  string `json:"logoURI,omitempty"`
}

// Network 网络信息
type Network struct {
	ChainID       int64  `json:"chainId" validate:"required,gt=0"`
	Name          string `json:"name" validate:"required"`
	Explorer      string `json:"explorer" validate:"omitempty,url"`
	RPCURL        string `json:"rpcURL" validate:"omitempty,url"`
	WSURL         string `json:"wsURL,omitempty" validate:"omitempty,url"`
	LogoURI       string `json:"logoURI,omitempty"`
	BridgeAddress string `json:"bridgeAddress,omitempty" validate:"omitempty,eth_addr"` // 该链上的桥合约
}

// TxURL 浏览器交易链接
func (n Network) TxURL(hash string) string {
	return strings.TrimSuffix(n.Explorer, "/") + "/tx/" + hash
}

// AddressURL 浏览器地址链接
func (n Network) AddressURL(address string) string {
	return strings.TrimSuffix(n.Explorer, "/") + "/address/" + address
}
