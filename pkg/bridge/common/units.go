package common

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/cockroachdb/apd/v3"
)

// decimalContext 金额换算精度, uint256 最多 78 位
var decimalContext = func() *apd.Context {
	ctx := apd.BaseContext.WithPrecision(100)
	ctx.Rounding = apd.RoundDown
	return ctx
}()

// ParseUnits 将十进制金额字符串换算为最小单位整数
// 超出精度的小数部分直接截断
func ParseUnits(amount string, decimals int) (*big.Int, error) {
	amount = strings.TrimSpace(amount)
	if amount == "" {
		return big.NewInt(0), nil
	}
	if decimals < 0 {
		return nil, fmt.Errorf("invalid decimals: %d", decimals)
	}

	d, _, err := apd.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("parse amount %q: %w", amount, err)
	}
	if d.Form != apd.Finite {
		return nil, fmt.Errorf("invalid amount: %s", amount)
	}
	if d.Negative && !d.IsZero() {
		return nil, fmt.Errorf("negative amount: %s", amount)
	}

	d.Exponent += int32(decimals)
	var whole apd.Decimal
	if _, err := decimalContext.RoundToIntegralValue(&whole, d); err != nil {
		return nil, fmt.Errorf("scale amount: %w", err)
	}

	result, ok := new(big.Int).SetString(whole.Text('f'), 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount: %s", amount)
	}
	return result.Abs(result), nil
}

// MustParseUnits 同 ParseUnits, 解析失败时返回 0
func MustParseUnits(amount string, decimals int) *big.Int {
	v, err := ParseUnits(amount, decimals)
	if err != nil {
		return big.NewInt(0)
	}
	return v
}

// FormatUnits 格式化 BigInt 为字符串
func FormatUnits(amount *big.Int, decimals int) string {
	if amount == nil {
		return "0"
	}
	if decimals <= 0 {
		return amount.String()
	}
	neg := amount.Sign() < 0
	abs := new(big.Int).Abs(amount)

	divisor := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	whole := new(big.Int).Div(abs, divisor)
	frac := new(big.Int).Mod(abs, divisor)

	result := whole.String()
	if frac.Sign() != 0 {
		fracStr := fmt.Sprintf("%0*d", decimals, frac)
		result += "." + strings.TrimRight(fracStr, "0")
	}
	if neg {
		result = "-" + result
	}
	return result
}

// FormatFixed 格式化为固定小数位 (截断)
func FormatFixed(amount *big.Int, decimals, places int) string {
	s := FormatUnits(amount, decimals)
	dot := strings.IndexByte(s, '.')
	if dot < 0 {
		return s
	}
	if len(s)-dot-1 > places {
		s = s[:dot+1+places]
	}
	s = strings.TrimRight(strings.TrimRight(s, "0"), ".")
	return s
}

// FormatNumber 千分位格式化, 小数部分保持不变
func FormatNumber(amount string) string {
	amount = strings.TrimSpace(amount)
	if amount == "" {
		return "0"
	}

	sign := ""
	if strings.HasPrefix(amount, "-") {
		sign, amount = "-", amount[1:]
	}

	intPart, fracPart := amount, ""
	if dot := strings.IndexByte(amount, '.'); dot >= 0 {
		intPart, fracPart = amount[:dot], amount[dot:]
	}
	if intPart == "" {
		intPart = "0"
	}

	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return sign + b.String() + fracPart
}

// Ellipsis 截断长字符串, 如 0x1234...abcd
func Ellipsis(s string, head, tail int) string {
	if len(s) <= head+tail {
		return s
	}
	return s[:head] + "..." + s[len(s)-tail:]
}
