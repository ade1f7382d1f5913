package eth

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"sweepbridge.com/internal/sweeper/domain"
)

// ERC-20 balanceOf/transfer/approve 以及 WETH deposit
const tokenABIJSON = `[
{"constant":true,"inputs":[{"name":"_owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"balance","type":"uint256"}],"stateMutability":"view","type":"function"},
{"constant":false,"inputs":[{"name":"_to","type":"address"},{"name":"_value","type":"uint256"}],"name":"transfer","outputs":[{"name":"","type":"bool"}],"stateMutability":"nonpayable","type":"function"},
{"constant":false,"inputs":[{"name":"_spender","type":"address"},{"name":"_value","type":"uint256"}],"name":"approve","outputs":[{"name":"","type":"bool"}],"stateMutability":"nonpayable","type":"function"},
{"constant":false,"inputs":[],"name":"deposit","outputs":[],"stateMutability":"payable","type":"function"}
]`

var tokenABI = mustParseABI(tokenABIJSON)

func mustParseABI(s string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(s))
	if err != nil {
		panic(err)
	}
	return parsed
}

// TransferCall ERC-20 transfer(to, amount)
func TransferCall(token, to string, amount *big.Int) (domain.Call, error) {
	data, err := tokenABI.Pack("transfer", common.HexToAddress(to), amount)
	if err != nil {
		return domain.Call{}, fmt.Errorf("pack transfer: %w", err)
	}
	return domain.Call{To: token, Value: big.NewInt(0), Data: hexutil.Encode(data)}, nil
}

// ApproveCall ERC-20 approve(spender, amount)
func ApproveCall(token, spender string, amount *big.Int) (domain.Call, error) {
	data, err := tokenABI.Pack("approve", common.HexToAddress(spender), amount)
	if err != nil {
		return domain.Call{}, fmt.Errorf("pack approve: %w", err)
	}
	return domain.Call{To: token, Value: big.NewInt(0), Data: hexutil.Encode(data)}, nil
}

// WrapCall 原生币存入 WETH 合约，金额放在 value 里
func WrapCall(weth string, amount *big.Int) (domain.Call, error) {
	data, err := tokenABI.Pack("deposit")
	if err != nil {
		return domain.Call{}, fmt.Errorf("pack deposit: %w", err)
	}
	return domain.Call{To: weth, Value: new(big.Int).Set(amount), Data: hexutil.Encode(data)}, nil
}
