package chain

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// Minimal ABI fragments for the three contracts the gateway talks to. Only
// the functions the gateway actually calls are declared.

const exchangeABIJSON = `[
  {"type":"function","name":"getPlayerPools","stateMutability":"view",
   "inputs":[{"name":"playerIds","type":"uint256[]"}],
   "outputs":[{"name":"currencyReserves","type":"uint256[]"},{"name":"playerReserves","type":"uint256[]"}]},
  {"type":"function","name":"buyNonces","stateMutability":"view",
   "inputs":[{"name":"account","type":"address"}],
   "outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"buyPlayers","stateMutability":"nonpayable",
   "inputs":[
     {"name":"playerIds","type":"uint256[]"},
     {"name":"amounts","type":"uint256[]"},
     {"name":"maxCurrencySpend","type":"uint256"},
     {"name":"deadline","type":"uint256"},
     {"name":"recipient","type":"address"},
     {"name":"signature","type":"bytes"},
     {"name":"nonce","type":"uint256"}],
   "outputs":[]}
]`

const playerTokenABIJSON = `[
  {"type":"function","name":"balanceOf","stateMutability":"view",
   "inputs":[{"name":"account","type":"address"},{"name":"id","type":"uint256"}],
   "outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"isSellable","stateMutability":"view",
   "inputs":[{"name":"id","type":"uint256"}],
   "outputs":[{"name":"","type":"bool"}]},
  {"type":"function","name":"sellNonces","stateMutability":"view",
   "inputs":[{"name":"account","type":"address"}],
   "outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"sellPlayers","stateMutability":"nonpayable",
   "inputs":[
     {"name":"playerIds","type":"uint256[]"},
     {"name":"amounts","type":"uint256[]"},
     {"name":"minCurrencyOut","type":"uint256"},
     {"name":"deadline","type":"uint256"},
     {"name":"signature","type":"bytes"},
     {"name":"nonce","type":"uint256"}],
   "outputs":[]}
]`

const currencyABIJSON = `[
  {"type":"function","name":"balanceOf","stateMutability":"view",
   "inputs":[{"name":"account","type":"address"}],
   "outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"allowance","stateMutability":"view",
   "inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],
   "outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"approve","stateMutability":"nonpayable",
   "inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],
   "outputs":[{"name":"","type":"bool"}]}
]`

var (
	exchangeABI    = mustParseABI(exchangeABIJSON)
	playerTokenABI = mustParseABI(playerTokenABIJSON)
	currencyABI    = mustParseABI(currencyABIJSON)
)

func mustParseABI(src string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(src))
	if err != nil {
		panic("chain: invalid embedded ABI: " + err.Error())
	}
	return parsed
}
