package clients

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/vitwit/jpycpay/tokens"
)

// ERC20 is a typed view over a single token contract.
type ERC20 struct {
	reader  ChainReader
	address common.Address
	abi     abi.ABI
}

func NewERC20(reader ChainReader, token tokens.Descriptor) *ERC20 {
	return &ERC20{reader: reader, address: token.ContractAddress, abi: token.ABI}
}

func (e *ERC20) BalanceOf(ctx context.Context, owner common.Address) (*big.Int, error) {
	return e.callBigInt(ctx, tokens.MethodBalanceOf, owner)
}

func (e *ERC20) Allowance(ctx context.Context, owner, spender common.Address) (*big.Int, error) {
	return e.callBigInt(ctx, tokens.MethodAllowance, owner, spender)
}

func (e *ERC20) TotalSupply(ctx context.Context) (*big.Int, error) {
	return e.callBigInt(ctx, tokens.MethodTotalSupply)
}

func (e *ERC20) Decimals(ctx context.Context) (uint8, error) {
	out, err := e.reader.Call(ctx, e.address, e.abi, tokens.MethodDecimals)
	if err != nil {
		return 0, err
	}
	v, ok := single(out).(uint8)
	if !ok {
		return 0, unexpected(tokens.MethodDecimals, out)
	}
	return v, nil
}

func (e *ERC20) Symbol(ctx context.Context) (string, error) {
	return e.callString(ctx, tokens.MethodSymbol)
}

func (e *ERC20) Name(ctx context.Context) (string, error) {
	return e.callString(ctx, tokens.MethodName)
}

func (e *ERC20) callBigInt(ctx context.Context, method string, args ...any) (*big.Int, error) {
	out, err := e.reader.Call(ctx, e.address, e.abi, method, args...)
	if err != nil {
		return nil, err
	}
	v, ok := single(out).(*big.Int)
	if !ok || v == nil {
		return nil, unexpected(method, out)
	}
	return v, nil
}

func (e *ERC20) callString(ctx context.Context, method string) (string, error) {
	out, err := e.reader.Call(ctx, e.address, e.abi, method)
	if err != nil {
		return "", err
	}
	v, ok := single(out).(string)
	if !ok {
		return "", unexpected(method, out)
	}
	return v, nil
}

func single(out []any) any {
	if len(out) != 1 {
		return nil
	}
	return out[0]
}

func unexpected(method string, out []any) error {
	return &ProviderError{
		Kind: KindUnknown,
		Op:   method,
		Err:  fmt.Errorf("unexpected return values %v", out),
	}
}
