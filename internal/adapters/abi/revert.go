package abi

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
)

// RevertData extracts the revert payload carried by an RPC error, if any
func RevertData(err error) ([]byte, bool) {
	var dataErr rpc.DataError
	if !errors.As(err, &dataErr) {
		return nil, false
	}
	s, ok := dataErr.ErrorData().(string)
	if !ok {
		return nil, false
	}
	data, decErr := hexutil.Decode(s)
	if decErr != nil {
		return nil, false
	}
	return data, true
}

// DecodeRevert renders revert data as a reason: Error(string) and
// Panic(uint256) via go-ethereum, custom errors via the contract ABI.
func DecodeRevert(data []byte, contract *abi.ABI) string {
	if len(data) == 0 {
		return ""
	}
	if reason, err := abi.UnpackRevert(data); err == nil {
		return reason
	}
	if contract != nil && len(data) >= 4 {
		for name, e := range contract.Errors {
			if !bytes.Equal(e.ID[:4], data[:4]) {
				continue
			}
			values, err := e.Inputs.Unpack(data[4:])
			if err != nil {
				return name
			}
			parts := make([]string, len(values))
			for i, v := range values {
				parts[i] = fmt.Sprint(v)
			}
			return fmt.Sprintf("%s(%s)", name, strings.Join(parts, ", "))
		}
	}
	return hexutil.Encode(data)
}

// RevertReason decodes the reason of a failed call or gas estimation. It
// falls back to the error message when the node returned no data.
func RevertReason(err error, contract *abi.ABI) string {
	if data, ok := RevertData(err); ok {
		if reason := DecodeRevert(data, contract); reason != "" {
			return reason
		}
	}
	return err.Error()
}

// IsRevert reports whether an RPC error is an execution revert
func IsRevert(err error) bool {
	if err == nil {
		return false
	}
	if _, ok := RevertData(err); ok {
		return true
	}
	return strings.Contains(err.Error(), "execution reverted") || strings.Contains(err.Error(), "revert")
}
