package evm

import (
	"errors"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"

	"manga/offchain/internal/errs"
)

const revertPrefix = "execution reverted"

var (
	fundsMarkers = []string{"insufficient funds"}
	nonceMarkers = []string{
		"nonce too low",
		"nonce too high",
		"invalid nonce",
		"replacement transaction underpriced",
		"already known",
	}
	malformedMarkers = []string{
		"intrinsic gas too low",
		"exceeds block gas limit",
		"gas limit reached",
		"oversized data",
		"invalid sender",
		"invalid transaction",
		"max fee per gas less than block base fee",
		"transaction underpriced",
	}
)

// classifySubmitError turns a node rejection into the error taxonomy. Gas
// estimation failures that carry revert data become RevertErrors.
func classifySubmitError(err error) error {
	if err == nil {
		return nil
	}
	msg := strings.ToLower(err.Error())

	switch {
	case containsAny(msg, fundsMarkers):
		return &errs.SubmissionError{Kind: errs.SubmissionInsufficientFunds, Message: err.Error(), Err: err}
	case containsAny(msg, nonceMarkers):
		return &errs.SubmissionError{Kind: errs.SubmissionNonce, Message: err.Error(), Err: err}
	case strings.Contains(msg, revertPrefix):
		return &errs.RevertError{Reason: revertReason(err)}
	case containsAny(msg, malformedMarkers):
		return &errs.SubmissionError{Kind: errs.SubmissionMalformed, Message: err.Error(), Err: err}
	default:
		return &errs.SubmissionError{Kind: errs.SubmissionTransport, Message: err.Error(), Err: err}
	}
}

// revertReason extracts the Error(string) reason from an RPC error, first
// from its structured data and then from the message text
func revertReason(err error) string {
	var dataErr rpc.DataError
	if errors.As(err, &dataErr) {
		if hexData, ok := dataErr.ErrorData().(string); ok {
			if data, decodeErr := hexutil.Decode(hexData); decodeErr == nil {
				if reason, unpackErr := abi.UnpackRevert(data); unpackErr == nil {
					return reason
				}
			}
		}
	}

	msg := err.Error()
	if i := strings.Index(msg, revertPrefix+": "); i >= 0 {
		return strings.TrimSpace(msg[i+len(revertPrefix)+2:])
	}
	return ""
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}
