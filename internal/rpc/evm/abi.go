package evm

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"golang.org/x/crypto/sha3"
)

// PaymentReceivedSignature is the event emitted by the payment receiver contract.
const PaymentReceivedSignature = "PaymentReceived(address,address,address,uint256,string)"

// PaymentReceivedTopic is keccak256(PaymentReceivedSignature).
var PaymentReceivedTopic = EventTopic(PaymentReceivedSignature)

var ErrMalformedLog = errors.New("malformed payment log")

// PaymentReceived is the decoded event. Token is the zero address for native value.
type PaymentReceived struct {
	Payer     string
	Receiver  string
	Token     string
	Amount    *big.Int
	Reference string
}

func EventTopic(signature string) string {
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(signature))
	return "0x" + hex.EncodeToString(h.Sum(nil))
}

// DecodePaymentReceived decodes
// PaymentReceived(address indexed payer, address indexed receiver, address token, uint256 amount, string reference).
// Data layout: token (32) | amount (32) | offset of reference (32) | ... | len (32) | bytes.
func DecodePaymentReceived(l Log) (*PaymentReceived, error) {
	if len(l.Topics) < 3 || !strings.EqualFold(l.Topics[0], PaymentReceivedTopic) {
		return nil, fmt.Errorf("%w: unexpected topics", ErrMalformedLog)
	}

	data, err := hex.DecodeString(strings.TrimPrefix(l.Data, "0x"))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedLog, err)
	}
	if len(data) < 32*4 {
		return nil, fmt.Errorf("%w: data too short (%d bytes)", ErrMalformedLog, len(data))
	}

	// bounds are checked by subtraction; offset and length are attacker controlled
	size := uint64(len(data))
	offset := new(big.Int).SetBytes(data[64:96])
	if !offset.IsUint64() || offset.Uint64() > size-32 {
		return nil, fmt.Errorf("%w: reference offset out of range", ErrMalformedLog)
	}
	start := offset.Uint64()
	length := new(big.Int).SetBytes(data[start : start+32])
	if !length.IsUint64() || length.Uint64() > size-32-start {
		return nil, fmt.Errorf("%w: reference length out of range", ErrMalformedLog)
	}
	ref := data[start+32 : start+32+length.Uint64()]

	return &PaymentReceived{
		Payer:     topicAddress(l.Topics[1]),
		Receiver:  topicAddress(l.Topics[2]),
		Token:     ToChecksumAddress("0x" + hex.EncodeToString(data[12:32])),
		Amount:    new(big.Int).SetBytes(data[32:64]),
		Reference: string(ref),
	}, nil
}

func topicAddress(topic string) string {
	t := strings.TrimPrefix(topic, "0x")
	if len(t) < 40 {
		return ""
	}
	return ToChecksumAddress("0x" + t[len(t)-40:])
}

// IsZeroAddress reports whether addr is 0x000...0.
func IsZeroAddress(addr string) bool {
	return strings.Trim(strings.TrimPrefix(strings.ToLower(addr), "0x"), "0") == ""
}

// ToChecksumAddress converts an Ethereum address to EIP-55 checksummed format
func ToChecksumAddress(addr string) string {
	addr = strings.TrimPrefix(strings.ToLower(addr), "0x")
	if len(addr) != 40 {
		return "0x" + addr
	}

	hash := sha3.NewLegacyKeccak256()
	hash.Write([]byte(addr))
	hashBytes := hash.Sum(nil)

	result := make([]byte, 42)
	result[0] = '0'
	result[1] = 'x'
	for i := 0; i < 40; i++ {
		c := addr[i]
		nibble := hashBytes[i/2]
		if i%2 == 0 {
			nibble >>= 4
		} else {
			nibble &= 0x0f
		}
		if nibble >= 8 && c >= 'a' && c <= 'f' {
			result[2+i] = c - 32
		} else {
			result[2+i] = c
		}
	}
	return string(result)
}

// EncodePaymentReceivedData builds the data section for a PaymentReceived log.
// Used by tests and local tooling that simulate the receiver contract.
func EncodePaymentReceivedData(token string, amount *big.Int, reference string) string {
	word := func(b []byte) []byte {
		out := make([]byte, 32)
		copy(out[32-len(b):], b)
		return out
	}
	tokenBytes, _ := hex.DecodeString(strings.TrimPrefix(strings.ToLower(token), "0x"))
	ref := []byte(reference)
	padded := make([]byte, (len(ref)+31)/32*32)
	copy(padded, ref)

	var buf []byte
	buf = append(buf, word(tokenBytes)...)
	buf = append(buf, word(amount.Bytes())...)
	buf = append(buf, word(big.NewInt(96).Bytes())...)
	buf = append(buf, word(big.NewInt(int64(len(ref))).Bytes())...)
	buf = append(buf, padded...)
	return "0x" + hex.EncodeToString(buf)
}

// AddressTopic left-pads an address into a 32-byte topic.
func AddressTopic(addr string) string {
	return "0x" + strings.Repeat("0", 24) + strings.TrimPrefix(strings.ToLower(addr), "0x")
}
