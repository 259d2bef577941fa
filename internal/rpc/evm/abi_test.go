package evm

import (
	"fmt"
	"math"
	"math/big"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventTopic(t *testing.T) {
	// well-known ERC20 Transfer topic
	assert.Equal(t,
		"0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef",
		EventTopic("Transfer(address,address,uint256)"),
	)
}

func TestDecodePaymentReceived(t *testing.T) {
	token := "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48"
	l := Log{
		Topics: []string{
			PaymentReceivedTopic,
			AddressTopic("0x1111111111111111111111111111111111111111"),
			AddressTopic("0x5fbdb2315678afecb367f032d93f642f64180aa3"),
		},
		Data: EncodePaymentReceivedData(token, big.NewInt(2_000_000), "ACC0000001PAY1"),
	}

	ev, err := DecodePaymentReceived(l)
	require.NoError(t, err)
	assert.Equal(t, "0x1111111111111111111111111111111111111111", ev.Payer)
	assert.Equal(t, "0x5FbDB2315678afecb367f032d93F642f64180aa3", ev.Receiver)
	assert.Equal(t, "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48", ev.Token)
	assert.Equal(t, "2000000", ev.Amount.String())
	assert.Equal(t, "ACC0000001PAY1", ev.Reference)
}

func TestDecodePaymentReceived_Malformed(t *testing.T) {
	_, err := DecodePaymentReceived(Log{Topics: []string{PaymentReceivedTopic}})
	assert.ErrorIs(t, err, ErrMalformedLog)

	_, err = DecodePaymentReceived(Log{
		Topics: []string{PaymentReceivedTopic, AddressTopic("0x01"), AddressTopic("0x02")},
		Data:   "0x00",
	})
	assert.ErrorIs(t, err, ErrMalformedLog)

	word := func(v uint64) string { return fmt.Sprintf("%064x", v) }
	topics := []string{PaymentReceivedTopic, AddressTopic("0x01"), AddressTopic("0x02")}
	cases := map[string]string{
		"offset wraps":      word(0) + word(1) + word(math.MaxUint64-15) + word(0),
		"offset past end":   word(0) + word(1) + word(128) + word(0),
		"length wraps":      word(0) + word(1) + word(96) + word(math.MaxUint64),
		"length past end":   word(0) + word(1) + word(96) + word(33) + strings.Repeat("00", 32),
		"offset not uint64": word(0) + word(1) + strings.Repeat("ff", 32) + word(0),
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			assert.NotPanics(t, func() {
				_, err := DecodePaymentReceived(Log{Topics: topics, Data: "0x" + data})
				assert.ErrorIs(t, err, ErrMalformedLog)
			})
		})
	}
}

func TestIsZeroAddress(t *testing.T) {
	assert.True(t, IsZeroAddress("0x0000000000000000000000000000000000000000"))
	assert.False(t, IsZeroAddress("0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48"))
}
