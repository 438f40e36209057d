package notify

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordSink struct {
	shown    []Toast
	replaced []bool
}

func (r *recordSink) Show(t Toast, replaced bool) {
	r.shown = append(r.shown, t)
	r.replaced = append(r.replaced, replaced)
}

func TestCenterOneToastPerID(t *testing.T) {
	sink := &recordSink{}
	c := NewCenter(sink, CenterConfig{})

	c.Error("onTransferToken", Toast{Header: "Transfer failed", Body: "first"})
	c.Error("onTransferToken", Toast{Header: "Transfer failed", Body: "second"})
	c.Success("onApprove", Toast{Header: "Approved"})

	active := c.Active()
	assert.Len(t, active, 2)

	got, ok := c.Get("onTransferToken")
	require.True(t, ok)
	assert.Equal(t, "second", got.Body)
	assert.Equal(t, LevelError, got.Level)
	assert.Equal(t, "onTransferToken", got.ID)

	require.Len(t, sink.shown, 3)
	assert.Equal(t, []bool{false, true, false}, sink.replaced)
}

func TestCenterDismiss(t *testing.T) {
	sink := &recordSink{}
	c := NewCenter(sink, CenterConfig{})

	c.Success("onApprove", Toast{Header: "Approved"})
	c.Dismiss("onApprove")
	assert.Empty(t, c.Active())

	c.Success("onApprove", Toast{Header: "Approved"})
	assert.Equal(t, []bool{false, false}, sink.replaced)
}

func TestCenterTTL(t *testing.T) {
	now := time.Unix(1700000000, 0)
	c := NewCenter(nil, CenterConfig{TTL: 5 * time.Second})
	c.now = func() time.Time { return now }

	c.Success("onApprove", Toast{Header: "Approved"})
	_, ok := c.Get("onApprove")
	assert.True(t, ok)

	now = now.Add(5 * time.Second)
	_, ok = c.Get("onApprove")
	assert.False(t, ok)
}

func TestWriterSink(t *testing.T) {
	var buf bytes.Buffer
	sink := NewWriterSink(&buf, nil, false)

	sink.Show(Toast{
		ID:       "onTransferToken",
		Level:    LevelSuccess,
		Header:   "Transfer submitted",
		Body:     "1,000 USDT to Sepolia",
		Link:     "https://testnet.bscscan.com/tx/0xabc",
		LinkText: "View on explorer",
	}, false)

	out := buf.String()
	assert.Contains(t, out, "✔ Transfer submitted")
	assert.Contains(t, out, "1,000 USDT to Sepolia")
	assert.Contains(t, out, "View on explorer: https://testnet.bscscan.com/tx/0xabc")
}

func TestWriterSinkQRCode(t *testing.T) {
	var buf bytes.Buffer
	sink := NewWriterSink(&buf, nil, true)

	sink.Show(Toast{ID: "onApprove", Level: LevelError, Header: "Approve failed", Link: "https://example.com/tx/0x1"}, false)

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "✖ Approve failed"))
	assert.Greater(t, strings.Count(out, "\n"), 5)
}

func TestRenderQR(t *testing.T) {
	qr, err := RenderQR("https://example.com")
	require.NoError(t, err)
	assert.NotEmpty(t, qr)
}
