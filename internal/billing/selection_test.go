package billing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func fixture() []Invoice {
	return []Invoice{
		{ID: "INV-2025-0901", Period: "Sep 2025", Amount: decimal.NewFromInt(39), Status: StatusDue},
		{ID: "INV-2025-0801", Period: "Aug 2025", Amount: decimal.NewFromInt(39), Status: StatusOverdue},
		{ID: "INV-2025-0701", Period: "Jul 2025", Amount: decimal.NewFromInt(39), Status: StatusPaid},
	}
}

func TestNewSelectionPreselectsOutstanding(t *testing.T) {
	sel := NewSelection(fixture())
	assert.Equal(t, []string{"INV-2025-0901", "INV-2025-0801"}, sel.Current())
	assert.False(t, sel.Selected("INV-2025-0701"))
	assert.Equal(t, 2, sel.Len())
}

func TestToggleIsInvolution(t *testing.T) {
	sel := NewSelection(fixture())
	before := sel.Current()
	assert.False(t, sel.Toggle("INV-2025-0801"))
	assert.True(t, sel.Toggle("INV-2025-0801"))
	assert.ElementsMatch(t, before, sel.Current())
}

func TestToggleIgnoresUnknownAndPaid(t *testing.T) {
	sel := NewEmptySelection(fixture())
	assert.False(t, sel.Toggle("INV-2025-0701"))
	assert.False(t, sel.Toggle("nope"))
	sel.Select("nope")
	assert.Empty(t, sel.Current())
}

func TestToggleAll(t *testing.T) {
	sel := NewEmptySelection(fixture())
	visible := []string{"INV-2025-0901", "INV-2025-0801"}

	sel.Toggle("INV-2025-0901")
	assert.False(t, sel.AllSelected(visible))
	sel.ToggleAll(visible)
	assert.True(t, sel.AllSelected(visible))
	assert.Equal(t, visible, sel.Current())

	sel.ToggleAll(visible)
	assert.Empty(t, sel.Current())
	assert.False(t, sel.AllSelected(nil))
}

func TestToggleAllKeepsHiddenSelections(t *testing.T) {
	sel := NewSelection(fixture())
	visible := []string{"INV-2025-0801"}
	sel.ToggleAll(visible)
	assert.Equal(t, []string{"INV-2025-0901"}, sel.Current())
}

func TestInvoicesFollowOutstandingOrder(t *testing.T) {
	sel := NewEmptySelection(fixture())
	sel.Select("INV-2025-0801")
	sel.Select("INV-2025-0901")
	got := sel.Invoices()
	if assert.Len(t, got, 2) {
		assert.Equal(t, "INV-2025-0901", got[0].ID)
	}
}

func TestFilter(t *testing.T) {
	all := fixture()
	assert.Len(t, Filter(all, ""), 3)
	assert.Len(t, Filter(all, "aug"), 1)
	assert.Len(t, Filter(all, "inv-2025-09"), 1)
	assert.Empty(t, Filter(all, "2024"))
}
