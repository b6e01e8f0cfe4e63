package inbox

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/germanamz/gsmgate/pkg/envelope"
)

func item(index int, sender, body string) envelope.SmsItem {
	return envelope.SmsItem{Index: index, Sender: sender, Body: body, Timestamp: "24/01/02", Valid: true}
}

func indices(v View) []int {
	out := make([]int, 0, len(v.Entries))
	for _, e := range v.Entries {
		out = append(out, e.Index)
	}
	return out
}

func TestParseVariant(t *testing.T) {
	v, err := ParseVariant("")
	require.NoError(t, err)
	assert.Equal(t, VariantAuto, v)

	v, err = ParseVariant("batch")
	require.NoError(t, err)
	assert.Equal(t, VariantBatch, v)

	_, err = ParseVariant("pull")
	require.Error(t, err)
}

// --- Streaming tests ---

func TestStreamingListing(t *testing.T) {
	a := New(VariantStreaming)

	require.True(t, a.Started())
	v := a.View()
	assert.True(t, v.Loading)
	assert.Equal(t, PlaceholderLoading, v.Placeholder)

	a.Item(item(1, "+100", "first"))
	a.Item(item(2, "+200", "second"))
	incomplete := a.Finished(envelope.SmsListFinished{Status: "complete"})

	assert.False(t, incomplete)
	v = a.View()
	assert.False(t, v.Loading)
	assert.Equal(t, PlaceholderNone, v.Placeholder)
	assert.Equal(t, []int{2, 1}, indices(v))
}

func TestStreamingDuplicateDropped(t *testing.T) {
	a := New(VariantAuto)
	a.Started()

	assert.True(t, a.Item(item(3, "a", "x")))
	assert.False(t, a.Item(item(3, "b", "y")))

	v := a.View()
	require.Len(t, v.Entries, 1)
	assert.Equal(t, "a", v.Entries[0].Sender)
}

func TestStreamingInvalidItemIgnored(t *testing.T) {
	a := New(VariantAuto)
	a.Started()

	assert.False(t, a.Item(envelope.SmsItem{Sender: "x"}))
	assert.Empty(t, a.View().Entries)
}

func TestStreamingEmpty(t *testing.T) {
	a := New(VariantAuto)
	a.Started()
	a.Finished(envelope.SmsListFinished{})

	assert.Equal(t, PlaceholderEmpty, a.View().Placeholder)
}

func TestStreamingIncompleteKeepsEntries(t *testing.T) {
	for _, status := range []string{"error", "timeout"} {
		a := New(VariantAuto)
		a.Started()
		a.Item(item(1, "s", "b"))

		assert.True(t, a.Finished(envelope.SmsListFinished{Status: status}), status)
		assert.Len(t, a.View().Entries, 1)
	}
}

func TestStartedClearsPrevious(t *testing.T) {
	a := New(VariantAuto)
	a.Started()
	a.Item(item(1, "s", "b"))
	a.Finished(envelope.SmsListFinished{})

	a.Started()
	assert.Empty(t, a.View().Entries)
}

func TestStreamingRejectedInBatchVariant(t *testing.T) {
	a := New(VariantBatch)

	assert.False(t, a.Started())
	assert.False(t, a.Item(item(1, "s", "b")))
	assert.Empty(t, a.View().Entries)
}

// --- Batch tests ---

func TestBatchReplacesInDeviceOrder(t *testing.T) {
	a := New(VariantBatch)
	a.RequestRefresh()

	a.Batch(envelope.SmsList{Available: true, Items: []envelope.SmsItem{
		item(4, "a", "x"), item(2, "b", "y"), item(4, "c", "z"), item(7, "d", "w"),
	}})

	v := a.View()
	assert.False(t, v.Loading)
	assert.Equal(t, []int{4, 2, 7}, indices(v))
	assert.Equal(t, "a", v.Entries[0].Sender)
}

func TestBatchUnavailable(t *testing.T) {
	a := New(VariantAuto)
	a.RequestRefresh()

	assert.True(t, a.Batch(envelope.SmsList{}))
	v := a.View()
	assert.Equal(t, PlaceholderUnavailable, v.Placeholder)
	assert.False(t, v.Loading)
}

func TestBatchEmptyList(t *testing.T) {
	a := New(VariantAuto)
	a.Batch(envelope.SmsList{Available: true})

	assert.Equal(t, PlaceholderEmpty, a.View().Placeholder)
}

func TestBatchRejectedInStreamingVariant(t *testing.T) {
	a := New(VariantStreaming)
	assert.False(t, a.Batch(envelope.SmsList{Available: true, Items: []envelope.SmsItem{item(1, "a", "b")}}))
}

// --- Entry rendering tests ---

func TestEntryDefaults(t *testing.T) {
	a := New(VariantAuto)
	a.Item(envelope.SmsItem{Index: 1, Status: "REC UNREAD", Body: strings.Repeat("x", 45), Valid: true})

	e, ok := a.Lookup(1)
	require.True(t, ok)
	assert.Equal(t, UnknownSender, e.Sender)
	assert.True(t, e.Unread)
	assert.Equal(t, strings.Repeat("x", 40)+"...", e.Preview)
	assert.Len(t, e.Body, 45)
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "short", Preview("short"))
	assert.Equal(t, strings.Repeat("a", 40), Preview(strings.Repeat("a", 40)))

	arabic := strings.Repeat("م", 41)
	assert.Equal(t, strings.Repeat("م", 40)+"...", Preview(arabic))
}

// --- Detail and removal tests ---

func TestOpenCrossReferencesSummary(t *testing.T) {
	a := New(VariantAuto)
	a.Item(item(5, "+555", "hello"))

	d, ok := a.Open(envelope.SmsContent{Index: 5, Body: "hello there", Valid: true})
	require.True(t, ok)
	assert.Equal(t, Detail{Index: 5, Sender: "+555", Timestamp: "24/01/02", Body: "hello there"}, d)

	got, ok := a.Detail()
	require.True(t, ok)
	assert.Equal(t, d, got)
}

func TestOpenWithoutSummary(t *testing.T) {
	a := New(VariantAuto)

	d, ok := a.Open(envelope.SmsContent{Index: 9, Body: "b", Valid: true})
	require.True(t, ok)
	assert.Equal(t, NotAvailable, d.Sender)
	assert.Equal(t, NotAvailable, d.Timestamp)
}

func TestOpenInvalid(t *testing.T) {
	a := New(VariantAuto)
	_, ok := a.Open(envelope.SmsContent{Error: "Failed to read SMS"})
	assert.False(t, ok)
	_, ok = a.Detail()
	assert.False(t, ok)
}

func TestRemoveClosesMatchingDetail(t *testing.T) {
	a := New(VariantAuto)
	a.Item(item(5, "a", "x"))
	a.Item(item(6, "b", "y"))
	a.Open(envelope.SmsContent{Index: 5, Valid: true})

	assert.True(t, a.Remove(5))
	assert.Equal(t, []int{6}, indices(a.View()))
	_, ok := a.Detail()
	assert.False(t, ok)

	assert.False(t, a.Remove(5))
}

func TestRemoveKeepsOtherDetail(t *testing.T) {
	a := New(VariantAuto)
	a.Item(item(5, "a", "x"))
	a.Item(item(6, "b", "y"))
	a.Open(envelope.SmsContent{Index: 6, Valid: true})

	a.Remove(5)
	_, ok := a.Detail()
	assert.True(t, ok)
}

func TestRemoveLastShowsEmpty(t *testing.T) {
	a := New(VariantAuto)
	a.Item(item(1, "a", "x"))
	a.Remove(1)

	assert.Equal(t, PlaceholderEmpty, a.View().Placeholder)
}

func TestRequestRefreshClearsDetail(t *testing.T) {
	a := New(VariantAuto)
	a.Item(item(1, "a", "x"))
	a.Open(envelope.SmsContent{Index: 1, Valid: true})

	a.RequestRefresh()
	_, ok := a.Detail()
	assert.False(t, ok)
	assert.Empty(t, a.View().Entries)
	assert.True(t, a.View().Loading)
}

func TestStopLoading(t *testing.T) {
	a := New(VariantAuto)
	a.RequestRefresh()
	a.StopLoading()

	v := a.View()
	assert.False(t, v.Loading)
	assert.Equal(t, PlaceholderEmpty, v.Placeholder)
}

func TestViewIsCopy(t *testing.T) {
	a := New(VariantAuto)
	a.Item(item(1, "a", "x"))

	v := a.View()
	v.Entries[0].Sender = "mutated"

	e, _ := a.Lookup(1)
	assert.Equal(t, "a", e.Sender)
}
