// Package inbox aggregates the device's SMS listing into an ordered view.
// The device reports its inbox either as a stream (sms_list_started, one
// sms_item per message, sms_list_finished) or as a single sms_list batch;
// the Aggregator accepts whichever the configured Variant allows.
package inbox

import (
	"fmt"

	"github.com/germanamz/gsmgate/pkg/envelope"
)

// Variant selects which listing protocol the Aggregator accepts.
type Variant string

const (
	VariantAuto      Variant = "auto"
	VariantStreaming Variant = "streaming"
	VariantBatch     Variant = "batch"
)

// ParseVariant validates s. The empty string selects VariantAuto.
func ParseVariant(s string) (Variant, error) {
	switch v := Variant(s); v {
	case "":
		return VariantAuto, nil
	case VariantAuto, VariantStreaming, VariantBatch:
		return v, nil
	default:
		return "", fmt.Errorf("inbox: unknown variant %q", s)
	}
}

func (v Variant) streaming() bool { return v != VariantBatch }
func (v Variant) batch() bool     { return v != VariantStreaming }

// Placeholder is the stand-in rendered when the view has no entries.
type Placeholder string

const (
	PlaceholderNone        Placeholder = ""
	PlaceholderLoading     Placeholder = "loading"
	PlaceholderEmpty       Placeholder = "empty"
	PlaceholderUnavailable Placeholder = "unavailable"
)

// Rendering defaults.
const (
	PreviewLength = 40
	UnknownSender = "Unknown"
	NotAvailable  = "N/A"
	ellipsis      = "..."
)

// Entry is one message summary in the view.
type Entry struct {
	Index     int
	Sender    string
	Preview   string
	Body      string
	Timestamp string
	Unread    bool
}

// Detail is the full content of one message, shown until dismissed.
type Detail struct {
	Index     int
	Sender    string
	Timestamp string
	Body      string
}

// View is a snapshot of the inbox for rendering.
type View struct {
	Entries     []Entry
	Placeholder Placeholder
	Loading     bool
}

// Aggregator builds the inbox view. Like the USSD machine it is owned by the
// session actor and is not safe for concurrent use.
type Aggregator struct {
	variant     Variant
	entries     []Entry
	placeholder Placeholder
	loading     bool
	detail      *Detail
}

// New creates an empty Aggregator accepting the given variant.
func New(variant Variant) *Aggregator {
	if variant == "" {
		variant = VariantAuto
	}

	return &Aggregator{variant: variant}
}

// Variant returns the accepted listing protocol.
func (a *Aggregator) Variant() Variant { return a.variant }

// RequestRefresh clears the view and shows the loading placeholder, as when
// getSMSList is sent. Any open detail is dismissed.
func (a *Aggregator) RequestRefresh() {
	a.entries = nil
	a.placeholder = PlaceholderLoading
	a.loading = true
	a.detail = nil
}

// Started handles sms_list_started. It reports false when streaming is not
// accepted.
func (a *Aggregator) Started() bool {
	if !a.variant.streaming() {
		return false
	}

	a.entries = nil
	a.placeholder = PlaceholderLoading
	a.loading = true

	return true
}

// Item handles sms_item. The entry is prepended so the newest streamed item
// ends up first. Items without a usable index and duplicate indices are
// dropped; the return value reports whether the view changed.
func (a *Aggregator) Item(it envelope.SmsItem) bool {
	if !a.variant.streaming() || !it.Valid || a.find(it.Index) >= 0 {
		return false
	}

	a.entries = append([]Entry{entryOf(it)}, a.entries...)
	a.placeholder = PlaceholderNone

	return true
}

// Finished handles sms_list_finished. incomplete is true when the device
// ended the listing on an error or timeout; entries received so far are kept.
func (a *Aggregator) Finished(f envelope.SmsListFinished) (incomplete bool) {
	if !a.variant.streaming() {
		return false
	}

	a.loading = false
	if len(a.entries) == 0 {
		a.placeholder = PlaceholderEmpty
	}

	return !f.Complete()
}

// Batch handles sms_list. A list replaces all entries in device order; any
// other payload shape shows the unavailable placeholder.
func (a *Aggregator) Batch(l envelope.SmsList) bool {
	if !a.variant.batch() {
		return false
	}

	a.loading = false
	a.entries = nil

	if !l.Available {
		a.placeholder = PlaceholderUnavailable
		return true
	}

	seen := make(map[int]bool, len(l.Items))
	for _, it := range l.Items {
		if !it.Valid || seen[it.Index] {
			continue
		}
		seen[it.Index] = true
		a.entries = append(a.entries, entryOf(it))
	}

	a.placeholder = PlaceholderNone
	if len(a.entries) == 0 {
		a.placeholder = PlaceholderEmpty
	}

	return true
}

// Remove drops the entry with index and closes the detail if it shows that
// message. It reports whether an entry was removed.
func (a *Aggregator) Remove(index int) bool {
	if a.detail != nil && a.detail.Index == index {
		a.detail = nil
	}

	i := a.find(index)
	if i < 0 {
		return false
	}

	a.entries = append(a.entries[:i], a.entries[i+1:]...)
	if len(a.entries) == 0 && !a.loading {
		a.placeholder = PlaceholderEmpty
	}

	return true
}

// Open handles sms_content. Sender and timestamp come from the matching
// summary; NotAvailable is used when there is none.
func (a *Aggregator) Open(c envelope.SmsContent) (Detail, bool) {
	a.loading = false
	if !c.Valid {
		return Detail{}, false
	}

	d := Detail{Index: c.Index, Sender: NotAvailable, Timestamp: NotAvailable, Body: c.Body}
	if i := a.find(c.Index); i >= 0 {
		d.Sender = a.entries[i].Sender
		d.Timestamp = a.entries[i].Timestamp
	}

	a.detail = &d

	return d, true
}

// Detail returns the open detail, if any.
func (a *Aggregator) Detail() (Detail, bool) {
	if a.detail == nil {
		return Detail{}, false
	}

	return *a.detail, true
}

// CloseDetail dismisses the open detail.
func (a *Aggregator) CloseDetail() { a.detail = nil }

// StopLoading clears the loading indicator, as when the device reports an
// error.
func (a *Aggregator) StopLoading() {
	a.loading = false
	if a.placeholder == PlaceholderLoading {
		a.placeholder = PlaceholderNone
		if len(a.entries) == 0 {
			a.placeholder = PlaceholderEmpty
		}
	}
}

// Lookup returns the entry with index.
func (a *Aggregator) Lookup(index int) (Entry, bool) {
	i := a.find(index)
	if i < 0 {
		return Entry{}, false
	}

	return a.entries[i], true
}

// View returns a snapshot of the inbox.
func (a *Aggregator) View() View {
	entries := make([]Entry, len(a.entries))
	copy(entries, a.entries)

	return View{Entries: entries, Placeholder: a.placeholder, Loading: a.loading}
}

// Reset empties the inbox, as after a disconnect.
func (a *Aggregator) Reset() {
	a.entries = nil
	a.placeholder = PlaceholderNone
	a.loading = false
	a.detail = nil
}

func (a *Aggregator) find(index int) int {
	for i, e := range a.entries {
		if e.Index == index {
			return i
		}
	}

	return -1
}

func entryOf(it envelope.SmsItem) Entry {
	sender := it.Sender
	if sender == "" {
		sender = UnknownSender
	}

	return Entry{
		Index:     it.Index,
		Sender:    sender,
		Preview:   Preview(it.Body),
		Body:      it.Body,
		Timestamp: it.Timestamp,
		Unread:    it.Unread(),
	}
}

// Preview shortens body to PreviewLength characters, marking the cut.
func Preview(body string) string {
	runes := []rune(body)
	if len(runes) <= PreviewLength {
		return body
	}

	return string(runes[:PreviewLength]) + ellipsis
}
