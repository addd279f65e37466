package picker

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buckleypaul/sideload/internal/device"
)

func records() []device.Record {
	return []device.Record{
		{CoreID: "core-a", LegacyID: "udid-a", Name: "Pocket iPhone", Reachability: device.ReachabilityActive},
		{CoreID: "core-b", LegacyID: "udid-b", Name: "Desk iPad", Reachability: device.ReachabilityRecentlyDisconnected},
		{CoreID: "core-c", LegacyID: "udid-c", Name: "Old iPhone", Reachability: device.ReachabilityOfflineKnown},
	}
}

func send(m tea.Model, msgs ...tea.Msg) tea.Model {
	for _, msg := range msgs {
		m, _ = m.Update(msg)
	}
	return m
}

func typeText(s string) []tea.Msg {
	var msgs []tea.Msg
	for _, r := range s {
		msgs = append(msgs, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
	return msgs
}

func TestPickerSelectsUnderCursor(t *testing.T) {
	m := send(New("Choose", records()),
		tea.KeyMsg{Type: tea.KeyDown},
		tea.KeyMsg{Type: tea.KeyEnter},
	)

	rec, ok := m.(Model).Chosen()
	require.True(t, ok)
	assert.Equal(t, "core-b", rec.CoreID)
	assert.Equal(t, "udid-b", rec.LegacyID)
}

func TestPickerFilter(t *testing.T) {
	msgs := append(typeText("desk"), tea.KeyMsg{Type: tea.KeyEnter})
	m := send(New("Choose", records()), msgs...)

	rec, ok := m.(Model).Chosen()
	require.True(t, ok)
	assert.Equal(t, "Desk iPad", rec.Name)
}

func TestPickerFilterByIdentifier(t *testing.T) {
	m := send(New("Choose", records()), typeText("udid-c")...).(Model)
	require.Len(t, m.filtered, 1)
	assert.Equal(t, "core-c", m.filtered[0].CoreID)
}

func TestPickerNoMatchEnterDoesNothing(t *testing.T) {
	msgs := append(typeText("zzz"), tea.KeyMsg{Type: tea.KeyEnter})
	m := send(New("Choose", records()), msgs...).(Model)

	_, ok := m.Chosen()
	assert.False(t, ok)
	assert.Contains(t, m.View(), "No matches")
}

func TestPickerEscCancels(t *testing.T) {
	m := send(New("Choose", records()), tea.KeyMsg{Type: tea.KeyEsc}).(Model)
	_, ok := m.Chosen()
	assert.False(t, ok)
	assert.True(t, m.cancelled)
}

func TestPickerCursorStaysInBounds(t *testing.T) {
	m := send(New("Choose", records()),
		tea.KeyMsg{Type: tea.KeyUp},
		tea.KeyMsg{Type: tea.KeyDown}, tea.KeyMsg{Type: tea.KeyDown},
		tea.KeyMsg{Type: tea.KeyDown}, tea.KeyMsg{Type: tea.KeyDown},
	).(Model)
	assert.Equal(t, 2, m.cursor)
}

func TestPickerView(t *testing.T) {
	view := New("Choose a device", records()).View()
	for _, want := range []string{"Choose a device", "Pocket iPhone", "(3/3 devices)"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}
}

func TestWindow(t *testing.T) {
	start, end := window(0, 3, 12)
	assert.Equal(t, [2]int{0, 3}, [2]int{start, end})
	start, end = window(20, 30, 12)
	assert.Equal(t, [2]int{9, 21}, [2]int{start, end})
}

func TestFuzzyMatch(t *testing.T) {
	assert.True(t, fuzzyMatch("pocket iphone", "pkt"))
	assert.False(t, fuzzyMatch("desk ipad", "phone"))
}
