package suggest

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greenscale93/IIsys/apperrors"
)

func valueSuggestion() *Suggestion {
	return &Suggestion{
		Kind:       Value,
		Entity:     "Проекты",
		Field:      "Руководитель",
		AskedValue: "Сорокина",
		Candidates: []apperrors.Candidate{{Label: "Сорокин", Score: 93}, {Label: "Сорокоумов", Score: 70}},
	}
}

func TestSlotLifecycle(t *testing.T) {
	var s Slot
	assert.Equal(t, "NONE", s.State())

	s.Offer(valueSuggestion())
	assert.Equal(t, "PENDING_VALUE", s.State())

	sg, c, err := s.Accept(Value, 1)
	require.NoError(t, err)
	assert.Equal(t, "Сорокин", c.Label)
	assert.Equal(t, "Сорокина", sg.AskedValue)
	assert.Equal(t, "NONE", s.State())
	assert.Nil(t, s.Current())
}

func TestSlotAcceptErrors(t *testing.T) {
	var s Slot
	_, _, err := s.Accept(Value, 1)
	assert.True(t, errors.Is(err, apperrors.ErrNoSuggestion))

	s.Offer(valueSuggestion())
	_, _, err = s.Accept(Column, 1)
	assert.True(t, errors.Is(err, apperrors.ErrWrongSuggestion))

	for _, idx := range []int{0, 3, -1} {
		_, _, err = s.Accept(Value, idx)
		require.Error(t, err)
		assert.True(t, errors.Is(err, apperrors.ErrIndexOutOfRange))
		assert.Contains(t, errors.FlattenHints(err), "pick 1..2")
	}
	// a bad index leaves the suggestion pending
	assert.Equal(t, "PENDING_VALUE", s.State())

	_, c, err := s.Accept(Value, 2)
	require.NoError(t, err)
	assert.Equal(t, "Сорокоумов", c.Label)
}

func TestSlotRejectAndClear(t *testing.T) {
	var s Slot
	assert.True(t, errors.Is(s.Reject(), apperrors.ErrNoSuggestion))

	s.Offer(valueSuggestion())
	require.NoError(t, s.Reject())
	assert.Equal(t, "NONE", s.State())

	s.Offer(&Suggestion{Kind: Column, Candidates: []apperrors.Candidate{{Label: "Руководитель_Наименование"}}})
	s.Offer(&Suggestion{Kind: SaveAlias, TemplateID: "by_manager"})
	assert.Equal(t, "PENDING_SAVE_ALIAS", s.State())

	sg, _, err := s.Accept(SaveAlias, 1)
	require.NoError(t, err)
	assert.Equal(t, "by_manager", sg.TemplateID)

	s.Offer(valueSuggestion())
	s.Offer(nil)
	assert.Equal(t, None, s.Kind())

	s.Offer(valueSuggestion())
	s.Clear()
	assert.Equal(t, "NONE", s.State())
}
