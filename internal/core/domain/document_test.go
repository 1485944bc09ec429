package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFlattenPages(t *testing.T) {
	text, spans := FlattenPages([]PageText{
		{Page: 2, Text: "año uno"},
		{Page: 3, Text: "two"},
	})

	assert.Equal(t, "año uno\n\ntwo", text)
	assert.Equal(t, []PageSpan{
		{Page: 2, Start: 0, End: 7},
		{Page: 3, Start: 9, End: 12},
	}, spans)
}

func TestFlattenPages_Empty(t *testing.T) {
	text, spans := FlattenPages(nil)
	assert.Empty(t, text)
	assert.Empty(t, spans)
}
