package bot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAction_RoundTrip(t *testing.T) {
	cases := []Action{
		{Kind: ActionCategory, Value: "auto"},
		{Kind: ActionAdCity, Value: "Тбилиси"},
		{Kind: ActionAdCityOther},
		{Kind: ActionBrowseCity, Value: "Батуми"},
		{Kind: ActionTagFilter, Value: "тюнинг"},
		{Kind: ActionTagSelect, TagID: 42},
		{Kind: ActionNextToTitle},
		{Kind: ActionSkipPrice},
		{Kind: ActionSkipMedia},
		{Kind: ActionContact, Value: "username"},
		{Kind: ActionConfirmContact},
		{Kind: ActionConfirm, Value: "save"},
		{Kind: ActionApprove, ListingID: 7, MessageIDs: []int{100, 101, 102}},
		{Kind: ActionReject, ListingID: 7, MessageIDs: []int{100}},
		{Kind: ActionDelete, ListingID: 9, MessageIDs: []int{5, 6}},
		{Kind: ActionDeleteConfirm, ListingID: 9, MessageIDs: []int{5, 6}},
		{Kind: ActionDeleteCancel, ListingID: 9, MessageIDs: []int{5, 6}},
		{Kind: ActionFavorite, Value: "add", ListingID: 3},
		{Kind: ActionFavorite, Value: "already"},
		{Kind: ActionMyDelete, ListingID: 11},
		{Kind: ActionSubscribe},
		{Kind: ActionViewUnseen, Category: "auto", City: "Тбилиси"},
		{Kind: ActionHelp, Value: "add"},
		{Kind: ActionBack},
		{Kind: ActionModerate},
	}
	for _, want := range cases {
		got, err := ParseAction(want.Encode())
		require.NoError(t, err, "encoded %q", want.Encode())
		assert.Equal(t, want, got)
	}
}

func TestParseAction_Invalid(t *testing.T) {
	for _, data := range []string{
		"",
		"bogus",
		"tag_select:abc",
		"approve:xyz",
		"approve:5:1,abc",
		"my_delete:",
		"view_unseen:auto",
	} {
		_, err := ParseAction(data)
		assert.Error(t, err, "data %q", data)
	}
}
