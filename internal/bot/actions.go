package bot

import (
	"fmt"
	"strconv"
	"strings"
)

// ActionKind names an inline-keyboard action.
type ActionKind string

const (
	ActionCategory       ActionKind = "category"
	ActionAdCity         ActionKind = "city"
	ActionAdCityOther    ActionKind = "city_other"
	ActionBrowseCity     ActionKind = "city_select"
	ActionTagSelect      ActionKind = "tag_select"
	ActionTagFilter      ActionKind = "tag_filter"
	ActionNextToTitle    ActionKind = "next_to_title"
	ActionSkipPrice      ActionKind = "skip_price"
	ActionSkipMedia      ActionKind = "media_skip"
	ActionContact        ActionKind = "contact"
	ActionConfirmContact ActionKind = "confirm_contact"
	ActionConfirm        ActionKind = "confirm"
	ActionApprove        ActionKind = "approve"
	ActionReject         ActionKind = "reject"
	ActionDelete         ActionKind = "delete"
	ActionDeleteConfirm  ActionKind = "delete_confirm"
	ActionDeleteCancel   ActionKind = "delete_cancel"
	ActionFavorite       ActionKind = "favorite"
	ActionMyDelete       ActionKind = "my_delete"
	ActionSubscribe      ActionKind = "subscribe"
	ActionViewUnseen     ActionKind = "view_unseen"
	ActionHelp           ActionKind = "help"
	ActionBack           ActionKind = "back"
	ActionAdd            ActionKind = "add"
	ActionSettings       ActionKind = "settings"
	ActionModerate       ActionKind = "moderate"
	ActionShowFavorites  ActionKind = "show_favorites"
	ActionShowMyAds      ActionKind = "show_my_ads"
)

// Action is the structured form of a callback payload. Callback data is
// decoded exactly once, at the transport boundary; handlers never parse
// strings themselves.
type Action struct {
	Kind ActionKind

	// Value carries the single string argument of the action: a category or
	// city name, a contact choice, a confirm choice or a help topic.
	Value string

	// Category and City are set for actions that must work outside any
	// conversation state (unseen-count notices).
	Category string
	City     string

	ListingID int64
	TagID     int64

	// MessageIDs are the messages a moderation action must clean up as a
	// unit: the rendered listing plus its action message.
	MessageIDs []int
}

// Encode renders the action back into callback data.
func (a Action) Encode() string {
	switch a.Kind {
	case ActionCategory, ActionAdCity, ActionAdCityOther, ActionBrowseCity, ActionTagFilter, ActionContact, ActionConfirm, ActionHelp:
		if a.Value == "" {
			return string(a.Kind)
		}
		return fmt.Sprintf("%s:%s", a.Kind, a.Value)
	case ActionTagSelect:
		return fmt.Sprintf("%s:%d", a.Kind, a.TagID)
	case ActionApprove, ActionReject, ActionDelete, ActionDeleteConfirm, ActionDeleteCancel:
		return fmt.Sprintf("%s:%d:%s", a.Kind, a.ListingID, joinInts(a.MessageIDs))
	case ActionFavorite:
		if a.ListingID == 0 {
			return fmt.Sprintf("%s:%s", a.Kind, a.Value)
		}
		return fmt.Sprintf("%s:%s:%d", a.Kind, a.Value, a.ListingID)
	case ActionMyDelete:
		return fmt.Sprintf("%s:%d", a.Kind, a.ListingID)
	case ActionViewUnseen:
		return fmt.Sprintf("%s:%s:%s", a.Kind, a.Category, a.City)
	default:
		return string(a.Kind)
	}
}

// ParseAction decodes callback data into an Action.
func ParseAction(data string) (Action, error) {
	parts := strings.SplitN(data, ":", 2)
	kind := ActionKind(parts[0])
	rest := ""
	if len(parts) == 2 {
		rest = parts[1]
	}

	a := Action{Kind: kind}
	switch kind {
	case ActionCategory, ActionAdCity, ActionBrowseCity, ActionTagFilter, ActionContact, ActionConfirm, ActionHelp:
		a.Value = rest
	case ActionAdCityOther, ActionNextToTitle, ActionSkipPrice, ActionSkipMedia, ActionConfirmContact,
		ActionSubscribe, ActionBack, ActionAdd, ActionSettings, ActionModerate,
		ActionShowFavorites, ActionShowMyAds:
		// no arguments
	case ActionTagSelect:
		id, err := strconv.ParseInt(rest, 10, 64)
		if err != nil {
			return Action{}, fmt.Errorf("invalid tag id %q: %w", rest, err)
		}
		a.TagID = id
	case ActionApprove, ActionReject, ActionDelete, ActionDeleteConfirm, ActionDeleteCancel:
		fields := strings.SplitN(rest, ":", 2)
		id, err := strconv.ParseInt(fields[0], 10, 64)
		if err != nil {
			return Action{}, fmt.Errorf("invalid listing id %q: %w", fields[0], err)
		}
		a.ListingID = id
		if len(fields) == 2 && fields[1] != "" {
			ids, err := splitInts(fields[1])
			if err != nil {
				return Action{}, fmt.Errorf("invalid message ids %q: %w", fields[1], err)
			}
			a.MessageIDs = ids
		}
	case ActionMyDelete:
		id, err := strconv.ParseInt(rest, 10, 64)
		if err != nil {
			return Action{}, fmt.Errorf("invalid listing id %q: %w", rest, err)
		}
		a.ListingID = id
	case ActionFavorite:
		fields := strings.SplitN(rest, ":", 2)
		a.Value = fields[0]
		if len(fields) == 2 {
			id, err := strconv.ParseInt(fields[1], 10, 64)
			if err != nil {
				return Action{}, fmt.Errorf("invalid listing id %q: %w", fields[1], err)
			}
			a.ListingID = id
		}
	case ActionViewUnseen:
		fields := strings.SplitN(rest, ":", 2)
		if len(fields) != 2 {
			return Action{}, fmt.Errorf("view_unseen needs category and city, got %q", rest)
		}
		a.Category = fields[0]
		a.City = fields[1]
	default:
		return Action{}, fmt.Errorf("unknown action %q", data)
	}
	return a, nil
}

func joinInts(ids []int) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(id)
	}
	return strings.Join(parts, ",")
}

func splitInts(s string) ([]int, error) {
	parts := strings.Split(s, ",")
	ids := make([]int, 0, len(parts))
	for _, p := range parts {
		id, err := strconv.Atoi(p)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}
