package bot

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"froggle/internal/models"
)

// categories maps internal category keys to their display names, in menu order.
var categoryOrder = []string{"services", "food", "housing", "communication", "auto", "market", "shopping"}

var categories = map[string]string{
	"services":      "Услуги",
	"food":          "Еда",
	"housing":       "Жильё",
	"communication": "Общение",
	"auto":          "Авто",
	"market":        "Барахолка",
	"shopping":      "Шоппинг",
}

// mainCities is the shortlist offered before the full city list.
var mainCities = []string{"Тбилиси", "Батуми", "Кутаиси", "Гори"}

func categoryName(key string) string {
	if name, ok := categories[key]; ok {
		return name
	}
	return key
}

func btn(text string, a Action) tgbotapi.InlineKeyboardButton {
	return tgbotapi.NewInlineKeyboardButtonData(text, a.Encode())
}

func mainMenuKeyboard() *tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(categoryOrder)+2)
	for i := 0; i < len(categoryOrder); i += 2 {
		row := []tgbotapi.InlineKeyboardButton{
			btn(categories[categoryOrder[i]], Action{Kind: ActionCategory, Value: categoryOrder[i]}),
		}
		if i+1 < len(categoryOrder) {
			row = append(row, btn(categories[categoryOrder[i+1]], Action{Kind: ActionCategory, Value: categoryOrder[i+1]}))
		}
		rows = append(rows, row)
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		btn("➕ Подать объявление", Action{Kind: ActionAdd}),
		btn("⭐ Избранное", Action{Kind: ActionShowFavorites}),
	))
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		btn("📋 Мои объявления", Action{Kind: ActionShowMyAds}),
		btn("⚙️ Настройки", Action{Kind: ActionSettings}),
	))
	kb := tgbotapi.NewInlineKeyboardMarkup(rows...)
	return &kb
}

// navigationKeyboard is the trailing Помощь/Назад row appended after lists.
func navigationKeyboard(helpTopic string) *tgbotapi.InlineKeyboardMarkup {
	kb := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			btn("❓ Помощь", Action{Kind: ActionHelp, Value: helpTopic}),
			btn("🔙 Назад", Action{Kind: ActionBack}),
		),
	)
	return &kb
}

// adCityKeyboard offers the shortlist plus the full-list escape hatch.
func adCityKeyboard() *tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(mainCities)/2+2)
	for i := 0; i < len(mainCities); i += 2 {
		row := []tgbotapi.InlineKeyboardButton{
			btn(mainCities[i], Action{Kind: ActionAdCity, Value: mainCities[i]}),
		}
		if i+1 < len(mainCities) {
			row = append(row, btn(mainCities[i+1], Action{Kind: ActionAdCity, Value: mainCities[i+1]}))
		}
		rows = append(rows, row)
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(btn("🌍 Другой город", Action{Kind: ActionAdCityOther})))
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(btn("🔙 Назад", Action{Kind: ActionBack})))
	kb := tgbotapi.NewInlineKeyboardMarkup(rows...)
	return &kb
}

// fullCityKeyboard lists every known city, for the "other city" branch.
func fullCityKeyboard(cities []models.City) *tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(cities)/3+1)
	var row []tgbotapi.InlineKeyboardButton
	for _, c := range cities {
		row = append(row, btn(c.Name, Action{Kind: ActionAdCity, Value: c.Name}))
		if len(row) == 3 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(btn("🔙 Назад", Action{Kind: ActionBack})))
	kb := tgbotapi.NewInlineKeyboardMarkup(rows...)
	return &kb
}

// browseCityKeyboard shows only cities that actually have approved ads,
// with per-city counts.
func browseCityKeyboard(counts []models.CityCount) *tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(counts)/2+1)
	var row []tgbotapi.InlineKeyboardButton
	for _, c := range counts {
		label := fmt.Sprintf("%s (%d)", c.City, c.Count)
		row = append(row, btn(label, Action{Kind: ActionBrowseCity, Value: c.City}))
		if len(row) == 2 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		btn("❓ Помощь", Action{Kind: ActionHelp, Value: "browse"}),
		btn("🔙 Назад", Action{Kind: ActionBack}),
	))
	kb := tgbotapi.NewInlineKeyboardMarkup(rows...)
	return &kb
}

// tagFilterKeyboard offers the tags that appear on at least one approved
// listing of the browsed city, for narrowing the list.
func tagFilterKeyboard(tags []models.Tag) *tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(tags)/3+1)
	var row []tgbotapi.InlineKeyboardButton
	for _, tag := range tags {
		row = append(row, btn(tag.Name, Action{Kind: ActionTagFilter, Value: tag.Name}))
		if len(row) == 3 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	kb := tgbotapi.NewInlineKeyboardMarkup(rows...)
	return &kb
}

// tagKeyboard renders the category's tags three per row, marking selected
// ones. The Далее button appears only once a primary tag is picked.
func tagKeyboard(tags []models.Tag, selected []string, primaryPicked bool) *tgbotapi.InlineKeyboardMarkup {
	isSelected := func(name string) bool {
		for _, s := range selected {
			if s == name {
				return true
			}
		}
		return false
	}

	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(tags)/3+2)
	var row []tgbotapi.InlineKeyboardButton
	for _, tag := range tags {
		label := tag.Name
		if isSelected(tag.Name) {
			label = "✅ " + label
		}
		row = append(row, btn(label, Action{Kind: ActionTagSelect, TagID: tag.ID}))
		if len(row) == 3 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	if primaryPicked {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(btn("➡️ Далее", Action{Kind: ActionNextToTitle})))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(btn("🔙 Назад", Action{Kind: ActionBack})))
	kb := tgbotapi.NewInlineKeyboardMarkup(rows...)
	return &kb
}

func skipPriceKeyboard() *tgbotapi.InlineKeyboardMarkup {
	kb := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(btn("⏭ Без цены", Action{Kind: ActionSkipPrice})),
	)
	return &kb
}

func skipMediaKeyboard() *tgbotapi.InlineKeyboardMarkup {
	kb := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(btn("⏭ Без фото", Action{Kind: ActionSkipMedia})),
	)
	return &kb
}

// contactKeyboard offers the available contact sources.
func contactKeyboard(username, saved string) *tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	if username != "" {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			btn("@"+username, Action{Kind: ActionContact, Value: "username"}),
		))
	}
	if saved != "" {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			btn(saved, Action{Kind: ActionContact, Value: "saved"}),
		))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		btn("✍️ Ввести вручную", Action{Kind: ActionContact, Value: "manual"}),
	))
	kb := tgbotapi.NewInlineKeyboardMarkup(rows...)
	return &kb
}

func confirmContactKeyboard() *tgbotapi.InlineKeyboardMarkup {
	kb := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(btn("✅ Готово", Action{Kind: ActionConfirmContact})),
	)
	return &kb
}

func confirmKeyboard() *tgbotapi.InlineKeyboardMarkup {
	kb := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			btn("✅ Сохранить", Action{Kind: ActionConfirm, Value: "save"}),
			btn("❌ Отменить", Action{Kind: ActionConfirm, Value: "cancel"}),
		),
	)
	return &kb
}

// moderationKeyboard carries the rendered message IDs so the action can
// clean up the whole rendered block.
func moderationKeyboard(listingID int64, messageIDs []int) *tgbotapi.InlineKeyboardMarkup {
	kb := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			btn("✅ Одобрить", Action{Kind: ActionApprove, ListingID: listingID, MessageIDs: messageIDs}),
			btn("❌ Отклонить", Action{Kind: ActionReject, ListingID: listingID, MessageIDs: messageIDs}),
			btn("🗑 Удалить", Action{Kind: ActionDelete, ListingID: listingID, MessageIDs: messageIDs}),
		),
	)
	return &kb
}

func deleteConfirmKeyboard(listingID int64, messageIDs []int) *tgbotapi.InlineKeyboardMarkup {
	kb := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			btn("Да", Action{Kind: ActionDeleteConfirm, ListingID: listingID, MessageIDs: messageIDs}),
			btn("Нет", Action{Kind: ActionDeleteCancel, ListingID: listingID, MessageIDs: messageIDs}),
		),
	)
	return &kb
}

// favoriteKeyboard is attached under each rendered listing in browse mode.
func favoriteKeyboard(listingID int64, already bool) *tgbotapi.InlineKeyboardMarkup {
	var row []tgbotapi.InlineKeyboardButton
	if already {
		row = tgbotapi.NewInlineKeyboardRow(
			btn("⭐ В избранном", Action{Kind: ActionFavorite, Value: "already"}),
			btn("❌ Убрать", Action{Kind: ActionFavorite, Value: "remove", ListingID: listingID}),
		)
	} else {
		row = tgbotapi.NewInlineKeyboardRow(
			btn("⭐ В избранное", Action{Kind: ActionFavorite, Value: "add", ListingID: listingID}),
		)
	}
	kb := tgbotapi.NewInlineKeyboardMarkup(row)
	return &kb
}

func myAdKeyboard(listingID int64) *tgbotapi.InlineKeyboardMarkup {
	kb := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			btn("🗑 Удалить", Action{Kind: ActionMyDelete, ListingID: listingID}),
		),
	)
	return &kb
}

func settingsKeyboard(isAdmin bool) *tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		btn("🔔 Подписка на новые объявления", Action{Kind: ActionSubscribe}),
	))
	if isAdmin {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			btn("🛡 Модерация", Action{Kind: ActionModerate}),
		))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(btn("🔙 Назад", Action{Kind: ActionBack})))
	kb := tgbotapi.NewInlineKeyboardMarkup(rows...)
	return &kb
}

func viewUnseenKeyboard(category, city string) *tgbotapi.InlineKeyboardMarkup {
	kb := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			btn("👀 Посмотреть", Action{Kind: ActionViewUnseen, Category: category, City: city}),
		),
	)
	return &kb
}
