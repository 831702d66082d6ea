package telegram

import "fmt"

// Static menus. The downloads tree mirrors the installer and profile
// links the support desk hands out.

// Commands is the bot command menu published at startup.
func Commands() []BotCommand {
	return []BotCommand{
		{Command: "start", Description: "Open the main menu"},
		{Command: "profile", Description: "Show your profile"},
		{Command: "help", Description: "How to use the bot"},
	}
}

// MainMenu is the entry keyboard.
func MainMenu() *InlineKeyboardMarkup {
	return &InlineKeyboardMarkup{InlineKeyboard: [][]InlineKeyboardButton{
		{{Text: "New request", CallbackData: "new_request"}},
		{{Text: "My requests", CallbackData: "my_requests"}},
		{{Text: "Register", CallbackData: "register"}},
		{{Text: "Downloads", CallbackData: "downloads"}},
	}}
}

// DownloadsMenu lists client installers plus the profiles subsection.
func DownloadsMenu() *InlineKeyboardMarkup {
	return &InlineKeyboardMarkup{InlineKeyboard: [][]InlineKeyboardButton{
		{{Text: "Web budget", URL: "https://keysystems.ru/files/web/INSTALL/SMART2/install/24.2.318.220/BudgetSmart_24.2.318.220.exe"}},
		{{Text: "Svod smart", URL: "https://keysystems.ru/files/smeta/install/svod-smart/INSTALL/23.1.0.38909/SvodSmart23.Client.Setup_23.1.0.38909_net472.exe"}},
		{{Text: "Project", URL: "https://keysystems.ru/files/dwh/DWH2/23.0/23.11.61765.0/project.client.setup_23.11.61765.0_net472.exe"}},
		{{Text: "Profiles", CallbackData: "downloads_profiles"}},
		{{Text: "Back", CallbackData: "start"}},
	}}
}

// ProfilesMenu selects a budget profile.
func ProfilesMenu() *InlineKeyboardMarkup {
	return &InlineKeyboardMarkup{InlineKeyboard: [][]InlineKeyboardButton{
		{{Text: "Municipal budget", CallbackData: "downloads_municipal"}},
		{{Text: "Regional budget", CallbackData: "downloads_regional"}},
		{{Text: "Main menu", CallbackData: "start"}},
	}}
}

// MunicipalYearsMenu lists municipal profile documents per year.
func MunicipalYearsMenu() *InlineKeyboardMarkup {
	return &InlineKeyboardMarkup{InlineKeyboard: [][]InlineKeyboardButton{
		{{Text: "2025", URL: "https://ufin48.ru/Show/File/7834?ParentItemId=218"}},
		{{Text: "2024", URL: "https://ufin48.ru/Show/File/7833?ParentItemId=218"}},
		{{Text: "2023", URL: "https://ufin48.ru/Show/File/7832?ParentItemId=218"}},
		{{Text: "Main menu", CallbackData: "start"}},
	}}
}

// RegionalYearsMenu lists regional profile documents per year.
func RegionalYearsMenu() *InlineKeyboardMarkup {
	return &InlineKeyboardMarkup{InlineKeyboard: [][]InlineKeyboardButton{
		{{Text: "2025", URL: "https://ufin48.ru/Show/File/7655?ParentItemId=218"}},
		{{Text: "2024", URL: "http://ufin48.ru/Show/File/6876?ParentItemId=218"}},
		{{Text: "2023", URL: "http://ufin48.ru/Show/File/6877?ParentItemId=218"}},
		{{Text: "Main menu", CallbackData: "start"}},
	}}
}

// AcceptKeyboard offers to accept a freshly submitted request.
func AcceptKeyboard(requestID int64) *InlineKeyboardMarkup {
	return &InlineKeyboardMarkup{InlineKeyboard: [][]InlineKeyboardButton{
		{{Text: "Accept", CallbackData: fmt.Sprintf("assign:%d", requestID)}},
	}}
}

// AssignedKeyboard offers the assigned admin's next moves.
func AssignedKeyboard(requestID int64) *InlineKeyboardMarkup {
	return &InlineKeyboardMarkup{InlineKeyboard: [][]InlineKeyboardButton{
		{{Text: "Ask for details", CallbackData: fmt.Sprintf("clarify:%d", requestID)}},
		{{Text: "Mark done", CallbackData: fmt.Sprintf("done:%d", requestID)}},
	}}
}

// DialogueKeyboard offers to end an open clarification.
func DialogueKeyboard(requestID int64) *InlineKeyboardMarkup {
	return &InlineKeyboardMarkup{InlineKeyboard: [][]InlineKeyboardButton{
		{{Text: "End dialogue", CallbackData: fmt.Sprintf("close:%d", requestID)}},
	}}
}

// DoneKeyboard offers to complete an assigned request.
func DoneKeyboard(requestID int64) *InlineKeyboardMarkup {
	return &InlineKeyboardMarkup{InlineKeyboard: [][]InlineKeyboardButton{
		{{Text: "Mark done", CallbackData: fmt.Sprintf("done:%d", requestID)}},
	}}
}
