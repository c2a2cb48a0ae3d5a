package telegram

import "github.com/go-telegram/bot/models"

// Callback data sent by the main menu buttons
const (
	CallbackInviteLink  = "meu_link"
	CallbackInvitations = "meus_convidados"
	CallbackBalance     = "meu_saldo"
	CallbackWithdraw    = "retirar_saldo"
)

func minerButton(minerURL string) models.InlineKeyboardButton {
	return models.InlineKeyboardButton{
		Text:   "🔥 Abrir Minerador Premium 🔥",
		WebApp: &models.WebAppInfo{URL: minerURL},
	}
}

// MainKeyboard returns the main menu keyboard
func MainKeyboard(minerURL, supportURL string) *models.InlineKeyboardMarkup {
	return &models.InlineKeyboardMarkup{
		InlineKeyboard: [][]models.InlineKeyboardButton{
			{minerButton(minerURL)},
			{{Text: "📋 Copiar meu link de convite", CallbackData: CallbackInviteLink}},
			{{Text: "👥 Ver meus convidados", CallbackData: CallbackInvitations}},
			{{Text: "💰 Ver meu saldo", CallbackData: CallbackBalance}},
			{{Text: "🏦 Saque / Retirada", CallbackData: CallbackWithdraw}},
			{{Text: "👨‍💼 Suporte – Fale com o gerente", URL: supportURL}},
		},
	}
}

// WelcomeKeyboard is attached to the welcome photo
func WelcomeKeyboard(minerURL string) *models.InlineKeyboardMarkup {
	return &models.InlineKeyboardMarkup{
		InlineKeyboard: [][]models.InlineKeyboardButton{
			{minerButton(minerURL)},
		},
	}
}
