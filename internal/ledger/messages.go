package ledger

import (
	"fmt"
	"strings"
)

const duplicateReferralText = "⚠️ Esse usuário já foi convidado anteriormente..."

func referralText(r *ReferralResult) string {
	text := fmt.Sprintf(
		"🎉 Você convidou %d pessoas únicas! Parabéns!\n💰 Saldo atualizado: %s",
		r.Count, FormatBalance(r.Balance),
	)
	if r.BonusReached {
		text += fmt.Sprintf("\n🏆 WIN! Você atingiu %d convites e ganhou bônus especial!", BonusMilestone)
	}
	return text
}

// FormatBalance renders a balance as "1.50 USD | 1500 KZ"
func FormatBalance(b Balance) string {
	return fmt.Sprintf("%s USD | %d KZ", b.USD.StringFixed(2), b.KZ)
}

// FormatLeaderboard renders the weekly ranking message
func FormatLeaderboard(entries []BalanceEntry) string {
	var sb strings.Builder
	sb.WriteString("🏆 TOP 10 MINERADORES DA SEMANA 🏆\n\n")
	for i, e := range entries {
		fmt.Fprintf(&sb, "%d. Usuário %s: %s\n", i+1, e.UserID, FormatBalance(e.Balance))
	}
	return sb.String()
}
