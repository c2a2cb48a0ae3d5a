package telegram

const (
	textMenu = "🚀 BELIEVE MINER – A Nova Era da Mineração Digital 🌍\n" +
		"💎 Ganhe lucros internacionais agora mesmo!"

	textWelcomeCaption = "📌 Convide e ganhe $50!\n" +
		"💰 Deposite apenas 9.000 KZ (≈ $9) e receba diariamente 300 KZ (≈ $0.30) até 1 ano.\n\n" +
		"🚀 BELIEVE MINER – A Nova Era da Mineração Digital 🌍\n" +
		"💎 Ganhe lucros internacionais agora mesmo!\n\n" +
		"✨ Por que escolher a BELIEVE MINER?\n" +
		"- Pagamentos rápidos e seguros em USDT e KZ\n" +
		"- Plataforma moderna e confiável\n" +
		"- Lucros internacionais acessíveis para todos\n" +
		"- Sistema de referência que multiplica seus ganhos\n\n" +
		"🔑 Acesso exclusivo:"

	textInviteLink      = "📋 Seu link de convite: %s"
	textInvitationCount = "👥 Você já convidou %d pessoas únicas."
	textBalance         = "💰 Seu saldo: "

	textNothingToWithdraw  = "⚠️ Você não possui saldo disponível para saque."
	textPayoutInstructions = "🏦 Para retirar seu saldo, envie:\n\n" +
		"📱 Seu número de celular internacional associado ao banco\n" +
		"ou\n" +
		"💳 Endereço USDT (TRON20 Tether)\n\n" +
		"Assim que enviar, o saque será processado com sucesso."
	textPayoutDone         = "✅ Levantamento realizado com sucesso! Verifique sua carteira ou conta bancária."
	textPressWithdrawFirst = "🏦 Para sacar, toque primeiro em «Saque / Retirada» no menu."

	textNotUnderstood = "⚠️ Não entendi sua mensagem. Voltando ao menu principal..."

	textStartError    = "❌ Ocorreu um erro. Tente novamente em alguns segundos."
	textCallbackError = "❌ Erro ao processar requisição"
	textMessageError  = "❌ Ocorreu um erro ao processar sua mensagem."
)
