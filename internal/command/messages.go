package command

import "fmt"

const (
	commandSetDelay   = "setdelay"
	commandSetChannel = "setchannel"
	commandEnable     = "enable"
	commandDisable    = "disable"
	commandStatus     = "status"
	commandHelp       = "help"

	optionSeconds = "seconds"
	optionChannel = "channel"

	slashCommandSetDelayDescription   = "通知遅延時間を設定します"
	slashCommandSetChannelDescription = "通知送信先チャンネルを設定します"
	slashCommandEnableDescription     = "ボイスチャンネル通知を有効にします"
	slashCommandDisableDescription    = "ボイスチャンネル通知を無効にします"
	slashCommandStatusDescription     = "現在の設定状況を確認します"
	slashCommandHelpDescription       = "VC Delay Notifierの使い方を表示します"
	optionChannelDescription          = "通知を送信するテキストチャンネル"

	messageEphemeralGuildOnly      = ":warning: **このコマンドはサーバー内でのみ実行できます。**"
	messageEphemeralUnknownCommand = ":warning: **不明なコマンドです。**"
	messageEphemeralUpdateFailed   = "❌ 設定の更新に失敗しました。しばらく時間をおいて再度お試しください。"
	messageEphemeralLoadFailed     = "❌ 設定の取得に失敗しました。しばらく時間をおいて再度お試しください。"
	messageEphemeralChannelMissing = "❌ チャンネルを指定してください。"
	messageEphemeralEnabled        = "✅ ボイスチャンネル通知を**有効**にしました。"
	messageEphemeralDisabled       = "🔇 ボイスチャンネル通知を**無効**にしました。"

	statusEmbedTitle  = "🔧 VC Delay Notifier 設定状況"
	statusEmbedFooter = "設定を変更するには対応するコマンドを実行してください。"
	statusNeedsSetup  = "初期設定が必要です。\n`/setchannel` で通知チャンネルを設定してください。"
	statusUnset       = "未設定"

	helpEmbedTitle       = "📚 VC Delay Notifier ヘルプ"
	helpEmbedDescription = "ボイスチャンネル参加通知を遅延送信するBotです。"
	helpEmbedUsage       = "1. `/setchannel` で通知チャンネルを設定\n" +
		"2. `/setdelay` で遅延時間を調整（お好みで）\n" +
		"3. `/enable` で通知を有効化\n" +
		"4. ボイスチャンネルに参加して動作確認"
	helpEmbedPermissions = "これらのコマンドは「チャンネル管理」権限を持つユーザーのみ実行できます。"
	helpEmbedFooter      = "VC Delay Notifier | 間違って参加した場合の通知を回避"

	colorBlue  = 0x3498db
	colorGreen = 0x2ecc71
)

func optionSecondsDescription(minSeconds, maxSeconds int) string {
	return fmt.Sprintf("遅延時間（秒）- %d秒～%d秒の範囲で設定", minSeconds, maxSeconds)
}

func delayOutOfRangeMessage(minSeconds, maxSeconds int) string {
	return fmt.Sprintf("⚠️ 遅延時間は%d秒～%d秒（%s～%s）の範囲で設定してください。", minSeconds, maxSeconds, humanDuration(minSeconds), humanDuration(maxSeconds))
}

func delayUpdatedMessage(seconds int) string {
	return fmt.Sprintf("✅ 通知遅延時間を**%d秒**（%d分%d秒）に設定しました。", seconds, seconds/60, seconds%60)
}

func channelUpdatedMessage(channelID string) string {
	return fmt.Sprintf("✅ 通知チャンネルを<#%s>に設定しました。", channelID)
}

func channelPermissionMissingMessage(channelID string) string {
	return fmt.Sprintf("❌ <#%s> に対してメッセージ送信またはEmbed投稿権限がありません。\nBotに必要な権限を付与してから再度お試しください。", channelID)
}

func delayFieldValue(seconds int) string {
	return fmt.Sprintf("%d秒（%d分%d秒）", seconds, seconds/60, seconds%60)
}

func helpCommandList(minSeconds, maxSeconds int) string {
	return "`/setchannel` - 通知送信先チャンネルを設定\n" +
		fmt.Sprintf("`/setdelay` - 通知遅延時間を設定（%d-%d秒）\n", minSeconds, maxSeconds) +
		"`/enable` - 通知を有効化\n" +
		"`/disable` - 通知を無効化\n" +
		"`/status` - 現在の設定状況を確認\n" +
		"`/help` - このヘルプを表示"
}

// humanDuration renders whole minutes as "N分" and anything else as "N秒".
func humanDuration(seconds int) string {
	if seconds >= 60 && seconds%60 == 0 {
		return fmt.Sprintf("%d分", seconds/60)
	}
	return fmt.Sprintf("%d秒", seconds)
}
