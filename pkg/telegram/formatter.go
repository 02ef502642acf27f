package telegram

import (
	"fmt"
	"strings"
	"time"
)

// FormatTradeExecutedMessage builds the notification sent after a trade is
// applied to a portfolio.
func FormatTradeExecutedMessage(side, symbol string, quantity, price, totalCost, cashAfter float64, method string, executedAt time.Time) string {
	var sb strings.Builder
	emoji := "🟢"
	if side == "SELL" {
		emoji = "🔴"
	}
	sb.WriteString(fmt.Sprintf("%s *%s %s*\n", emoji, side, symbol))
	sb.WriteString(fmt.Sprintf("Quantity: `%.8f`\n", quantity))
	sb.WriteString(fmt.Sprintf("Price: `%.4f`\n", price))
	sb.WriteString(fmt.Sprintf("Total: `%.4f`\n", totalCost))
	sb.WriteString(fmt.Sprintf("Cash after: `%.4f`\n", cashAfter))
	sb.WriteString(fmt.Sprintf("Method: %s\n", method))
	sb.WriteString(fmt.Sprintf("Executed at: %s", executedAt.UTC().Format(time.RFC3339)))
	return sb.String()
}

// FormatForcedExitMessage builds the notification for a stop-loss or
// take-profit closeout by the position monitor.
func FormatForcedExitMessage(symbol, reason string, quantity, triggerPrice, realizedPnL float64) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("⚠️ *Forced exit: %s*\n", symbol))
	sb.WriteString(fmt.Sprintf("Reason: %s\n", reason))
	sb.WriteString(fmt.Sprintf("Quantity: `%.8f`\n", quantity))
	sb.WriteString(fmt.Sprintf("Trigger price: `%.4f`\n", triggerPrice))
	if realizedPnL >= 0 {
		sb.WriteString(fmt.Sprintf("Realized P&L: `+%.4f`", realizedPnL))
	} else {
		sb.WriteString(fmt.Sprintf("Realized P&L: `%.4f`", realizedPnL))
	}
	return sb.String()
}

// FormatDailyLossHaltMessage builds the notification sent when the daily-loss
// circuit breaker trips.
func FormatDailyLossHaltMessage(dateKey string, lossFraction, maxLossFraction float64) string {
	return fmt.Sprintf("🛑 *Automated trading halted for %s*\nCumulative realized loss %.2f%% reached the %.2f%% daily limit. Automated entries resume at the next day boundary.",
		dateKey, lossFraction*100, maxLossFraction*100)
}

// FormatRecommendationMessage builds the notification for a newly persisted
// recommendation.
func FormatRecommendationMessage(symbol, action string, confidence, entryPrice, stopLoss float64, expiresAt time.Time) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("💡 *%s %s*\n", action, symbol))
	sb.WriteString(fmt.Sprintf("Confidence: `%.0f`\n", confidence))
	sb.WriteString(fmt.Sprintf("Entry: `%.4f`\n", entryPrice))
	if stopLoss > 0 {
		sb.WriteString(fmt.Sprintf("Stop loss: `%.4f`\n", stopLoss))
	}
	sb.WriteString(fmt.Sprintf("Expires: %s", expiresAt.UTC().Format(time.RFC3339)))
	return sb.String()
}
