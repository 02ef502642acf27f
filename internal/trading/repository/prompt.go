package repository

import (
	"encoding/json"
	"fmt"

	"golang-paper-trader/internal/trading/dto"
)

// BuildVerdictPrompt renders the per-asset context bundle into the prompt
// sent to the reasoning service.
func BuildVerdictPrompt(bundle *dto.ContextBundle) (string, error) {
	snapshotJSON, err := json.MarshalIndent(bundle.Snapshot, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	position := "none"
	if bundle.Holding != nil {
		holdingJSON, err := json.Marshal(bundle.Holding)
		if err != nil {
			return "", fmt.Errorf("failed to marshal holding: %w", err)
		}
		position = string(holdingJSON)
	}

	promptTemplate := `You are a disciplined trading analyst for a simulated portfolio.

Asset: %s
Opportunity direction: %s (reason: %s, urgency: %s)
Current market snapshot:
%s
Open position: %s
Portfolio cash (USD): %.2f
Total portfolio value (USD): %.2f

Decide whether to act on this opportunity. Respond with ONLY a JSON object in this exact shape:

{
  "action": "BUY | SELL | HOLD",
  "confidence": {0 - 100},
  "entry_price": {number, current fair entry price},
  "stop_loss": {number, 0 if not applicable},
  "take_profit_levels": [{first target}, {second target}],
  "position_size_fraction": {0.0 - 1.0, fraction of portfolio value},
  "risk_level": "low | medium | high",
  "reasoning": "{one short paragraph}",
  "sources": ["{data points you relied on}"]
}

Rules:
- HOLD means do nothing; use it whenever the evidence is weak.
- For a BUY, stop_loss must be below entry_price and within 10%% of it.
- Never suggest a position_size_fraction above 0.05 unless urgency is high.`

	return fmt.Sprintf(promptTemplate,
		bundle.Symbol,
		bundle.Direction, bundle.Reason, bundle.Urgency,
		string(snapshotJSON),
		position,
		bundle.CashUSD,
		bundle.TotalValue,
	), nil
}
