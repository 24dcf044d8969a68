package service

import (
	"fmt"
	"strings"
)

// MaxPromptTextChars caps how much statement text is sent to the model.
const MaxPromptTextChars = 2500

// Keys the model is asked to return.
var (
	RequiredPromptKeys = []string{"issuer", "account_last_4", "statement_date", "due_date", "total_balance"}
	OptionalPromptKeys = []string{"currency", "minimum_payment"}
)

const promptTemplate = `You are a strict data extraction engine for bank and credit card statements.
Read the statement text below and extract the requested facts.

INSTRUCTIONS:
1. The issuer is the bank or card provider, usually printed at the very top.
2. Copy names exactly as they appear in the text. Do not guess.
3. Use null for any value that is not present.

RETURN ONLY a JSON object with these keys:
- "issuer": the exact name of the bank or provider as written in the text.
- "account_last_4": the last 4 digits of the account or card number.
- "statement_date": statement date in YYYY-MM-DD.
- "due_date": payment due date in YYYY-MM-DD (or null).
- "total_balance": numeric value without currency symbols (e.g. 1234.50).

You MAY also include:
- "currency": ISO 4217 code (e.g. USD, INR).
- "minimum_payment": numeric value.
- any bank-specific reference codes as additional string keys.

TEXT TO ANALYZE:
%s
`

// BuildPrompt formats statement text into the extraction instructions.
// Text beyond MaxPromptTextChars is dropped.
func BuildPrompt(text string) string {
	return fmt.Sprintf(promptTemplate, strings.TrimSpace(truncateRunes(text, MaxPromptTextChars)))
}
