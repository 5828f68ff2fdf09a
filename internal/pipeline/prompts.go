package pipeline

import (
	"sort"
	"strings"

	"github.com/dvloznov/trade-ledger/internal/domain"
)

const basePrompt = "You are a parser for weighbridge slips and trade notes of a commodity trading business.\n\n" +
	"Task:\n" +
	"- Extract every trade and every standalone payment on the attached slip.\n" +
	"- Output STRICT JSON only (no comments, no trailing commas, no extra text).\n" +
	"- Output a JSON array of objects.\n\n" +
	"A trade object has these fields:\n" +
	"- \"type\": \"trade\"\n" +
	"- \"date\": string, ISO format \"YYYY-MM-DD\"\n" +
	"- \"item\": string, the commodity\n" +
	"- \"vehicleNo\": string or null\n" +
	"- \"supplierName\": string\n" +
	"- \"buyerName\": string\n" +
	"- \"scaleWeight\": number\n" +
	"- \"less\": number or null, the deduction from the scale weight\n" +
	"- \"supplierRate\": number, price per unit paid to the supplier\n" +
	"- \"buyerRate\": number, price per unit charged to the buyer\n" +
	"- \"paymentsToSupplier\": array of {\"amount\": number, \"date\": string, \"method\": string} or []\n" +
	"- \"paymentsFromBuyer\": array of {\"amount\": number, \"date\": string, \"method\": string} or []\n\n" +
	"A payment object has these fields:\n" +
	"- \"type\": \"payment\"\n" +
	"- \"date\": string, ISO format \"YYYY-MM-DD\"\n" +
	"- \"name\": string, the counterparty\n" +
	"- \"description\": string\n" +
	"- \"amount\": number, always positive\n" +
	"- \"paymentType\": \"made\" when we paid them, \"received\" when they paid us\n\n"

const rulesPrompt = "Rules:\n" +
	"- Do not compute net weight, totals or profit; they are derived later.\n" +
	"- Payment methods are one of Cash, Bank, Bkash, Rocket, Nagod.\n" +
	"- Write amounts and weights as plain numbers without currency symbols or thousands separators.\n\n" +
	"Return ONLY valid raw JSON.\n" +
	"Do NOT wrap the response in code fences.\n" +
	"Do NOT use ```json or any Markdown.\n" +
	"Output must begin with \"[\" and end with \"]\".\n"

// buildPartiesPrompt lists the known suppliers and buyers so the model uses
// their exact spelling.
func buildPartiesPrompt(contacts []*domain.Contact) string {
	var suppliers, buyers []string
	for _, c := range contacts {
		switch c.Type {
		case domain.ContactSupplier:
			suppliers = append(suppliers, c.Name)
		case domain.ContactBuyer:
			buyers = append(buyers, c.Name)
		}
	}
	sort.Strings(suppliers)
	sort.Strings(buyers)

	var b strings.Builder
	b.WriteString("Use ONLY the following counterparty names, spelled exactly as shown:\n\n")
	writeList(&b, "Suppliers", suppliers)
	writeList(&b, "Buyers", buyers)
	b.WriteString("NAME RULES:\n")
	b.WriteString("1. \"supplierName\" must be one of the suppliers above.\n")
	b.WriteString("2. \"buyerName\" must be one of the buyers above.\n")
	b.WriteString("3. A payment's \"name\" may be any supplier or buyer.\n")
	return b.String()
}

func writeList(b *strings.Builder, title string, names []string) {
	b.WriteString(title + ":\n")
	if len(names) == 0 {
		b.WriteString("  (none)\n\n")
		return
	}
	for _, n := range names {
		b.WriteString("  - " + n + "\n")
	}
	b.WriteString("\n")
}

func buildSlipPrompt(contacts []*domain.Contact) string {
	return basePrompt + buildPartiesPrompt(contacts) + "\n" + rulesPrompt
}
