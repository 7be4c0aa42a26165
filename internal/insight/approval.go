package insight

import (
	"strings"

	"github.com/sells-group/outreach-pipeline/internal/model"
)

// RenderApprovalBlock produces the human-readable summary shown to the
// approver. The layout is fixed: contact/company header, address line,
// address-source line, classification line, note line, note-source line,
// trailing prompt. Name, company, classification, and note appear verbatim.
func RenderApprovalBlock(contact model.Contact, ins model.Insight) string {
	var sb strings.Builder

	sb.WriteString(contact.FullName())
	if contact.CompanyName != "" {
		sb.WriteString(" at ")
		sb.WriteString(contact.CompanyName)
	}
	sb.WriteByte('\n')

	if ins.HasAddress() {
		sb.WriteString("Address: ")
		sb.WriteString(formatAddress(ins))
		sb.WriteByte('\n')
		if ins.AddrSourceURL != "" {
			sb.WriteString("Address source: ")
			sb.WriteString(ins.AddrSourceURL)
			sb.WriteByte('\n')
		}
	} else {
		sb.WriteString("Address: not found\n")
	}

	sb.WriteString("Classification: ")
	sb.WriteString(ins.Classification)
	sb.WriteByte('\n')

	sb.WriteString("Note: ")
	sb.WriteString(ins.Note)
	sb.WriteByte('\n')
	if ins.NoteSourceURL != "" {
		sb.WriteString("Note source: ")
		sb.WriteString(ins.NoteSourceURL)
		sb.WriteByte('\n')
	}

	sb.WriteString("Approve this enrichment for CRM sync?")
	return sb.String()
}

func formatAddress(ins model.Insight) string {
	parts := make([]string, 0, 5)
	for _, p := range []string{ins.AddressLine1, ins.AddressLine2, ins.City, ins.Postcode, ins.Country} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}
