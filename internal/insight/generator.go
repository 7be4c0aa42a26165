package insight

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-pipeline/internal/model"
	"github.com/sells-group/outreach-pipeline/pkg/anthropic"
)

// FallbackNote is stored when research yields nothing verifiable within the
// recency window.
const FallbackNote = "Saw your company online and thought we should connect."

const (
	maxNoteWords   = 20
	maxPageContent = 8000
)

// Generator is the insight port: identity fields plus gathered research in,
// classification/address/note/approval summary out.
type Generator interface {
	Generate(ctx context.Context, contact model.Contact, pages []model.ResearchPage) (*model.Insight, error)
}

// AnthropicGenerator extracts address and note via the Anthropic API and
// classifies with the deterministic rule set.
type AnthropicGenerator struct {
	client anthropic.Client
	model  string
	rules  []Rule
}

// NewAnthropicGenerator creates a Generator. A nil rules slice selects the
// built-in default rule set.
func NewAnthropicGenerator(client anthropic.Client, modelID string, rules []Rule) *AnthropicGenerator {
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	return &AnthropicGenerator{client: client, model: modelID, rules: rules}
}

// extraction mirrors the JSON object the model is asked to return.
type extraction struct {
	AddressLine1  string `json:"address_line1"`
	AddressLine2  string `json:"address_line2"`
	City          string `json:"city"`
	Postcode      string `json:"postcode"`
	Country       string `json:"country"`
	AddrSourceURL string `json:"address_source_url"`
	Note          string `json:"note"`
	NoteSourceURL string `json:"note_source_url"`
}

const systemPrompt = `You extract business facts from scraped web pages for an outbound sales team.
Respond with a single JSON object and nothing else:
{"address_line1":"","address_line2":"","city":"","postcode":"","country":"","address_source_url":"","note":"","note_source_url":""}
Rules:
- Only report a postal address you can see verbatim in the supplied pages, and set address_source_url to the page URL it came from. Leave address fields empty otherwise.
- note is one personalized opener of at most 20 words, referencing a concrete, dated development from the last three to six months (a launch, award, hire, campaign). Set note_source_url to the page it came from.
- If no development within that window is verifiable from the pages, set note and note_source_url to empty strings.
- Never invent URLs or facts.`

// Generate classifies the pages, extracts address and note with one model
// call, enforces the note length and fallback rules, and renders the
// approval block.
func (g *AnthropicGenerator) Generate(ctx context.Context, contact model.Contact, pages []model.ResearchPage) (*model.Insight, error) {
	ins := model.Insight{
		Classification: Classify(g.rules, pages),
		Note:           FallbackNote,
	}

	if len(pages) > 0 {
		ext, err := g.extract(ctx, contact, pages)
		if err != nil {
			return nil, err
		}
		applyExtraction(&ins, ext)
	}

	ins.ApprovalBlock = RenderApprovalBlock(contact, ins)
	return &ins, nil
}

func (g *AnthropicGenerator) extract(ctx context.Context, contact model.Contact, pages []model.ResearchPage) (*extraction, error) {
	resp, err := g.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     g.model,
		MaxTokens: 1024,
		System:    systemPrompt,
		Messages: []anthropic.Message{
			{Role: "user", Content: buildPrompt(contact, pages)},
		},
	})
	if err != nil {
		return nil, eris.Wrapf(err, "insight: generate for %s", contact.CompanyName)
	}
	resp.Usage.LogCost(g.model, "insight")

	var ext extraction
	cleaned := cleanJSON(resp.Text())
	if err := json.Unmarshal([]byte(cleaned), &ext); err != nil {
		return nil, eris.Wrapf(err, "insight: parse extraction for %s", contact.CompanyName)
	}
	return &ext, nil
}

// applyExtraction copies the model output onto the insight, enforcing the
// note rules: a usable note needs a source URL and at most 20 words,
// otherwise the fallback stands.
func applyExtraction(ins *model.Insight, ext *extraction) {
	ins.AddressLine1 = strings.TrimSpace(ext.AddressLine1)
	ins.AddressLine2 = strings.TrimSpace(ext.AddressLine2)
	ins.City = strings.TrimSpace(ext.City)
	ins.Postcode = strings.TrimSpace(ext.Postcode)
	ins.Country = strings.TrimSpace(ext.Country)
	ins.AddrSourceURL = strings.TrimSpace(ext.AddrSourceURL)

	note := strings.TrimSpace(ext.Note)
	src := strings.TrimSpace(ext.NoteSourceURL)
	if note == "" || src == "" {
		return
	}
	if len(strings.Fields(note)) > maxNoteWords {
		zap.L().Debug("insight: note over word limit, using fallback",
			zap.Int("words", len(strings.Fields(note))))
		return
	}
	ins.Note = note
	ins.NoteSourceURL = src
}

func buildPrompt(contact model.Contact, pages []model.ResearchPage) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Contact: %s\nCompany: %s\nDomain: %s\n\n",
		contact.FullName(), contact.CompanyName, contact.CompanyDomain)

	for _, p := range pages {
		content := p.Content
		if len(content) > maxPageContent {
			content = content[:maxPageContent]
		}
		fmt.Fprintf(&sb, "--- PAGE %s ---\n%s\n\n", p.URL, content)
	}
	return sb.String()
}

// cleanJSON strips markdown fences and extracts the JSON object.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		text = text[start : end+1]
	}

	return strings.TrimSpace(text)
}
