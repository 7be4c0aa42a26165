package insight

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/outreach-pipeline/internal/model"
	"github.com/sells-group/outreach-pipeline/pkg/anthropic"
)

type mockAnthropicClient struct {
	mock.Mock
}

func (m *mockAnthropicClient) CreateMessage(ctx context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*anthropic.MessageResponse), args.Error(1)
}

func textResponse(text string) *anthropic.MessageResponse {
	return &anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: text}},
	}
}

func testContact() model.Contact {
	return model.Contact{
		ID:            "c-1",
		Email:         "jo@acme.example",
		FirstName:     "Jo",
		LastName:      "Field",
		CompanyName:   "Acme Mailing",
		CompanyDomain: "acme.example",
	}
}

func TestGenerateNoPagesUsesFallback(t *testing.T) {
	client := &mockAnthropicClient{}
	gen := NewAnthropicGenerator(client, "test-model", nil)

	ins, err := gen.Generate(context.Background(), testContact(), nil)
	require.NoError(t, err)

	assert.Equal(t, DefaultLabel, ins.Classification)
	assert.Equal(t, FallbackNote, ins.Note)
	assert.Empty(t, ins.NoteSourceURL)
	assert.False(t, ins.HasAddress())
	client.AssertNotCalled(t, "CreateMessage")
}

func TestGenerateExtractsAddressAndNote(t *testing.T) {
	client := &mockAnthropicClient{}
	client.On("CreateMessage", mock.Anything, mock.Anything).Return(textResponse(`{
		"address_line1": "1 High Street",
		"address_line2": "Floor 2",
		"city": "Norwich",
		"postcode": "NR1 1AA",
		"country": "GB",
		"address_source_url": "https://acme.example/contact",
		"note": "Congrats on launching the spring catalogue campaign last month.",
		"note_source_url": "https://acme.example/about"
	}`), nil)

	gen := NewAnthropicGenerator(client, "test-model", nil)
	ins, err := gen.Generate(context.Background(), testContact(), pages("We run direct mail campaigns."))
	require.NoError(t, err)

	assert.Equal(t, "Direct Mail Specialist", ins.Classification)
	assert.Equal(t, "1 High Street", ins.AddressLine1)
	assert.Equal(t, "Norwich", ins.City)
	assert.True(t, ins.HasAddress())
	assert.Equal(t, "https://acme.example/contact", ins.AddrSourceURL)
	assert.Equal(t, "Congrats on launching the spring catalogue campaign last month.", ins.Note)
	assert.Equal(t, "https://acme.example/about", ins.NoteSourceURL)
	client.AssertExpectations(t)
}

func TestGenerateNoteWithoutSourceFallsBack(t *testing.T) {
	client := &mockAnthropicClient{}
	client.On("CreateMessage", mock.Anything, mock.Anything).Return(textResponse(`{
		"note": "Nice looking site.",
		"note_source_url": ""
	}`), nil)

	gen := NewAnthropicGenerator(client, "test-model", nil)
	ins, err := gen.Generate(context.Background(), testContact(), pages("hello"))
	require.NoError(t, err)

	assert.Equal(t, FallbackNote, ins.Note)
	assert.Empty(t, ins.NoteSourceURL)
}

func TestGenerateOverlongNoteFallsBack(t *testing.T) {
	long := strings.Repeat("word ", 25)
	client := &mockAnthropicClient{}
	client.On("CreateMessage", mock.Anything, mock.Anything).Return(textResponse(`{
		"note": "`+strings.TrimSpace(long)+`",
		"note_source_url": "https://acme.example/news"
	}`), nil)

	gen := NewAnthropicGenerator(client, "test-model", nil)
	ins, err := gen.Generate(context.Background(), testContact(), pages("hello"))
	require.NoError(t, err)

	assert.Equal(t, FallbackNote, ins.Note)
	assert.Empty(t, ins.NoteSourceURL)
}

func TestGenerateStripsCodeFence(t *testing.T) {
	client := &mockAnthropicClient{}
	client.On("CreateMessage", mock.Anything, mock.Anything).Return(textResponse("```json\n{\"note\":\"Great new warehouse opening announced in July.\",\"note_source_url\":\"https://acme.example/news\"}\n```"), nil)

	gen := NewAnthropicGenerator(client, "test-model", nil)
	ins, err := gen.Generate(context.Background(), testContact(), pages("hello"))
	require.NoError(t, err)

	assert.Equal(t, "Great new warehouse opening announced in July.", ins.Note)
}

func TestGeneratePropagatesAPIError(t *testing.T) {
	client := &mockAnthropicClient{}
	client.On("CreateMessage", mock.Anything, mock.Anything).Return(nil, errors.New("overloaded"))

	gen := NewAnthropicGenerator(client, "test-model", nil)
	_, err := gen.Generate(context.Background(), testContact(), pages("hello"))
	assert.Error(t, err)
}

func TestGenerateMalformedJSONErrors(t *testing.T) {
	client := &mockAnthropicClient{}
	client.On("CreateMessage", mock.Anything, mock.Anything).Return(textResponse("not json at all"), nil)

	gen := NewAnthropicGenerator(client, "test-model", nil)
	_, err := gen.Generate(context.Background(), testContact(), pages("hello"))
	assert.Error(t, err)
}

func TestApprovalBlockRoundTrip(t *testing.T) {
	contact := testContact()
	ins := model.Insight{
		Classification: "Direct Mail Specialist",
		AddressLine1:   "1 High Street",
		City:           "Norwich",
		Postcode:       "NR1 1AA",
		Country:        "GB",
		AddrSourceURL:  "https://acme.example/contact",
		Note:           "Congrats on the spring catalogue launch.",
		NoteSourceURL:  "https://acme.example/news",
	}

	block := RenderApprovalBlock(contact, ins)

	assert.Contains(t, block, contact.FullName())
	assert.Contains(t, block, contact.CompanyName)
	assert.Contains(t, block, ins.Classification)
	assert.Contains(t, block, ins.Note)
	assert.Contains(t, block, ins.NoteSourceURL)
	assert.Contains(t, block, "1 High Street, Norwich, NR1 1AA, GB")
	assert.True(t, strings.HasSuffix(block, "Approve this enrichment for CRM sync?"))
}

func TestApprovalBlockNoAddress(t *testing.T) {
	block := RenderApprovalBlock(testContact(), model.Insight{
		Classification: DefaultLabel,
		Note:           FallbackNote,
	})

	assert.Contains(t, block, "Address: not found")
	assert.NotContains(t, block, "Address source:")
	assert.NotContains(t, block, "Note source:")
}
