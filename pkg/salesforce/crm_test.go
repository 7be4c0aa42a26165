package salesforce

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockClient struct {
	mock.Mock
}

func (m *mockClient) Query(ctx context.Context, soql string, out any) error {
	args := m.Called(ctx, soql, out)
	return args.Error(0)
}

func (m *mockClient) InsertOne(ctx context.Context, sObjectName string, record map[string]any) (string, error) {
	args := m.Called(ctx, sObjectName, record)
	return args.String(0), args.Error(1)
}

func (m *mockClient) UpdateOne(ctx context.Context, sObjectName string, id string, fields map[string]any) error {
	args := m.Called(ctx, sObjectName, id, fields)
	return args.Error(0)
}

func TestFindContactByEmailFound(t *testing.T) {
	c := &mockClient{}
	c.On("Query", mock.Anything, mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		out := args.Get(2).(*[]contactRecord)
		*out = []contactRecord{{
			Id:             "003xx0001",
			LifecycleStage: "customer",
			MailingStreet:  "1 High Street",
		}}
	}).Return(nil)

	got, err := FindContactByEmail(context.Background(), c, "jo@acme.example")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "003xx0001", got.ID)
	assert.Equal(t, "customer", got.LifecycleStage)
	assert.True(t, got.HasAddress)
}

func TestFindContactByEmailMissing(t *testing.T) {
	c := &mockClient{}
	c.On("Query", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	got, err := FindContactByEmail(context.Background(), c, "nobody@acme.example")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestFindContactByEmailEscapesQuotes(t *testing.T) {
	c := &mockClient{}
	var captured string
	c.On("Query", mock.Anything, mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		captured = args.String(1)
	}).Return(nil)

	_, err := FindContactByEmail(context.Background(), c, "o'brien@acme.example")
	require.NoError(t, err)
	assert.Contains(t, captured, `o\'brien@acme.example`)
}

func TestCreateContactRequiresEmail(t *testing.T) {
	c := &mockClient{}
	_, err := CreateContact(context.Background(), c, map[string]any{"LastName": "Field"})
	assert.Error(t, err)
	c.AssertNotCalled(t, "InsertOne")
}

func TestCreateContact(t *testing.T) {
	c := &mockClient{}
	c.On("InsertOne", mock.Anything, "Contact", mock.Anything).Return("003xx0002", nil)

	id, err := CreateContact(context.Background(), c, map[string]any{
		"Email":    "jo@acme.example",
		"LastName": "Field",
	})
	require.NoError(t, err)
	assert.Equal(t, "003xx0002", id)
}

func TestUpdateContactGuards(t *testing.T) {
	c := &mockClient{}
	assert.Error(t, UpdateContact(context.Background(), c, "", map[string]any{"City": "Norwich"}))
	assert.Error(t, UpdateContact(context.Background(), c, "003xx0001", nil))
	c.AssertNotCalled(t, "UpdateOne")
}

func TestUpdateContact(t *testing.T) {
	c := &mockClient{}
	c.On("UpdateOne", mock.Anything, "Contact", "003xx0001", mock.Anything).Return(nil)

	err := UpdateContact(context.Background(), c, "003xx0001", map[string]any{"MailingCity": "Norwich"})
	require.NoError(t, err)
	c.AssertExpectations(t)
}
