package repository

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/require"

	"medical-assistant/internal/domain"
)

type fakeDynamo struct {
	putErr       error
	queryOuts    []*dynamodb.QueryOutput
	queryErr     error
	txErr        error
	batchOuts    []*dynamodb.BatchWriteItemOutput
	batchErr     error
	lastPutInput *dynamodb.PutItemInput
	queryInputs  []*dynamodb.QueryInput
	lastTxInput  *dynamodb.TransactWriteItemsInput
	batchInputs  []*dynamodb.BatchWriteItemInput
}

func (f *fakeDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.lastPutInput = in
	return &dynamodb.PutItemOutput{}, f.putErr
}

func (f *fakeDynamo) Query(_ context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	f.queryInputs = append(f.queryInputs, in)
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	if len(f.queryOuts) == 0 {
		return &dynamodb.QueryOutput{}, nil
	}
	out := f.queryOuts[0]
	f.queryOuts = f.queryOuts[1:]
	return out, nil
}

func (f *fakeDynamo) TransactWriteItems(_ context.Context, in *dynamodb.TransactWriteItemsInput, _ ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error) {
	f.lastTxInput = in
	return &dynamodb.TransactWriteItemsOutput{}, f.txErr
}

func (f *fakeDynamo) BatchWriteItem(_ context.Context, in *dynamodb.BatchWriteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error) {
	f.batchInputs = append(f.batchInputs, in)
	if f.batchErr != nil {
		return nil, f.batchErr
	}
	if len(f.batchOuts) == 0 {
		return &dynamodb.BatchWriteItemOutput{}, nil
	}
	out := f.batchOuts[0]
	f.batchOuts = f.batchOuts[1:]
	return out, nil
}

var testKey = domain.SessionKey{UserID: "ann@example.com", PersonaID: "radiologist"}

func makeTurnItem(sk, role, content string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK":      &types.AttributeValueMemberS{Value: sessionPK(testKey)},
		"SK":      &types.AttributeValueMemberS{Value: sk},
		"role":    &types.AttributeValueMemberS{Value: role},
		"content": &types.AttributeValueMemberS{Value: content},
	}
}

func mustNewClient(t *testing.T, db *fakeDynamo) *Client {
	t.Helper()
	c, err := New(db, "test-table")
	require.NoError(t, err)
	c.now = func() time.Time { return time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC) }
	return c
}

func sAttr(t *testing.T, item map[string]types.AttributeValue, key string) string {
	t.Helper()
	v, err := strAttr(item, key)
	require.NoError(t, err)
	return v
}

func TestNew_Validation(t *testing.T) {
	_, err := New(nil, "table")
	require.Error(t, err)

	_, err = New(&fakeDynamo{}, " ")
	require.Error(t, err)
}

func TestTurnSK_SortsChronologically(t *testing.T) {
	base := time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)
	a := turnSK(base, 1)
	b := turnSK(base.Add(100*time.Millisecond), 0)
	c := turnSK(base.Add(1*time.Second), 0)

	require.Less(t, turnSK(base, 0), a)
	require.Less(t, a, b)
	require.Less(t, b, c)
	require.Equal(t, "TURN#2024-05-01T09:30:00.000000000Z#01", a)
}

func TestLoadHistory_HappyPath(t *testing.T) {
	db := &fakeDynamo{queryOuts: []*dynamodb.QueryOutput{{
		Items: []map[string]types.AttributeValue{
			makeTurnItem("TURN#2#01", domain.RoleAssistant, "Looks normal."),
			makeTurnItem("TURN#2#00", domain.RoleUser, "[image uploaded: chest.png]"),
		},
	}}}
	c := mustNewClient(t, db)

	history, err := c.LoadHistory(context.Background(), testKey, 8)
	require.NoError(t, err)
	require.Equal(t, domain.ConversationHistory{
		domain.UserTurn("[image uploaded: chest.png]"),
		domain.AssistantTurn("Looks normal."),
	}, history)

	in := db.queryInputs[0]
	require.Equal(t, int32(8), *in.Limit)
	require.False(t, *in.ScanIndexForward)
	require.Equal(t, "SESSION#ann@example.com#radiologist", in.ExpressionAttributeValues[":pk"].(*types.AttributeValueMemberS).Value)
}

func TestLoadHistory_ZeroLimitSkipsQuery(t *testing.T) {
	db := &fakeDynamo{}
	history, err := mustNewClient(t, db).LoadHistory(context.Background(), testKey, 0)
	require.NoError(t, err)
	require.Empty(t, history)
	require.Empty(t, db.queryInputs)
}

func TestLoadHistory_Errors(t *testing.T) {
	db := &fakeDynamo{queryErr: errors.New("throttled")}
	_, err := mustNewClient(t, db).LoadHistory(context.Background(), testKey, 8)
	require.ErrorContains(t, err, "LoadHistory query")

	db = &fakeDynamo{queryOuts: []*dynamodb.QueryOutput{{
		Items: []map[string]types.AttributeValue{makeTurnItem("TURN#1#00", "system", "x")},
	}}}
	_, err = mustNewClient(t, db).LoadHistory(context.Background(), testKey, 8)
	require.ErrorContains(t, err, "unknown role")

	item := makeTurnItem("TURN#1#00", domain.RoleUser, "x")
	delete(item, "content")
	db = &fakeDynamo{queryOuts: []*dynamodb.QueryOutput{{Items: []map[string]types.AttributeValue{item}}}}
	_, err = mustNewClient(t, db).LoadHistory(context.Background(), testKey, 8)
	require.ErrorContains(t, err, "missing attribute")
}

func TestAppendTurns_SingleTransaction(t *testing.T) {
	db := &fakeDynamo{}
	c := mustNewClient(t, db)

	err := c.AppendTurns(context.Background(), testKey, domain.UserTurn("hi"), domain.AssistantTurn("hello"))
	require.NoError(t, err)
	require.NotNil(t, db.lastTxInput)
	require.Len(t, db.lastTxInput.TransactItems, 2)

	user := db.lastTxInput.TransactItems[0].Put
	reply := db.lastTxInput.TransactItems[1].Put
	require.Equal(t, "test-table", *user.TableName)
	require.Equal(t, "attribute_not_exists(PK) AND attribute_not_exists(SK)", *user.ConditionExpression)
	require.Equal(t, domain.RoleUser, sAttr(t, user.Item, "role"))
	require.Equal(t, "hello", sAttr(t, reply.Item, "content"))
	require.Less(t, sAttr(t, user.Item, "SK"), sAttr(t, reply.Item, "SK"))

	ttl := user.Item["ttl"].(*types.AttributeValueMemberN).Value
	require.NotEmpty(t, ttl)
}

func TestAppendTurns_NoTurnsIsNoop(t *testing.T) {
	db := &fakeDynamo{}
	require.NoError(t, mustNewClient(t, db).AppendTurns(context.Background(), testKey))
	require.Nil(t, db.lastTxInput)
}

func TestAppendTurns_Error(t *testing.T) {
	db := &fakeDynamo{txErr: errors.New("conditional check failed")}
	err := mustNewClient(t, db).AppendTurns(context.Background(), testKey, domain.UserTurn("hi"))
	require.ErrorContains(t, err, "AppendTurns")
}

func TestClearHistory_PaginatesAndBatches(t *testing.T) {
	page := func(n int, last bool) *dynamodb.QueryOutput {
		out := &dynamodb.QueryOutput{}
		for i := 0; i < n; i++ {
			out.Items = append(out.Items, makeTurnItem(turnSK(time.Unix(int64(i), 0), 0), domain.RoleUser, "x"))
		}
		if !last {
			out.LastEvaluatedKey = map[string]types.AttributeValue{"PK": out.Items[n-1]["PK"], "SK": out.Items[n-1]["SK"]}
		}
		return out
	}
	unprocessed := map[string][]types.WriteRequest{"test-table": {{DeleteRequest: &types.DeleteRequest{}}}}
	db := &fakeDynamo{
		queryOuts: []*dynamodb.QueryOutput{page(20, false), page(10, true)},
		batchOuts: []*dynamodb.BatchWriteItemOutput{{UnprocessedItems: unprocessed}},
	}

	require.NoError(t, mustNewClient(t, db).ClearHistory(context.Background(), testKey))
	require.Len(t, db.queryInputs, 2)
	require.NotNil(t, db.queryInputs[1].ExclusiveStartKey)

	// 25, retry of the unprocessed one, then the remaining 5
	require.Len(t, db.batchInputs, 3)
	require.Len(t, db.batchInputs[0].RequestItems["test-table"], 25)
	require.Len(t, db.batchInputs[1].RequestItems["test-table"], 1)
	require.Len(t, db.batchInputs[2].RequestItems["test-table"], 5)
}

func TestClearHistory_Errors(t *testing.T) {
	db := &fakeDynamo{queryErr: errors.New("boom")}
	require.ErrorContains(t, mustNewClient(t, db).ClearHistory(context.Background(), testKey), "ClearHistory query")

	db = &fakeDynamo{
		queryOuts: []*dynamodb.QueryOutput{{Items: []map[string]types.AttributeValue{makeTurnItem("TURN#1#00", domain.RoleUser, "x")}}},
		batchErr:  errors.New("boom"),
	}
	require.ErrorContains(t, mustNewClient(t, db).ClearHistory(context.Background(), testKey), "ClearHistory delete")
}

func TestAppendLog(t *testing.T) {
	db := &fakeDynamo{}
	start := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	entry := domain.LogEntry{
		UserID:        "ann@example.com",
		PersonaID:     "general_doctor",
		SessionStart:  start,
		Timestamp:     start.Add(5 * time.Minute),
		UserText:      "I have a headache",
		AssistantText: "Rest and hydrate.",
	}

	require.NoError(t, mustNewClient(t, db).AppendLog(context.Background(), entry))
	in := db.lastPutInput
	require.NotNil(t, in)
	require.Equal(t, "attribute_not_exists(PK) AND attribute_not_exists(SK)", *in.ConditionExpression)
	require.Equal(t, "USER#ann@example.com", sAttr(t, in.Item, "PK"))

	sk := sAttr(t, in.Item, "SK")
	require.True(t, strings.HasPrefix(sk, "LOG#2024-05-01T09:00:00.000000000Z#2024-05-01T09:05:00.000000000Z#"), sk)
	require.Equal(t, "I have a headache", sAttr(t, in.Item, "userText"))
	require.Equal(t, "Rest and hydrate.", sAttr(t, in.Item, "assistantText"))
	_, hasTTL := in.Item["ttl"]
	require.False(t, hasTTL)
}

func TestAppendLog_Errors(t *testing.T) {
	db := &fakeDynamo{}
	require.Error(t, mustNewClient(t, db).AppendLog(context.Background(), domain.LogEntry{}))
	require.Nil(t, db.lastPutInput)

	db = &fakeDynamo{putErr: errors.New("boom")}
	err := mustNewClient(t, db).AppendLog(context.Background(), domain.LogEntry{UserID: "u"})
	require.ErrorContains(t, err, "AppendLog")
}
