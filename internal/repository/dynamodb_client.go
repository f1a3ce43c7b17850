package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"medical-assistant/internal/domain"
)

const (
	skPrefixTurn = "TURN#"
	skPrefixLog  = "LOG#"
	ttlDuration  = 30 * 24 * time.Hour // 30-day TTL on history, logs never expire

	// sortTime is fixed width so lexical SK order matches time order.
	sortTime = "2006-01-02T15:04:05.000000000Z"

	maxBatchWrite = 25
)

// dynamodbAPI is the minimal DynamoDB interface required by Client.
// Defined here for testability.
type dynamodbAPI interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	TransactWriteItems(ctx context.Context, in *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
	BatchWriteItem(ctx context.Context, in *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
}

// Client stores session history and the session log in one table.
type Client struct {
	api       dynamodbAPI
	tableName string
	now       func() time.Time
}

// New creates a new repository Client.
func New(api dynamodbAPI, tableName string) (*Client, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	return &Client{api: api, tableName: tableName, now: time.Now}, nil
}

func sessionPK(key domain.SessionKey) string {
	return "SESSION#" + key.UserID + "#" + key.PersonaID
}

func userPK(userID string) string {
	return "USER#" + userID
}

func turnSK(ts time.Time, seq int) string {
	return fmt.Sprintf("%s%s#%02d", skPrefixTurn, ts.UTC().Format(sortTime), seq)
}

func logSK(entry domain.LogEntry, id string) string {
	return skPrefixLog + entry.SessionStart.UTC().Format(sortTime) + "#" + entry.Timestamp.UTC().Format(sortTime) + "#" + id
}

func (c *Client) ttlValue() int64 {
	return c.now().Add(ttlDuration).Unix()
}

// LoadHistory returns up to limit most recent turns, oldest first.
func (c *Client) LoadHistory(ctx context.Context, key domain.SessionKey, limit int) (domain.ConversationHistory, error) {
	if limit <= 0 {
		return nil, nil
	}

	out, err := c.api.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(c.tableName),
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :prefix)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":     &types.AttributeValueMemberS{Value: sessionPK(key)},
			":prefix": &types.AttributeValueMemberS{Value: skPrefixTurn},
		},
		// Read newest first so LIMIT favors the most recent context.
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(int32(limit)),
		ConsistentRead:   aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("repository: LoadHistory query: %w", err)
	}

	history := make(domain.ConversationHistory, 0, len(out.Items))
	for _, item := range out.Items {
		turn, err := itemToTurn(item)
		if err != nil {
			return nil, fmt.Errorf("repository: LoadHistory unmarshal: %w", err)
		}
		history = append(history, turn)
	}
	for i, j := 0, len(history)-1; i < j; i, j = i+1, j-1 {
		history[i], history[j] = history[j], history[i]
	}
	return history, nil
}

// AppendTurns writes all turns in one transaction so a user turn is never
// stored without its reply.
func (c *Client) AppendTurns(ctx context.Context, key domain.SessionKey, turns ...domain.ConversationTurn) error {
	if len(turns) == 0 {
		return nil
	}

	now := c.now()
	ttl := c.ttlValue()
	items := make([]types.TransactWriteItem, 0, len(turns))
	for i, turn := range turns {
		items = append(items, types.TransactWriteItem{
			Put: &types.Put{
				TableName:           aws.String(c.tableName),
				Item:                turnItem(key, turnSK(now, i), turn, ttl),
				ConditionExpression: aws.String("attribute_not_exists(PK) AND attribute_not_exists(SK)"),
			},
		})
	}

	if _, err := c.api.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: items}); err != nil {
		return fmt.Errorf("repository: AppendTurns: %w", err)
	}
	return nil
}

// ClearHistory deletes every stored turn of the session.
func (c *Client) ClearHistory(ctx context.Context, key domain.SessionKey) error {
	var (
		keys  []map[string]types.AttributeValue
		start map[string]types.AttributeValue
	)
	for {
		out, err := c.api.Query(ctx, &dynamodb.QueryInput{
			TableName:              aws.String(c.tableName),
			KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :prefix)"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":pk":     &types.AttributeValueMemberS{Value: sessionPK(key)},
				":prefix": &types.AttributeValueMemberS{Value: skPrefixTurn},
			},
			ProjectionExpression: aws.String("PK, SK"),
			ExclusiveStartKey:    start,
		})
		if err != nil {
			return fmt.Errorf("repository: ClearHistory query: %w", err)
		}
		for _, item := range out.Items {
			keys = append(keys, map[string]types.AttributeValue{"PK": item["PK"], "SK": item["SK"]})
		}
		if len(out.LastEvaluatedKey) == 0 {
			break
		}
		start = out.LastEvaluatedKey
	}

	for len(keys) > 0 {
		n := min(len(keys), maxBatchWrite)
		reqs := make([]types.WriteRequest, 0, n)
		for _, k := range keys[:n] {
			reqs = append(reqs, types.WriteRequest{DeleteRequest: &types.DeleteRequest{Key: k}})
		}
		keys = keys[n:]

		pending := map[string][]types.WriteRequest{c.tableName: reqs}
		for len(pending) > 0 {
			out, err := c.api.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{RequestItems: pending})
			if err != nil {
				return fmt.Errorf("repository: ClearHistory delete: %w", err)
			}
			pending = out.UnprocessedItems
		}
	}
	return nil
}

// AppendLog stores one exchange record. Records are never overwritten.
func (c *Client) AppendLog(ctx context.Context, entry domain.LogEntry) error {
	if strings.TrimSpace(entry.UserID) == "" {
		return errors.New("repository: AppendLog: user id is required")
	}

	_, err := c.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(c.tableName),
		Item:                logItem(entry, uuid.NewString()),
		ConditionExpression: aws.String("attribute_not_exists(PK) AND attribute_not_exists(SK)"),
	})
	if err != nil {
		return fmt.Errorf("repository: AppendLog: %w", err)
	}
	return nil
}

func turnItem(key domain.SessionKey, sk string, turn domain.ConversationTurn, ttl int64) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK":      &types.AttributeValueMemberS{Value: sessionPK(key)},
		"SK":      &types.AttributeValueMemberS{Value: sk},
		"userId":  &types.AttributeValueMemberS{Value: key.UserID},
		"persona": &types.AttributeValueMemberS{Value: key.PersonaID},
		"role":    &types.AttributeValueMemberS{Value: turn.Role},
		"content": &types.AttributeValueMemberS{Value: turn.Content},
		"ttl":     &types.AttributeValueMemberN{Value: strconv.FormatInt(ttl, 10)},
	}
}

func logItem(entry domain.LogEntry, id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK":            &types.AttributeValueMemberS{Value: userPK(entry.UserID)},
		"SK":            &types.AttributeValueMemberS{Value: logSK(entry, id)},
		"persona":       &types.AttributeValueMemberS{Value: entry.PersonaID},
		"sessionStart":  &types.AttributeValueMemberS{Value: entry.SessionStart.UTC().Format(time.RFC3339)},
		"timestamp":     &types.AttributeValueMemberS{Value: entry.Timestamp.UTC().Format(time.RFC3339Nano)},
		"userText":      &types.AttributeValueMemberS{Value: entry.UserText},
		"assistantText": &types.AttributeValueMemberS{Value: entry.AssistantText},
	}
}

func itemToTurn(item map[string]types.AttributeValue) (domain.ConversationTurn, error) {
	role, err := strAttr(item, "role")
	if err != nil {
		return domain.ConversationTurn{}, err
	}
	if role != domain.RoleUser && role != domain.RoleAssistant {
		return domain.ConversationTurn{}, fmt.Errorf("repository: unknown role %q", role)
	}
	content, err := strAttr(item, "content")
	if err != nil {
		return domain.ConversationTurn{}, err
	}
	return domain.ConversationTurn{Role: role, Content: content}, nil
}

func strAttr(item map[string]types.AttributeValue, key string) (string, error) {
	v, ok := item[key]
	if !ok {
		return "", fmt.Errorf("repository: missing attribute %q", key)
	}
	s, ok := v.(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("repository: attribute %q is not a string", key)
	}
	return s.Value, nil
}
