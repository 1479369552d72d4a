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

	"groupchat-agent/internal/domain"
)

const (
	skPrefixMsg = "MSG#"
	ttlDuration = 30 * 24 * time.Hour // 30-day TTL

	// scanBuffer bounds the read cost of a single trim. Backlogs larger than
	// keepLastN+scanBuffer converge over repeated trim calls, one per inbound
	// message.
	scanBuffer = 40

	// DynamoDB caps BatchWriteItem at 25 requests.
	batchDeleteSize = 25
)

// dynamodbAPI is the minimal DynamoDB interface required by the stores.
// Defined here for testability.
type dynamodbAPI interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	BatchWriteItem(ctx context.Context, in *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
}

// ContextStore keeps the bounded per-conversation message window in a
// DynamoDB table.
type ContextStore struct {
	api       dynamodbAPI
	tableName string
}

// NewContextStore creates a ContextStore backed by the given table.
func NewContextStore(api dynamodbAPI, tableName string) (*ContextStore, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	return &ContextStore{api: api, tableName: tableName}, nil
}

// chatPK returns the partition key for a conversation.
func chatPK(chatID int64) string {
	return "CHAT#" + strconv.FormatInt(chatID, 10)
}

// msgSK returns the sort key for a message: millisecond timestamp plus the
// message sequence number as tiebreaker, zero-padded so entries sort
// lexicographically even across same-millisecond writes.
func msgSK(ts time.Time, seq int64) string {
	return fmt.Sprintf("%s%013d:%010d", skPrefixMsg, ts.UnixMilli(), seq)
}

// ttlValue returns a Unix timestamp 30 days in the future.
func ttlValue() int64 {
	return nowFn().Add(ttlDuration).Unix()
}

// Append persists one conversation turn. seq is the inbound message id for
// user turns and message id + 1 for the assistant turn, keeping turn pairs
// adjacent even when wall-clock time does not advance between them.
func (s *ContextStore) Append(ctx context.Context, chatID, authorID int64, role, content string, seq int64) error {
	if strings.TrimSpace(content) == "" {
		return errors.New("repository: Append: content must not be empty")
	}

	entry := domain.ContextEntry{
		PK:       chatPK(chatID),
		SK:       msgSK(nowFn(), seq),
		ChatID:   chatID,
		AuthorID: authorID,
		Role:     role,
		Content:  content,
		TTL:      ttlValue(),
	}
	_, err := s.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      entryItem(entry),
	})
	if err != nil {
		return fmt.Errorf("repository: Append: %w", err)
	}
	return nil
}

// Trim deletes entries beyond the newest keepLastN. Only keepLastN+scanBuffer
// entries are scanned per call, so a single call is a no-op for backlog beyond
// that bound; repeated calls converge. Calling Trim again with no intervening
// append does nothing.
func (s *ContextStore) Trim(ctx context.Context, chatID int64, keepLastN int) error {
	if keepLastN <= 0 {
		return nil
	}

	out, err := s.queryDescending(ctx, chatID, keepLastN+scanBuffer)
	if err != nil {
		return fmt.Errorf("repository: Trim query: %w", err)
	}
	if len(out.Items) <= keepLastN {
		return nil
	}

	stale := out.Items[keepLastN:]
	for start := 0; start < len(stale); start += batchDeleteSize {
		end := start + batchDeleteSize
		if end > len(stale) {
			end = len(stale)
		}
		requests := make([]types.WriteRequest, 0, end-start)
		for _, item := range stale[start:end] {
			requests = append(requests, types.WriteRequest{
				DeleteRequest: &types.DeleteRequest{
					Key: map[string]types.AttributeValue{
						"PK": item["PK"],
						"SK": item["SK"],
					},
				},
			})
		}
		_, err := s.api.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
			RequestItems: map[string][]types.WriteRequest{s.tableName: requests},
		})
		if err != nil {
			return fmt.Errorf("repository: Trim delete: %w", err)
		}
	}
	return nil
}

// ReadWindow returns up to limit most-recent entries in ascending
// chronological order, ready for completion-backend message assembly.
func (s *ContextStore) ReadWindow(ctx context.Context, chatID int64, limit int) ([]domain.ContextEntry, error) {
	if limit <= 0 {
		return nil, nil
	}

	out, err := s.queryDescending(ctx, chatID, limit)
	if err != nil {
		return nil, fmt.Errorf("repository: ReadWindow query: %w", err)
	}

	entries := make([]domain.ContextEntry, 0, len(out.Items))
	for _, item := range out.Items {
		entry, err := itemToEntry(item)
		if err != nil {
			return nil, fmt.Errorf("repository: ReadWindow unmarshal: %w", err)
		}
		entries = append(entries, entry)
	}
	// Reverse from newest-first query order to chronological.
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	return entries, nil
}

// queryDescending reads up to limit MSG# items for a conversation, newest
// first, so LIMIT favors the most recent entries.
func (s *ContextStore) queryDescending(ctx context.Context, chatID int64, limit int) (*dynamodb.QueryOutput, error) {
	return s.api.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.tableName),
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :prefix)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":     &types.AttributeValueMemberS{Value: chatPK(chatID)},
			":prefix": &types.AttributeValueMemberS{Value: skPrefixMsg},
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(int32(limit)),
	})
}

func entryItem(entry domain.ContextEntry) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK":       &types.AttributeValueMemberS{Value: entry.PK},
		"SK":       &types.AttributeValueMemberS{Value: entry.SK},
		"chatId":   &types.AttributeValueMemberN{Value: strconv.FormatInt(entry.ChatID, 10)},
		"authorId": &types.AttributeValueMemberN{Value: strconv.FormatInt(entry.AuthorID, 10)},
		"role":     &types.AttributeValueMemberS{Value: entry.Role},
		"content":  &types.AttributeValueMemberS{Value: entry.Content},
		"ttl":      &types.AttributeValueMemberN{Value: strconv.FormatInt(entry.TTL, 10)},
	}
}

// itemToEntry converts a DynamoDB attribute map to a ContextEntry.
func itemToEntry(item map[string]types.AttributeValue) (domain.ContextEntry, error) {
	pk, err := strAttr(item, "PK")
	if err != nil {
		return domain.ContextEntry{}, err
	}
	sk, err := strAttr(item, "SK")
	if err != nil {
		return domain.ContextEntry{}, err
	}
	role, err := strAttr(item, "role")
	if err != nil {
		return domain.ContextEntry{}, err
	}
	content, err := strAttr(item, "content")
	if err != nil {
		return domain.ContextEntry{}, err
	}
	chatID, _ := int64Attr(item, "chatId")     // allow absent
	authorID, _ := int64Attr(item, "authorId") // allow absent

	return domain.ContextEntry{
		PK:       pk,
		SK:       sk,
		ChatID:   chatID,
		AuthorID: authorID,
		Role:     role,
		Content:  content,
	}, nil
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

func int64Attr(item map[string]types.AttributeValue, key string) (int64, error) {
	v, ok := item[key]
	if !ok {
		return 0, fmt.Errorf("repository: missing attribute %q", key)
	}
	n, ok := v.(*types.AttributeValueMemberN)
	if !ok {
		return 0, fmt.Errorf("repository: attribute %q is not a number", key)
	}
	parsed, err := strconv.ParseInt(n.Value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("repository: parse attribute %q: %w", key, err)
	}
	return parsed, nil
}

var nowFn = time.Now
