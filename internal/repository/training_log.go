package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"groupchat-agent/internal/domain"
)

// TrainingLog is a write-only sink of raw user/bot exchanges. There is no
// read path; callers treat Record failures as non-fatal.
type TrainingLog struct {
	api       dynamodbAPI
	tableName string
}

// NewTrainingLog creates a TrainingLog backed by the given table.
func NewTrainingLog(api dynamodbAPI, tableName string) (*TrainingLog, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	return &TrainingLog{api: api, tableName: tableName}, nil
}

// Record appends one training-log row.
func (l *TrainingLog) Record(ctx context.Context, rec domain.TrainingRecord) error {
	item := map[string]types.AttributeValue{
		"PK":       &types.AttributeValueMemberS{Value: chatPK(rec.ChatID)},
		"SK":       &types.AttributeValueMemberS{Value: msgSK(nowFn(), rec.Sequence)},
		"id":       &types.AttributeValueMemberS{Value: newUUID()},
		"chatId":   &types.AttributeValueMemberN{Value: strconv.FormatInt(rec.ChatID, 10)},
		"authorId": &types.AttributeValueMemberN{Value: strconv.FormatInt(rec.AuthorID, 10)},
		"isGroup":  &types.AttributeValueMemberBOOL{Value: rec.IsGroup},
		"role":     &types.AttributeValueMemberS{Value: rec.Role},
		"ttl":      &types.AttributeValueMemberN{Value: strconv.FormatInt(ttlValue(), 10)},
	}
	if rec.Username != "" {
		item["username"] = &types.AttributeValueMemberS{Value: rec.Username}
	}
	if rec.UserText != "" {
		item["messageText"] = &types.AttributeValueMemberS{Value: rec.UserText}
	}
	if rec.BotReply != "" {
		item["botReply"] = &types.AttributeValueMemberS{Value: rec.BotReply}
	}

	_, err := l.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(l.tableName),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("repository: Record: %w", err)
	}
	return nil
}

var newUUID = func() string {
	return uuid.NewString()
}
