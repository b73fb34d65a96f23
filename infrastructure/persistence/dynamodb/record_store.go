// Package dynamodb implements the backend record store on AWS DynamoDB.
// Single-table layout: element records and relationship edges share one
// table, keyed by PK/SK.
package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"archsync-backend/application/ports"
	"archsync-backend/domain/core/valueobjects"
	appErrors "archsync-backend/pkg/errors"
)

const (
	batchWriteLimit   = 25
	batchWriteRetries = 3
)

// DynamoDBAPI is the subset of the DynamoDB client the store needs.
type DynamoDBAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
}

// ddbRecord is an element record item.
type ddbRecord struct {
	PK        string `dynamodbav:"PK"`
	SK        string `dynamodbav:"SK"`
	RecordID  string `dynamodbav:"RecordID"`
	Kind      string `dynamodbav:"Kind"`
	Name      string `dynamodbav:"Name"`
	CreatedAt string `dynamodbav:"CreatedAt"`
	UpdatedAt string `dynamodbav:"UpdatedAt"`
}

// ddbRelationship is a relationship edge item, keyed by the backend field
// it lives on.
type ddbRelationship struct {
	PK        string `dynamodbav:"PK"`
	SK        string `dynamodbav:"SK"`
	Field     string `dynamodbav:"Field"`
	SourceID  string `dynamodbav:"SourceID"`
	TargetID  string `dynamodbav:"TargetID"`
	Label     string `dynamodbav:"Label,omitempty"`
	CreatedAt string `dynamodbav:"CreatedAt"`
}

// RecordStore implements ports.RecordStore using DynamoDB. All calls go
// through a circuit breaker so a struggling backend trips fast instead of
// stalling every reconciliation pass.
type RecordStore struct {
	client    DynamoDBAPI
	tableName string
	breaker   *gobreaker.CircuitBreaker
	logger    *zap.Logger
}

// Compile-time interface check
var _ ports.RecordStore = (*RecordStore)(nil)

// NewRecordStore creates a DynamoDB-backed record store.
func NewRecordStore(client DynamoDBAPI, tableName string, logger *zap.Logger) *RecordStore {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "dynamodb-record-store",
		MaxRequests: 5,
		Interval:    30 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 5 {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= 0.8
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
		IsSuccessful: func(err error) bool {
			// A deleted record is an answer, not a backend failure
			return err == nil || appErrors.IsNotFound(err)
		},
	})

	return &RecordStore{
		client:    client,
		tableName: tableName,
		breaker:   breaker,
		logger:    logger,
	}
}

func recordKey(kind valueobjects.ElementKind, id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: fmt.Sprintf("ELEMENT#%s", id)},
		"SK": &types.AttributeValueMemberS{Value: fmt.Sprintf("KIND#%s", kind)},
	}
}

func relationshipKey(field, sourceID, targetID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: fmt.Sprintf("REL#%s#%s", field, sourceID)},
		"SK": &types.AttributeValueMemberS{Value: fmt.Sprintf("TARGET#%s", targetID)},
	}
}

// FetchByID retrieves one element record.
func (s *RecordStore) FetchByID(ctx context.Context, kind valueobjects.ElementKind, id string) (*ports.Record, error) {
	out, err := s.execute(func() (any, error) {
		result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
			TableName: aws.String(s.tableName),
			Key:       recordKey(kind, id),
		})
		if err != nil {
			return nil, appErrors.NewBackendUnavailable(fmt.Sprintf("failed to fetch record %s", id), err)
		}
		if result.Item == nil {
			return nil, appErrors.NewNotFound(fmt.Sprintf("record %s (%s) not found", id, kind))
		}

		var item ddbRecord
		if err := attributevalue.UnmarshalMap(result.Item, &item); err != nil {
			return nil, appErrors.NewInternal("failed to unmarshal record item", err)
		}
		return &ports.Record{
			ID:   item.RecordID,
			Kind: valueobjects.ElementKind(item.Kind),
			Name: item.Name,
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return out.(*ports.Record), nil
}

// CreateBatch creates records of one kind, minting their ids, and returns
// them in input order.
func (s *RecordStore) CreateBatch(ctx context.Context, kind valueobjects.ElementKind, names []string) ([]ports.Record, error) {
	if len(names) == 0 {
		return nil, nil
	}

	now := time.Now().UTC().Format(time.RFC3339)
	records := make([]ports.Record, len(names))
	writes := make([]types.WriteRequest, 0, len(names))
	for i, name := range names {
		id := uuid.New().String()
		records[i] = ports.Record{ID: id, Kind: kind, Name: name}

		item, err := attributevalue.MarshalMap(ddbRecord{
			PK:        fmt.Sprintf("ELEMENT#%s", id),
			SK:        fmt.Sprintf("KIND#%s", kind),
			RecordID:  id,
			Kind:      string(kind),
			Name:      name,
			CreatedAt: now,
			UpdatedAt: now,
		})
		if err != nil {
			return nil, appErrors.NewInternal("failed to marshal record item", err)
		}
		writes = append(writes, types.WriteRequest{PutRequest: &types.PutRequest{Item: item}})
	}

	_, err := s.execute(func() (any, error) {
		for start := 0; start < len(writes); start += batchWriteLimit {
			end := start + batchWriteLimit
			if end > len(writes) {
				end = len(writes)
			}
			if err := s.writeBatch(ctx, writes[start:end]); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("created records",
		zap.String("kind", string(kind)),
		zap.Int("count", len(records)),
	)
	return records, nil
}

// writeBatch issues one BatchWriteItem call and retries unprocessed items.
func (s *RecordStore) writeBatch(ctx context.Context, writes []types.WriteRequest) error {
	pending := writes
	for attempt := 0; attempt < batchWriteRetries && len(pending) > 0; attempt++ {
		result, err := s.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
			RequestItems: map[string][]types.WriteRequest{s.tableName: pending},
		})
		if err != nil {
			return appErrors.NewBackendUnavailable("batch write failed", err)
		}
		pending = result.UnprocessedItems[s.tableName]
	}
	if len(pending) > 0 {
		return appErrors.NewBackendUnavailable(
			fmt.Sprintf("%d items still unprocessed after %d attempts", len(pending), batchWriteRetries), nil)
	}
	return nil
}

// UpdateName renames one record. A missing record maps to NOT_FOUND.
func (s *RecordStore) UpdateName(ctx context.Context, kind valueobjects.ElementKind, id, name string) error {
	update := expression.Set(expression.Name("Name"), expression.Value(name)).
		Set(expression.Name("UpdatedAt"), expression.Value(time.Now().UTC().Format(time.RFC3339)))
	cond := expression.AttributeExists(expression.Name("PK"))

	expr, err := expression.NewBuilder().WithUpdate(update).WithCondition(cond).Build()
	if err != nil {
		return appErrors.NewInternal("failed to build update expression", err)
	}

	_, err = s.execute(func() (any, error) {
		_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
			TableName:                 aws.String(s.tableName),
			Key:                       recordKey(kind, id),
			UpdateExpression:          expr.Update(),
			ConditionExpression:       expr.Condition(),
			ExpressionAttributeNames:  expr.Names(),
			ExpressionAttributeValues: expr.Values(),
		})
		if err != nil {
			var condErr *types.ConditionalCheckFailedException
			if errors.As(err, &condErr) {
				return nil, appErrors.NewNotFound(fmt.Sprintf("record %s (%s) not found", id, kind))
			}
			return nil, appErrors.NewBackendUnavailable(fmt.Sprintf("failed to rename record %s", id), err)
		}
		return nil, nil
	})
	return err
}

// RelationshipExists checks for an edge on the given backend field.
func (s *RecordStore) RelationshipExists(ctx context.Context, field, sourceID, targetID string) (bool, error) {
	out, err := s.execute(func() (any, error) {
		result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
			TableName: aws.String(s.tableName),
			Key:       relationshipKey(field, sourceID, targetID),
		})
		if err != nil {
			return false, appErrors.NewBackendUnavailable("failed to check relationship", err)
		}
		return result.Item != nil, nil
	})
	if err != nil {
		return false, err
	}
	return out.(bool), nil
}

// CreateRelationship persists an edge on the given backend field. Creating
// an edge that already exists is a no-op.
func (s *RecordStore) CreateRelationship(ctx context.Context, field, sourceID, targetID, label string) error {
	item, err := attributevalue.MarshalMap(ddbRelationship{
		PK:        fmt.Sprintf("REL#%s#%s", field, sourceID),
		SK:        fmt.Sprintf("TARGET#%s", targetID),
		Field:     field,
		SourceID:  sourceID,
		TargetID:  targetID,
		Label:     label,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return appErrors.NewInternal("failed to marshal relationship item", err)
	}

	_, err = s.execute(func() (any, error) {
		_, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
			TableName: aws.String(s.tableName),
			Item:      item,
		})
		if err != nil {
			return nil, appErrors.NewBackendUnavailable(
				fmt.Sprintf("failed to create relationship %s", field), err)
		}
		return nil, nil
	})
	return err
}

// execute runs an operation through the circuit breaker, mapping breaker
// rejections to BACKEND_UNAVAILABLE.
func (s *RecordStore) execute(op func() (any, error)) (any, error) {
	out, err := s.breaker.Execute(op)
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, appErrors.NewBackendUnavailable("backend circuit open", err)
		}
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) {
			s.logger.Warn("dynamodb call failed",
				zap.String("errorCode", apiErr.ErrorCode()),
				zap.String("errorFault", apiErr.ErrorFault().String()),
			)
		}
		return nil, err
	}
	return out, nil
}
