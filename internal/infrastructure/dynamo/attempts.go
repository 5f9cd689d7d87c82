package dynamo

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/lifelink-api/internal/domain"
)

// AttemptRepo stores NotificationAttempts. PK: request_id, SK: attempt_id.
type AttemptRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewAttemptRepo(client *dynamodb.Client, tableName string) *AttemptRepo {
	return &AttemptRepo{client: client, tableName: tableName}
}

// Put writes an attempt once; attempts are never overwritten.
func (r *AttemptRepo) Put(ctx context.Context, a *domain.NotificationAttempt) error {
	item, err := attributevalue.MarshalMap(a)
	if err != nil {
		return fmt.Errorf("marshal attempt: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                aws.String(r.tableName),
		Item:                     item,
		ConditionExpression:      aws.String("attribute_not_exists(#sk)"),
		ExpressionAttributeNames: map[string]string{"#sk": "attempt_id"},
	})
	if _, ok := conditionFailed(err); ok {
		return fmt.Errorf("attempt %s exists: %w", a.AttemptID, domain.ErrConflict)
	}
	return err
}

// ListByRequest returns a request's attempts in creation order (attempt IDs are ULIDs).
func (r *AttemptRepo) ListByRequest(ctx context.Context, requestID string) ([]domain.NotificationAttempt, error) {
	p := dynamodb.NewQueryPaginator(r.client, &dynamodb.QueryInput{
		TableName:                 aws.String(r.tableName),
		KeyConditionExpression:    aws.String("#pk = :pk"),
		ExpressionAttributeNames:  map[string]string{"#pk": fieldRequestID},
		ExpressionAttributeValues: map[string]types.AttributeValue{":pk": &types.AttributeValueMemberS{Value: requestID}},
		ScanIndexForward:          aws.Bool(true),
	})
	out := []domain.NotificationAttempt{}
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("query attempts: %w", err)
		}
		var batch []domain.NotificationAttempt
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &batch); err != nil {
			return nil, err
		}
		out = append(out, batch...)
	}
	return out, nil
}
