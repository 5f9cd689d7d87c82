package dynamo

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/lifelink-api/internal/domain"
)

// RequestRepo provides typed DynamoDB operations for the blood_requests table.
type RequestRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewRequestRepo(client *dynamodb.Client, tableName string) *RequestRepo {
	return &RequestRepo{client: client, tableName: tableName}
}

func (r *RequestRepo) Put(ctx context.Context, br *domain.BloodRequest) error {
	item, err := attributevalue.MarshalMap(br)
	if err != nil {
		return fmt.Errorf("marshal blood request: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                aws.String(r.tableName),
		Item:                     item,
		ConditionExpression:      aws.String("attribute_not_exists(#id)"),
		ExpressionAttributeNames: map[string]string{"#id": fieldRequestID},
	})
	if _, ok := conditionFailed(err); ok {
		return fmt.Errorf("blood request %s exists: %w", br.RequestID, domain.ErrConflict)
	}
	return err
}

func (r *RequestRepo) Get(ctx context.Context, requestID string) (*domain.BloodRequest, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            strKey(fieldRequestID, requestID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("blood request %s: %w", requestID, domain.ErrNotFound)
	}
	var br domain.BloodRequest
	if err := attributevalue.UnmarshalMap(out.Item, &br); err != nil {
		return nil, err
	}
	return &br, nil
}

// TransitionStatus moves a request from one status to another only if it is
// still in from. It returns ErrConflict when the status already changed and
// ErrNotFound when the request does not exist.
func (r *RequestRepo) TransitionStatus(ctx context.Context, requestID string, from, to domain.RequestStatus) (*domain.BloodRequest, error) {
	now := time.Now().UTC()
	updates := map[string]interface{}{
		fieldStatus:    to,
		fieldUpdatedAt: now,
	}
	if to == domain.RequestFulfilled {
		updates[fieldFulfilledAt] = now
	}
	ue, err := buildUpdateExpr(updates)
	if err != nil {
		return nil, err
	}
	ue.Names["#from"] = fieldStatus
	ue.Values[":from"] = &types.AttributeValueMemberS{Value: string(from)}

	out, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                           aws.String(r.tableName),
		Key:                                 strKey(fieldRequestID, requestID),
		UpdateExpression:                    aws.String(ue.Expr),
		ConditionExpression:                 aws.String("#from = :from"),
		ExpressionAttributeNames:            ue.Names,
		ExpressionAttributeValues:           ue.Values,
		ReturnValues:                        types.ReturnValueAllNew,
		ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
	})
	if ccf, ok := conditionFailed(err); ok {
		if ccf.Item == nil {
			return nil, fmt.Errorf("blood request %s: %w", requestID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("blood request %s is no longer %s: %w", requestID, from, domain.ErrConflict)
	}
	if err != nil {
		return nil, err
	}
	var br domain.BloodRequest
	if err := attributevalue.UnmarshalMap(out.Attributes, &br); err != nil {
		return nil, err
	}
	return &br, nil
}

// ListByStatus returns every request in status, oldest first.
func (r *RequestRepo) ListByStatus(ctx context.Context, status domain.RequestStatus) ([]domain.BloodRequest, error) {
	p := dynamodb.NewQueryPaginator(r.client, &dynamodb.QueryInput{
		TableName:                 aws.String(r.tableName),
		IndexName:                 aws.String(indexRequestsByStatus),
		KeyConditionExpression:    aws.String("#s = :s"),
		ExpressionAttributeNames:  map[string]string{"#s": fieldStatus},
		ExpressionAttributeValues: map[string]types.AttributeValue{":s": &types.AttributeValueMemberS{Value: string(status)}},
		ScanIndexForward:          aws.Bool(true),
	})
	var out []domain.BloodRequest
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("query requests by status: %w", err)
		}
		var batch []domain.BloodRequest
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &batch); err != nil {
			return nil, err
		}
		out = append(out, batch...)
	}
	return out, nil
}
