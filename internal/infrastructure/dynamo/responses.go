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

// ResponseRepo stores donor accept/decline answers. PK: request_id, SK: donor_id.
type ResponseRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewResponseRepo(client *dynamodb.Client, tableName string) *ResponseRepo {
	return &ResponseRepo{client: client, tableName: tableName}
}

// Put records a response; a donor answers a request at most once.
func (r *ResponseRepo) Put(ctx context.Context, resp *domain.DonorResponse) error {
	item, err := attributevalue.MarshalMap(resp)
	if err != nil {
		return fmt.Errorf("marshal response: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                aws.String(r.tableName),
		Item:                     item,
		ConditionExpression:      aws.String("attribute_not_exists(#sk)"),
		ExpressionAttributeNames: map[string]string{"#sk": fieldDonorID},
	})
	if _, ok := conditionFailed(err); ok {
		return fmt.Errorf("donor %s already responded: %w", resp.DonorID, domain.ErrConflict)
	}
	return err
}

func (r *ResponseRepo) AcceptedCount(ctx context.Context, requestID string) (int, error) {
	p := dynamodb.NewQueryPaginator(r.client, r.byStatus(requestID, domain.ResponseAccepted, types.SelectCount))
	total := 0
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return 0, fmt.Errorf("count accepted responses: %w", err)
		}
		total += int(page.Count)
	}
	return total, nil
}

// DeclinedDonors returns the IDs of donors who declined requestID.
func (r *ResponseRepo) DeclinedDonors(ctx context.Context, requestID string) (map[string]struct{}, error) {
	in := r.byStatus(requestID, domain.ResponseDeclined, types.SelectSpecificAttributes)
	in.ProjectionExpression = aws.String("#sk")
	in.ExpressionAttributeNames["#sk"] = fieldDonorID

	p := dynamodb.NewQueryPaginator(r.client, in)
	out := map[string]struct{}{}
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("query declined donors: %w", err)
		}
		for _, item := range page.Items {
			if v, ok := item[fieldDonorID].(*types.AttributeValueMemberS); ok {
				out[v.Value] = struct{}{}
			}
		}
	}
	return out, nil
}

func (r *ResponseRepo) byStatus(requestID string, status domain.ResponseStatus, sel types.Select) *dynamodb.QueryInput {
	return &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		KeyConditionExpression: aws.String("#pk = :pk"),
		FilterExpression:       aws.String("#st = :st"),
		ExpressionAttributeNames: map[string]string{
			"#pk": fieldRequestID,
			"#st": fieldStatus,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: requestID},
			":st": &types.AttributeValueMemberS{Value: string(status)},
		},
		Select:         sel,
		ConsistentRead: aws.Bool(true),
	}
}
