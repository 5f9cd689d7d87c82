package dynamo

import (
	"context"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// NotifyGuard is the DynamoDB-backed (request, donor) notify guard. A lock
// row is claimed with a conditional put and reclaimable once expires_at has
// passed; the table TTL only garbage-collects old rows.
type NotifyGuard struct {
	client    *dynamodb.Client
	tableName string
}

func NewNotifyGuard(client *dynamodb.Client, tableName string) *NotifyGuard {
	return &NotifyGuard{client: client, tableName: tableName}
}

func lockKey(requestID, donorID string) string {
	return requestID + "#" + donorID
}

func (g *NotifyGuard) Acquire(ctx context.Context, requestID, donorID string, ttl time.Duration) (bool, error) {
	now := time.Now().UTC()
	_, err := g.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(g.tableName),
		Item: map[string]types.AttributeValue{
			fieldLockKey:   &types.AttributeValueMemberS{Value: lockKey(requestID, donorID)},
			fieldRequestID: &types.AttributeValueMemberS{Value: requestID},
			fieldDonorID:   &types.AttributeValueMemberS{Value: donorID},
			fieldExpiresAt: &types.AttributeValueMemberN{Value: strconv.FormatInt(now.Add(ttl).Unix(), 10)},
		},
		ConditionExpression: aws.String("attribute_not_exists(#k) OR #exp < :now"),
		ExpressionAttributeNames: map[string]string{
			"#k":   fieldLockKey,
			"#exp": fieldExpiresAt,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":now": &types.AttributeValueMemberN{Value: strconv.FormatInt(now.Unix(), 10)},
		},
	})
	if _, ok := conditionFailed(err); ok {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
