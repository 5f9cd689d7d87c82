package dynamo

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/lifelink-api/internal/domain"
)

// DonorRepo provides typed DynamoDB operations for the donors table.
type DonorRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewDonorRepo(client *dynamodb.Client, tableName string) *DonorRepo {
	return &DonorRepo{client: client, tableName: tableName}
}

// Put writes a new donor together with a claim row keyed on its user ID, in
// one transaction, so a user can own at most one profile.
func (r *DonorRepo) Put(ctx context.Context, d *domain.DonorProfile) error {
	items, err := donorPutItems(r.tableName, d)
	if err != nil {
		return err
	}
	_, err = r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: items})
	if transactConflict(err) {
		return fmt.Errorf("donor for user %s exists: %w", d.UserID, domain.ErrConflict)
	}
	return err
}

const userClaimPrefix = "user#"

// userClaimKey is the donors-table key that reserves userID. Claim rows carry
// no blood_type or user_id, so they stay out of both GSIs.
func userClaimKey(userID string) string {
	return userClaimPrefix + userID
}

func donorPutItems(table string, d *domain.DonorProfile) ([]types.TransactWriteItem, error) {
	item, err := attributevalue.MarshalMap(d)
	if err != nil {
		return nil, fmt.Errorf("marshal donor: %w", err)
	}
	notExists := aws.String("attribute_not_exists(#id)")
	names := map[string]string{"#id": fieldDonorID}
	return []types.TransactWriteItem{
		{Put: &types.Put{
			TableName:                aws.String(table),
			Item:                     item,
			ConditionExpression:      notExists,
			ExpressionAttributeNames: names,
		}},
		{Put: &types.Put{
			TableName: aws.String(table),
			Item: map[string]types.AttributeValue{
				fieldDonorID:        &types.AttributeValueMemberS{Value: userClaimKey(d.UserID)},
				fieldClaimedDonorID: &types.AttributeValueMemberS{Value: d.DonorID},
			},
			ConditionExpression:      notExists,
			ExpressionAttributeNames: names,
		}},
	}, nil
}

func (r *DonorRepo) Get(ctx context.Context, donorID string) (*domain.DonorProfile, error) {
	if strings.HasPrefix(donorID, userClaimPrefix) {
		return nil, fmt.Errorf("donor %s: %w", donorID, domain.ErrNotFound)
	}
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey(fieldDonorID, donorID),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("donor %s: %w", donorID, domain.ErrNotFound)
	}
	var d domain.DonorProfile
	if err := attributevalue.UnmarshalMap(out.Item, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *DonorRepo) GetByUserID(ctx context.Context, userID string) (*domain.DonorProfile, error) {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(r.tableName),
		IndexName:                 aws.String(indexDonorsByUser),
		KeyConditionExpression:    aws.String("#a = :v"),
		ExpressionAttributeNames:  map[string]string{"#a": fieldUserID},
		ExpressionAttributeValues: map[string]types.AttributeValue{":v": &types.AttributeValueMemberS{Value: userID}},
		Limit:                     aws.Int32(1),
	})
	if err != nil {
		return nil, err
	}
	if len(out.Items) == 0 {
		return nil, fmt.Errorf("donor for user %s: %w", userID, domain.ErrNotFound)
	}
	var d domain.DonorProfile
	if err := attributevalue.UnmarshalMap(out.Items[0], &d); err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *DonorRepo) Update(ctx context.Context, donorID string, updates map[string]interface{}) error {
	updates[fieldUpdatedAt] = time.Now().UTC()
	ue, err := buildUpdateExpr(updates)
	if err != nil {
		return err
	}
	ue.Names["#pk"] = fieldDonorID
	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       strKey(fieldDonorID, donorID),
		UpdateExpression:          aws.String(ue.Expr),
		ConditionExpression:       aws.String("attribute_exists(#pk)"),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
	})
	if _, ok := conditionFailed(err); ok {
		return fmt.Errorf("donor %s: %w", donorID, domain.ErrNotFound)
	}
	return err
}

// RecordDonation stamps the donation date and bumps the counter atomically.
func (r *DonorRepo) RecordDonation(ctx context.Context, donorID string, at time.Time) error {
	atAV, err := attributevalue.Marshal(at)
	if err != nil {
		return err
	}
	nowAV, err := attributevalue.Marshal(time.Now().UTC())
	if err != nil {
		return err
	}
	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(r.tableName),
		Key:                 strKey(fieldDonorID, donorID),
		UpdateExpression:    aws.String("SET #ld = :at, #ua = :now ADD #dc :one"),
		ConditionExpression: aws.String("attribute_exists(#pk)"),
		ExpressionAttributeNames: map[string]string{
			"#pk": fieldDonorID,
			"#ld": fieldLastDonationAt,
			"#ua": fieldUpdatedAt,
			"#dc": fieldDonationCount,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":at":  atAV,
			":now": nowAV,
			":one": &types.AttributeValueMemberN{Value: "1"},
		},
	})
	if _, ok := conditionFailed(err); ok {
		return fmt.Errorf("donor %s: %w", donorID, domain.ErrNotFound)
	}
	return err
}

// ListAvailableByBloodType returns every donor of bt flagged available.
func (r *DonorRepo) ListAvailableByBloodType(ctx context.Context, bt domain.BloodType) ([]domain.DonorProfile, error) {
	p := dynamodb.NewQueryPaginator(r.client, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String(indexDonorsByBloodType),
		KeyConditionExpression: aws.String("#bt = :bt"),
		FilterExpression:       aws.String("#av = :t"),
		ExpressionAttributeNames: map[string]string{
			"#bt": fieldBloodType,
			"#av": fieldAvailable,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":bt": &types.AttributeValueMemberS{Value: string(bt)},
			":t":  &types.AttributeValueMemberBOOL{Value: true},
		},
	})
	var donors []domain.DonorProfile
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("query donors by blood type: %w", err)
		}
		var batch []domain.DonorProfile
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &batch); err != nil {
			return nil, err
		}
		donors = append(donors, batch...)
	}
	return donors, nil
}
