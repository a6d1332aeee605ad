// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/xmidt-org/arethusa/codec"
	"github.com/xmidt-org/arethusa/model"
	"github.com/xmidt-org/arethusa/store"
)

// client captures the methods of interest from the dynamoDB API. This
// should help mock API calls as well.
type client interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, opts ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	TransactWriteItems(ctx context.Context, in *dynamodb.TransactWriteItemsInput, opts ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// service defines the dynamodb specific DAO interface. It helps keeping
// middleware such as instrumentation orthogonal to business logic.
type service interface {
	Put(ctx context.Context, f model.Faucet) (*types.ConsumedCapacity, error)
	Get(ctx context.Context, id string) (model.Faucet, *types.ConsumedCapacity, error)
	MarkConsumed(ctx context.Context, id string, at time.Time) (*types.ConsumedCapacity, error)
	Revoke(ctx context.Context, id string, at time.Time) (*types.ConsumedCapacity, error)
	LastForFaucet(ctx context.Context, faucetID string) (model.ScanEvent, *types.ConsumedCapacity, error)
	LastForDevice(ctx context.Context, faucetID, device string) (model.ScanEvent, *types.ConsumedCapacity, error)
	Append(ctx context.Context, ev model.ScanEvent) (*types.ConsumedCapacity, error)
	GetScan(ctx context.Context, scanID string) (model.ScanEvent, *types.ConsumedCapacity, error)
}

// executor satisfies the service interface so the outer DynamoClient can
// adapt the outputs to the abstract DAO.
type executor struct {
	c         client
	tableName string
}

// Single table layout. The faucet record and its scan events share a
// partition so last-event queries stay single-partition; the scan ref
// record lives under the scan id so lineage lookups are a point read.
const (
	bucketAttributeKey = "bucket"
	idAttributeKey     = "id"

	faucetSortKey  = "faucet"
	scanSortPrefix = "scan#"
	scanRefSortKey = "scanref"
)

type faucetRecord struct {
	Bucket     string `dynamodbav:"bucket"`
	ID         string `dynamodbav:"id"`
	Sealed     []byte `dynamodbav:"sealed"`
	Signature  []byte `dynamodbav:"signature"`
	CreatedAt  int64  `dynamodbav:"created_at"`
	ExpiresAt  *int64 `dynamodbav:"expires_at,omitempty"`
	OneTime    bool   `dynamodbav:"one_time"`
	ConsumedAt *int64 `dynamodbav:"consumed_at,omitempty"`
	RevokedAt  *int64 `dynamodbav:"revoked_at,omitempty"`
}

type scanRecord struct {
	Bucket         string `dynamodbav:"bucket"`
	ID             string `dynamodbav:"id"`
	ScanID         string `dynamodbav:"scan_id"`
	FaucetID       string `dynamodbav:"faucet_id"`
	SequenceNo     uint64 `dynamodbav:"sequence_no"`
	Device         string `dynamodbav:"device"`
	PreviousScanID string `dynamodbav:"previous_scan_id,omitempty"`
	Outcome        string `dynamodbav:"outcome"`
	ObservedAt     int64  `dynamodbav:"observed_at"`
}

func scanSortKey(seq uint64) string {
	// zero padded so lexicographic sort order matches numeric order
	return fmt.Sprintf("%s%020d", scanSortPrefix, seq)
}

func handleClientError(err error) error {
	var (
		throughput *types.ProvisionedThroughputExceededException
		limit      *types.RequestLimitExceeded
		internal   *types.InternalServerError
	)
	switch {
	case errors.As(err, &throughput):
		return store.InternalError{Reason: err, Retryable: true}
	case errors.As(err, &internal):
		return store.InternalError{Reason: err, Retryable: true}
	case errors.As(err, &limit):
		return store.InternalError{Reason: err, Retryable: false}
	default:
		return store.InternalError{Reason: err, Retryable: false}
	}
}

func conditionFailed(err error) bool {
	var cond *types.ConditionalCheckFailedException
	return errors.As(err, &cond)
}

// transactionConditionFailed reports whether a transact write was canceled
// because one of its condition checks lost the race.
func transactionConditionFailed(err error) bool {
	var canceled *types.TransactionCanceledException
	if !errors.As(err, &canceled) {
		return false
	}
	for _, reason := range canceled.CancellationReasons {
		if reason.Code != nil && *reason.Code == "ConditionalCheckFailed" {
			return true
		}
	}
	return false
}

func (d *executor) Put(ctx context.Context, f model.Faucet) (*types.ConsumedCapacity, error) {
	rec := faucetRecord{
		Bucket:    f.ID,
		ID:        faucetSortKey,
		Sealed:    f.Sealed,
		Signature: f.Signature,
		CreatedAt: f.CreatedAt.UnixNano(),
		OneTime:   f.OneTime,
	}
	if f.ExpiresAt != nil {
		exp := f.ExpiresAt.UnixNano()
		rec.ExpiresAt = &exp
	}

	av, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return nil, err
	}
	result, err := d.c.PutItem(ctx, &dynamodb.PutItemInput{
		Item:                   av,
		TableName:              aws.String(d.tableName),
		ConditionExpression:    aws.String("attribute_not_exists(id)"),
		ReturnConsumedCapacity: types.ReturnConsumedCapacityTotal,
	})
	var consumedCapacity *types.ConsumedCapacity
	if result != nil {
		consumedCapacity = result.ConsumedCapacity
	}
	if err != nil {
		if conditionFailed(err) {
			return consumedCapacity, store.ErrFaucetExists
		}
		return consumedCapacity, handleClientError(err)
	}
	return consumedCapacity, nil
}

func (d *executor) getRecord(ctx context.Context, id string) (faucetRecord, *types.ConsumedCapacity, error) {
	result, err := d.c.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(d.tableName),
		Key: map[string]types.AttributeValue{
			bucketAttributeKey: &types.AttributeValueMemberS{Value: id},
			idAttributeKey:     &types.AttributeValueMemberS{Value: faucetSortKey},
		},
		ConsistentRead:         aws.Bool(true),
		ReturnConsumedCapacity: types.ReturnConsumedCapacityTotal,
	})
	var consumedCapacity *types.ConsumedCapacity
	if result != nil {
		consumedCapacity = result.ConsumedCapacity
	}
	if err != nil {
		return faucetRecord{}, consumedCapacity, handleClientError(err)
	}
	if len(result.Item) == 0 {
		return faucetRecord{}, consumedCapacity, store.ErrFaucetNotFound
	}
	var rec faucetRecord
	if err := attributevalue.UnmarshalMap(result.Item, &rec); err != nil {
		return faucetRecord{}, consumedCapacity, store.InternalError{Reason: err}
	}
	return rec, consumedCapacity, nil
}

func (d *executor) Get(ctx context.Context, id string) (model.Faucet, *types.ConsumedCapacity, error) {
	rec, consumedCapacity, err := d.getRecord(ctx, id)
	if err != nil {
		return model.Faucet{}, consumedCapacity, err
	}
	f, err := rec.toFaucet()
	if err != nil {
		return model.Faucet{}, consumedCapacity, store.InternalError{Reason: err}
	}
	return f, consumedCapacity, nil
}

func (rec faucetRecord) toFaucet() (model.Faucet, error) {
	env, err := codec.Decode(rec.Sealed)
	if err != nil {
		return model.Faucet{}, err
	}
	f := model.Faucet{
		ID:        rec.Bucket,
		Payload:   env.Payload,
		CreatedAt: time.Unix(0, rec.CreatedAt).UTC(),
		OneTime:   rec.OneTime,
		Sealed:    rec.Sealed,
		Signature: rec.Signature,
	}
	if rec.ExpiresAt != nil {
		exp := time.Unix(0, *rec.ExpiresAt).UTC()
		f.ExpiresAt = &exp
	}
	if rec.ConsumedAt != nil {
		consumed := time.Unix(0, *rec.ConsumedAt).UTC()
		f.ConsumedAt = &consumed
	}
	if rec.RevokedAt != nil {
		revoked := time.Unix(0, *rec.RevokedAt).UTC()
		f.RevokedAt = &revoked
	}
	return f, nil
}

func (d *executor) MarkConsumed(ctx context.Context, id string, at time.Time) (*types.ConsumedCapacity, error) {
	result, err := d.c.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(d.tableName),
		Key: map[string]types.AttributeValue{
			bucketAttributeKey: &types.AttributeValueMemberS{Value: id},
			idAttributeKey:     &types.AttributeValueMemberS{Value: faucetSortKey},
		},
		UpdateExpression:    aws.String("SET consumed_at = :at"),
		ConditionExpression: aws.String("attribute_exists(id) AND attribute_not_exists(consumed_at)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":at": &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", at.UnixNano())},
		},
		ReturnConsumedCapacity: types.ReturnConsumedCapacityTotal,
	})
	var consumedCapacity *types.ConsumedCapacity
	if result != nil {
		consumedCapacity = result.ConsumedCapacity
	}
	if err != nil {
		if conditionFailed(err) {
			// missing row and already-consumed row fail the same condition
			if _, _, getErr := d.getRecord(ctx, id); errors.Is(getErr, store.ErrFaucetNotFound) {
				return consumedCapacity, store.ErrFaucetNotFound
			}
			return consumedCapacity, store.ErrAlreadyConsumed
		}
		return consumedCapacity, handleClientError(err)
	}
	return consumedCapacity, nil
}

func (d *executor) Revoke(ctx context.Context, id string, at time.Time) (*types.ConsumedCapacity, error) {
	result, err := d.c.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(d.tableName),
		Key: map[string]types.AttributeValue{
			bucketAttributeKey: &types.AttributeValueMemberS{Value: id},
			idAttributeKey:     &types.AttributeValueMemberS{Value: faucetSortKey},
		},
		UpdateExpression:    aws.String("SET revoked_at = if_not_exists(revoked_at, :at)"),
		ConditionExpression: aws.String("attribute_exists(id)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":at": &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", at.UnixNano())},
		},
		ReturnConsumedCapacity: types.ReturnConsumedCapacityTotal,
	})
	var consumedCapacity *types.ConsumedCapacity
	if result != nil {
		consumedCapacity = result.ConsumedCapacity
	}
	if err != nil {
		if conditionFailed(err) {
			return consumedCapacity, store.ErrFaucetNotFound
		}
		return consumedCapacity, handleClientError(err)
	}
	return consumedCapacity, nil
}

func (d *executor) LastForFaucet(ctx context.Context, faucetID string) (model.ScanEvent, *types.ConsumedCapacity, error) {
	result, err := d.c.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(d.tableName),
		KeyConditionExpression: aws.String("#b = :b AND begins_with(#i, :prefix)"),
		ExpressionAttributeNames: map[string]string{
			"#b": bucketAttributeKey,
			"#i": idAttributeKey,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":b":      &types.AttributeValueMemberS{Value: faucetID},
			":prefix": &types.AttributeValueMemberS{Value: scanSortPrefix},
		},
		ScanIndexForward:       aws.Bool(false),
		Limit:                  aws.Int32(1),
		ConsistentRead:         aws.Bool(true),
		ReturnConsumedCapacity: types.ReturnConsumedCapacityTotal,
	})
	var consumedCapacity *types.ConsumedCapacity
	if result != nil {
		consumedCapacity = result.ConsumedCapacity
	}
	if err != nil {
		return model.ScanEvent{}, consumedCapacity, handleClientError(err)
	}
	if len(result.Items) == 0 {
		return model.ScanEvent{}, consumedCapacity, store.ErrScanNotFound
	}
	ev, err := unmarshalScan(result.Items[0])
	if err != nil {
		return model.ScanEvent{}, consumedCapacity, store.InternalError{Reason: err}
	}
	return ev, consumedCapacity, nil
}

func (d *executor) LastForDevice(ctx context.Context, faucetID, device string) (model.ScanEvent, *types.ConsumedCapacity, error) {
	var (
		consumedCapacity *types.ConsumedCapacity
		startKey         map[string]types.AttributeValue
	)
	for {
		result, err := d.c.Query(ctx, &dynamodb.QueryInput{
			TableName:              aws.String(d.tableName),
			KeyConditionExpression: aws.String("#b = :b AND begins_with(#i, :prefix)"),
			FilterExpression:       aws.String("device = :d"),
			ExpressionAttributeNames: map[string]string{
				"#b": bucketAttributeKey,
				"#i": idAttributeKey,
			},
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":b":      &types.AttributeValueMemberS{Value: faucetID},
				":prefix": &types.AttributeValueMemberS{Value: scanSortPrefix},
				":d":      &types.AttributeValueMemberS{Value: device},
			},
			ScanIndexForward:       aws.Bool(false),
			ConsistentRead:         aws.Bool(true),
			ExclusiveStartKey:      startKey,
			ReturnConsumedCapacity: types.ReturnConsumedCapacityTotal,
		})
		if result != nil {
			consumedCapacity = result.ConsumedCapacity
		}
		if err != nil {
			return model.ScanEvent{}, consumedCapacity, handleClientError(err)
		}
		if len(result.Items) > 0 {
			ev, err := unmarshalScan(result.Items[0])
			if err != nil {
				return model.ScanEvent{}, consumedCapacity, store.InternalError{Reason: err}
			}
			return ev, consumedCapacity, nil
		}
		if len(result.LastEvaluatedKey) == 0 {
			return model.ScanEvent{}, consumedCapacity, store.ErrScanNotFound
		}
		startKey = result.LastEvaluatedKey
	}
}

func (d *executor) Append(ctx context.Context, ev model.ScanEvent) (*types.ConsumedCapacity, error) {
	rec := scanRecord{
		Bucket:         ev.FaucetID,
		ID:             scanSortKey(ev.SequenceNo),
		ScanID:         ev.ScanID,
		FaucetID:       ev.FaucetID,
		SequenceNo:     ev.SequenceNo,
		Device:         ev.Device,
		PreviousScanID: ev.PreviousScanID,
		Outcome:        string(ev.Outcome),
		ObservedAt:     ev.ObservedAt.UnixNano(),
	}
	eventItem, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return nil, err
	}
	ref := rec
	ref.Bucket = ev.ScanID
	ref.ID = scanRefSortKey
	refItem, err := attributevalue.MarshalMap(ref)
	if err != nil {
		return nil, err
	}

	// the condition on the event item is the serialization point; the ref
	// item rides along in the same transaction so lineage lookups never
	// observe a half-written event
	result, err := d.c.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{
				Put: &types.Put{
					TableName:           aws.String(d.tableName),
					Item:                eventItem,
					ConditionExpression: aws.String("attribute_not_exists(id)"),
				},
			},
			{
				Put: &types.Put{
					TableName: aws.String(d.tableName),
					Item:      refItem,
				},
			},
		},
		ReturnConsumedCapacity: types.ReturnConsumedCapacityTotal,
	})
	var consumedCapacity *types.ConsumedCapacity
	if result != nil && len(result.ConsumedCapacity) > 0 {
		consumedCapacity = &result.ConsumedCapacity[0]
	}
	if err != nil {
		if transactionConditionFailed(err) {
			return consumedCapacity, store.ErrSequenceConflict
		}
		return consumedCapacity, handleClientError(err)
	}
	return consumedCapacity, nil
}

func (d *executor) GetScan(ctx context.Context, scanID string) (model.ScanEvent, *types.ConsumedCapacity, error) {
	result, err := d.c.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(d.tableName),
		Key: map[string]types.AttributeValue{
			bucketAttributeKey: &types.AttributeValueMemberS{Value: scanID},
			idAttributeKey:     &types.AttributeValueMemberS{Value: scanRefSortKey},
		},
		ConsistentRead:         aws.Bool(true),
		ReturnConsumedCapacity: types.ReturnConsumedCapacityTotal,
	})
	var consumedCapacity *types.ConsumedCapacity
	if result != nil {
		consumedCapacity = result.ConsumedCapacity
	}
	if err != nil {
		return model.ScanEvent{}, consumedCapacity, handleClientError(err)
	}
	if len(result.Item) == 0 {
		return model.ScanEvent{}, consumedCapacity, store.ErrScanNotFound
	}
	ev, err := unmarshalScan(result.Item)
	if err != nil {
		return model.ScanEvent{}, consumedCapacity, store.InternalError{Reason: err}
	}
	return ev, consumedCapacity, nil
}

func unmarshalScan(item map[string]types.AttributeValue) (model.ScanEvent, error) {
	var rec scanRecord
	if err := attributevalue.UnmarshalMap(item, &rec); err != nil {
		return model.ScanEvent{}, err
	}
	return model.ScanEvent{
		ScanID:         rec.ScanID,
		FaucetID:       rec.FaucetID,
		SequenceNo:     rec.SequenceNo,
		Device:         rec.Device,
		PreviousScanID: rec.PreviousScanID,
		Outcome:        model.Outcome(rec.Outcome),
		ObservedAt:     time.Unix(0, rec.ObservedAt).UTC(),
	}, nil
}

func newService(cfg Config) (service, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		),
	)
	if err != nil {
		return nil, err
	}

	c := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.RetryMaxAttempts = cfg.MaxRetries
	})

	return &executor{
		c:         c,
		tableName: cfg.Table,
	}, nil
}
