package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/hupe1980/rayknn/blobstore"
)

// CurrentName is the blob name whose writes go through the commit log.
const CurrentName = "CURRENT"

// ErrConcurrentModification is returned when another writer committed the
// same version first.
var ErrConcurrentModification = errors.New("s3: concurrent modification")

// DDBClient is the subset of the DynamoDB API used by DDBCommitStore.
type DDBClient interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// DDBCommitStore is a Store whose CURRENT blob lives in a DynamoDB table
// instead of S3. S3 has no compare-and-swap, so every write of CURRENT
// becomes a conditional insert of the next version number; of two writers
// racing for the same version exactly one wins.
//
// Table schema: partition key "namespace" (S), sort key "version" (N).
//
//	aws dynamodb create-table \
//	  --table-name rayknn-commits \
//	  --attribute-definitions AttributeName=namespace,AttributeType=S AttributeName=version,AttributeType=N \
//	  --key-schema AttributeName=namespace,KeyType=HASH AttributeName=version,KeyType=RANGE \
//	  --billing-mode PAY_PER_REQUEST
type DDBCommitStore struct {
	*Store
	ddb       DDBClient
	table     string
	namespace string
}

// NewDDBCommitStore combines store with a commit table. namespace separates
// independent catalogs sharing one table, typically "s3://bucket/prefix".
func NewDDBCommitStore(store *Store, ddb DDBClient, table, namespace string) *DDBCommitStore {
	return &DDBCommitStore{
		Store:     store,
		ddb:       ddb,
		table:     table,
		namespace: namespace,
	}
}

func (s *DDBCommitStore) Open(ctx context.Context, name string) (blobstore.Blob, error) {
	if name != CurrentName {
		return s.Store.Open(ctx, name)
	}
	version, target, err := s.latest(ctx)
	if err != nil {
		return nil, err
	}
	if version == 0 {
		return nil, blobstore.ErrNotFound
	}
	return &currentBlob{data: []byte(target)}, nil
}

func (s *DDBCommitStore) Put(ctx context.Context, name string, data []byte) error {
	if name != CurrentName {
		return s.Store.Put(ctx, name, data)
	}
	_, err := s.Commit(ctx, string(data))
	return err
}

// Commit records target as the next version of CURRENT and returns that
// version.
func (s *DDBCommitStore) Commit(ctx context.Context, target string) (uint64, error) {
	version, _, err := s.latest(ctx)
	if err != nil {
		return 0, err
	}
	next := version + 1

	_, err = s.ddb.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item: map[string]types.AttributeValue{
			"namespace": &types.AttributeValueMemberS{Value: s.namespace},
			"version":   &types.AttributeValueMemberN{Value: strconv.FormatUint(next, 10)},
			"target":    &types.AttributeValueMemberS{Value: target},
		},
		ConditionExpression: aws.String("attribute_not_exists(version)"),
	})
	if err != nil {
		var cond *types.ConditionalCheckFailedException
		if errors.As(err, &cond) {
			return 0, ErrConcurrentModification
		}
		return 0, fmt.Errorf("s3: commit version %d: %w", next, err)
	}
	return next, nil
}

// Version returns the latest committed version, or 0 before the first commit.
func (s *DDBCommitStore) Version(ctx context.Context) (uint64, error) {
	v, _, err := s.latest(ctx)
	return v, err
}

func (s *DDBCommitStore) latest(ctx context.Context) (uint64, string, error) {
	resp, err := s.ddb.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.table),
		KeyConditionExpression: aws.String("namespace = :ns"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":ns": &types.AttributeValueMemberS{Value: s.namespace},
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(1),
		ConsistentRead:   aws.Bool(true),
	})
	if err != nil {
		return 0, "", fmt.Errorf("s3: query commit log: %w", err)
	}
	if len(resp.Items) == 0 {
		return 0, "", nil
	}

	item := resp.Items[0]
	versionAttr, ok := item["version"].(*types.AttributeValueMemberN)
	if !ok {
		return 0, "", errors.New("s3: commit log item without version")
	}
	targetAttr, ok := item["target"].(*types.AttributeValueMemberS)
	if !ok {
		return 0, "", errors.New("s3: commit log item without target")
	}
	version, err := strconv.ParseUint(versionAttr.Value, 10, 64)
	if err != nil {
		return 0, "", fmt.Errorf("s3: parse commit version: %w", err)
	}
	return version, targetAttr.Value, nil
}

type currentBlob struct {
	data []byte
}

func (b *currentBlob) Close() error { return nil }

func (b *currentBlob) Size() int64 { return int64(len(b.data)) }

func (b *currentBlob) ReadAt(_ context.Context, p []byte, off int64) (int, error) {
	if off < 0 || off >= int64(len(b.data)) {
		return 0, io.EOF
	}
	n := copy(p, b.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (b *currentBlob) ReadRange(_ context.Context, off, length int64) (io.ReadCloser, error) {
	if off < 0 || off >= int64(len(b.data)) || length <= 0 {
		return io.NopCloser(bytes.NewReader(nil)), nil
	}
	end := min(off+length, int64(len(b.data)))
	return io.NopCloser(bytes.NewReader(b.data[off:end])), nil
}
