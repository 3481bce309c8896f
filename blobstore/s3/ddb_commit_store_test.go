package s3

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/hupe1980/rayknn/blobstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDDB keeps commit items in memory and honors the conditional insert.
type fakeDDB struct {
	mu    sync.Mutex
	items map[string]map[string]types.AttributeValue
}

func newFakeDDB() *fakeDDB {
	return &fakeDDB{items: make(map[string]map[string]types.AttributeValue)}
}

func (f *fakeDDB) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	ns := in.Item["namespace"].(*types.AttributeValueMemberS).Value
	version := in.Item["version"].(*types.AttributeValueMemberN).Value
	key := ns + ":" + version
	if aws.ToString(in.ConditionExpression) == "attribute_not_exists(version)" {
		if _, ok := f.items[key]; ok {
			return nil, &types.ConditionalCheckFailedException{Message: aws.String("condition failed")}
		}
	}
	f.items[key] = in.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDDB) Query(_ context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	ns := in.ExpressionAttributeValues[":ns"].(*types.AttributeValueMemberS).Value
	var items []map[string]types.AttributeValue
	for _, item := range f.items {
		if item["namespace"].(*types.AttributeValueMemberS).Value == ns {
			items = append(items, item)
		}
	}
	version := func(item map[string]types.AttributeValue) uint64 {
		v, _ := strconv.ParseUint(item["version"].(*types.AttributeValueMemberN).Value, 10, 64)
		return v
	}
	sort.Slice(items, func(i, j int) bool { return version(items[i]) > version(items[j]) })
	if in.Limit != nil && int(*in.Limit) < len(items) {
		items = items[:*in.Limit]
	}
	return &dynamodb.QueryOutput{Items: items}, nil
}

func newTestCommitStore(ddb *fakeDDB, namespace string) *DDBCommitStore {
	return NewDDBCommitStore(NewStore(new(MockS3Client), "test-bucket", "test/"), ddb, "rayknn-commits", namespace)
}

func readCurrent(t *testing.T, s blobstore.Store) string {
	t.Helper()
	data, err := blobstore.ReadAll(context.Background(), s, CurrentName)
	require.NoError(t, err)
	return string(data)
}

func TestDDBCommitStore_Commits(t *testing.T) {
	ctx := context.Background()
	store := newTestCommitStore(newFakeDDB(), "s3://test-bucket/test/")

	_, err := store.Open(ctx, CurrentName)
	require.ErrorIs(t, err, blobstore.ErrNotFound)

	for i := 1; i <= 3; i++ {
		require.NoError(t, store.Put(ctx, CurrentName, []byte(fmt.Sprintf("points-%05d.rknn", i))))
	}
	assert.Equal(t, "points-00003.rknn", readCurrent(t, store))

	v, err := store.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), v)
}

func TestDDBCommitStore_ConcurrentCommits(t *testing.T) {
	ctx := context.Background()
	store := newTestCommitStore(newFakeDDB(), "s3://test-bucket/test/")
	require.NoError(t, store.Put(ctx, CurrentName, []byte("points-00001.rknn")))

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			_, err := store.Commit(ctx, fmt.Sprintf("points-%05d.rknn", id+2))
			if err != nil && !errors.Is(err, ErrConcurrentModification) {
				t.Errorf("unexpected error: %v", err)
				return
			}
			if err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	v, err := store.Version(ctx)
	require.NoError(t, err)
	assert.Positive(t, successes)
	assert.Equal(t, uint64(1+successes), v)
}

func TestDDBCommitStore_IsolatedNamespaces(t *testing.T) {
	ctx := context.Background()
	ddb := newFakeDDB()
	a := newTestCommitStore(ddb, "s3://bucket-a/path/")
	b := newTestCommitStore(ddb, "s3://bucket-b/path/")

	require.NoError(t, a.Put(ctx, CurrentName, []byte("A")))
	require.NoError(t, b.Put(ctx, CurrentName, []byte("B")))

	assert.Equal(t, "A", readCurrent(t, a))
	assert.Equal(t, "B", readCurrent(t, b))
}
